package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// Close codes for connection setup failures. Clients only ever observe these;
// transient internal failures never surface on the wire.
const (
	closeTokenMissing = 4001
	closeUserNotFound = 4002
	closeQuizNotFound = 4003
	closeTokenInvalid = 4004
)

const writeWait = 10 * time.Second

// WSHandler upgrades HTTP requests to websockets and drives one session per
// connection through the engine.
type WSHandler struct {
	engine   *app.Engine
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, log *zap.Logger) *WSHandler {
	return &WSHandler{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket endpoint on the router. The quiz code is a
// path parameter, the access token a query parameter.
func (h *WSHandler) Register(r *mux.Router) {
	r.HandleFunc("/ws/quiz/{code}", h.ServeWS)
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizCode := mux.Vars(r)["code"]
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, err := h.engine.Join(r.Context(), quizCode, token)
	if err != nil {
		h.closeWithReason(conn, err)
		return
	}
	// Cleanup is unconditional: graceful close, abrupt disconnect and write
	// failures all land here, and Leave itself acts only once. A fresh
	// context so a canceled request cannot skip the durable teardown.
	defer h.engine.Leave(context.Background(), sess)

	// Single writer: the member queue is the only path to the socket, which
	// keeps per-member ordering and avoids concurrent writes. When the queue
	// closes (removal, replacement, overflow) the socket is torn down so the
	// read loop below unblocks.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		for data := range sess.Member().Outbound() {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				h.log.Debug("ws read ended", zap.String("quiz_code", quizCode), zap.Error(err))
			}
			break
		}
		// One command fully handled, broadcast included, before the next read.
		h.engine.HandleCommand(r.Context(), sess, raw)
	}

	h.engine.Leave(context.Background(), sess)
	<-writerDone
}

func (h *WSHandler) closeWithReason(conn *websocket.Conn, err error) {
	code := closeTokenInvalid
	reason := "Authentication failed"
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		code, reason = closeTokenMissing, "No authentication token provided"
	case errors.Is(err, domain.ErrUserNotFound):
		code, reason = closeUserNotFound, "User not found"
	case errors.Is(err, domain.ErrQuizNotFound):
		code, reason = closeQuizNotFound, "Quiz not found"
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
