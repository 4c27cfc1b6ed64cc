package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/room"
)

// ConnState tracks where a connection is in its lifecycle. Transitions only
// move forward; Closed is terminal.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateJoining
	StateActive
	StateClosing
	StateClosed
)

// Session is one live connection's view of the engine: the resolved user and
// quiz, the room membership, and the guaranteed-once cleanup handle.
type Session struct {
	state  ConnState
	user   domain.User
	quiz   domain.Quiz
	room   *room.Room
	member *room.Member

	closeOnce sync.Once
}

// User returns the authenticated identity behind this session.
func (s *Session) User() domain.User { return s.user }

// Member returns the room membership for this session.
func (s *Session) Member() *room.Member { return s.member }

// Engine orchestrates the connection lifecycle: authenticate, resolve, join,
// apply commands, and clean up. It keeps the durable ledger and presence
// records consistent with in-memory room membership.
type Engine struct {
	registry *room.Registry
	verifier auth.Verifier
	users    UserStore
	quizzes  QuizRepository
	status   QuizStatusStore
	scores   ScoreStore
	presence PresenceStore
	log      *zap.Logger
}

func NewEngine(
	registry *room.Registry,
	verifier auth.Verifier,
	users UserStore,
	quizzes QuizRepository,
	status QuizStatusStore,
	scores ScoreStore,
	presence PresenceStore,
	log *zap.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		verifier: verifier,
		users:    users,
		quizzes:  quizzes,
		status:   status,
		scores:   scores,
		presence: presence,
		log:      log,
	}
}

// Registry exposes the room registry, mainly for tests.
func (e *Engine) Registry() *room.Registry { return e.registry }

// Join runs Connecting → Authenticating → Joining → Active. Errors map to the
// close codes in the transport: ErrTokenMissing, ErrTokenInvalid,
// ErrUserNotFound, ErrQuizNotFound. On success the member's initial snapshot
// has been queued and the refreshed participant list broadcast to the room.
func (e *Engine) Join(ctx context.Context, quizCode, token string) (*Session, error) {
	sess := &Session{state: StateConnecting}

	sess.state = StateAuthenticating
	if token == "" {
		sess.state = StateClosed
		return nil, domain.ErrTokenMissing
	}
	userID, err := e.verifier.Verify(token)
	if err != nil {
		sess.state = StateClosed
		return nil, domain.ErrTokenInvalid
	}

	sess.state = StateJoining
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		sess.state = StateClosed
		return nil, domain.ErrUserNotFound
	}
	quiz, err := e.quizzes.GetQuizByCode(ctx, quizCode)
	if err != nil {
		sess.state = StateClosed
		return nil, domain.ErrQuizNotFound
	}
	quiz.SortQuestions()
	sess.user = user
	sess.quiz = quiz

	// Durable presence first. The insert is idempotent, so a reconnect is
	// never blocked by a stale row a failed disconnect left behind. A store
	// failure is logged and tolerated: the live room view stays correct.
	if err := e.presence.Connect(ctx, quiz.ID, user.ID); err != nil {
		e.log.Warn("presence connect failed",
			zap.String("quiz_id", quiz.ID), zap.String("user_id", user.ID), zap.Error(err))
	}

	member := room.NewMember(uuid.NewString(), user.ID, user.Email, user.ID == quiz.OwnerID)
	for {
		// A recreated room resumes the durable run status, so a quiz whose
		// members all dropped mid-run is still running when they return.
		r := e.registry.GetOrCreate(quiz.Code, quiz.ID, quiz.Status)
		replaced, err := r.Add(member)
		if err != nil {
			// The registry pruned this room between lookup and join.
			continue
		}
		if replaced != nil {
			// One live member per user: the newer connection wins and the
			// old transport is told to shut down.
			replaced.Close()
		}
		sess.room = r
		break
	}

	snapshot := roomParticipantsMsg{
		Type:         msgRoomParticipants,
		Quiz:         quiz.Summary(),
		Participants: sess.room.Participants(),
	}
	if sess.room.Status() == domain.StatusRunning {
		if lb, err := e.scores.Leaderboard(ctx, quiz.ID); err == nil {
			snapshot.Leaderboard = lb
		} else {
			e.log.Warn("leaderboard query failed", zap.String("quiz_id", quiz.ID), zap.Error(err))
		}
	}
	if err := member.Send(snapshot); err != nil {
		e.log.Warn("initial snapshot not delivered", zap.String("user_id", user.ID), zap.Error(err))
	}

	sess.member = member
	sess.state = StateActive
	e.broadcastParticipants(sess.room)
	e.log.Info("member joined",
		zap.String("quiz_code", quiz.Code), zap.String("user_id", user.ID),
		zap.Bool("is_host", member.IsHost))
	return sess, nil
}

// HandleCommand applies one inbound message. A malformed or unknown command
// never terminates the session; the sender gets an error message and the
// loop continues.
func (e *Engine) HandleCommand(ctx context.Context, sess *Session, raw []byte) {
	if sess.state != StateActive {
		return
	}
	cmd, err := parseCommand(raw)
	if err != nil {
		e.log.Warn("dropping malformed command",
			zap.String("quiz_code", sess.quiz.Code), zap.String("user_id", sess.user.ID), zap.Error(err))
		e.sendError(sess, "invalid message")
		return
	}

	switch cmd.Type {
	case cmdStartQuiz:
		e.startQuiz(ctx, sess)
	case cmdSubmitAnswer:
		e.submitAnswer(ctx, sess, cmd)
	case cmdEndQuiz:
		e.endQuiz(ctx, sess)
	default:
		e.log.Warn("dropping unknown command",
			zap.String("type", cmd.Type), zap.String("user_id", sess.user.ID))
		e.sendError(sess, "unsupported message type")
	}
}

// startQuiz seeds a zero score for every present member (never overwriting an
// existing entry, so a repeated start does not reset anyone), flips the run
// status and announces the question set.
func (e *Engine) startQuiz(ctx context.Context, sess *Session) {
	if !sess.member.IsHost {
		e.sendError(sess, domain.ErrNotHost.Error())
		return
	}

	quizID := sess.quiz.ID
	for _, userID := range sess.room.MemberUserIDs() {
		if err := e.scores.InitScore(ctx, quizID, userID); err != nil {
			e.log.Warn("score init failed",
				zap.String("quiz_id", quizID), zap.String("user_id", userID), zap.Error(err))
		}
	}

	e.setStatus(ctx, sess, domain.StatusRunning)

	lb := e.leaderboard(ctx, quizID)
	e.broadcast(sess.room, startQuizNowMsg{
		Type:        msgStartQuizNow,
		QuizID:      quizID,
		Leaderboard: lb,
		Questions:   sess.quiz.Questions,
	})
	e.log.Info("quiz started", zap.String("quiz_code", sess.quiz.Code), zap.String("host", sess.user.ID))
}

// submitAnswer scores one submission. The ledger write is a single atomic
// increment keyed by (quiz, user); the broadcast leaderboard is always
// re-queried afterwards so payloads reflect durable state even under
// concurrent submitters.
func (e *Engine) submitAnswer(ctx context.Context, sess *Session, cmd command) {
	if sess.room.Status() != domain.StatusRunning {
		e.sendError(sess, domain.ErrNotRunning.Error())
		return
	}
	question := sess.quiz.QuestionByID(cmd.QuestionID)
	if question == nil {
		e.sendError(sess, domain.ErrQuestionNotFound.Error())
		return
	}
	if cmd.Answer == nil || *cmd.Answer < 0 || *cmd.Answer >= len(question.Options) {
		e.sendError(sess, "invalid answer index")
		return
	}

	correct := *cmd.Answer == question.CorrectAnswer
	points := 0
	if correct {
		points = question.Score
	}
	if err := e.scores.RecordAnswer(ctx, sess.quiz.ID, sess.user.ID, points); err != nil {
		e.log.Warn("score update failed",
			zap.String("quiz_id", sess.quiz.ID), zap.String("user_id", sess.user.ID), zap.Error(err))
	}

	e.broadcast(sess.room, leaderboardUpdateMsg{
		Type:        msgLeaderboardUpdate,
		Leaderboard: e.leaderboard(ctx, sess.quiz.ID),
		AnswerResult: domain.AnswerResult{
			UserID:     sess.user.ID,
			QuestionID: cmd.QuestionID,
			IsCorrect:  correct,
		},
	})
}

// endQuiz clears the ledger and returns the quiz to idle. Only end_quiz
// removes score entries; disconnects while running never do.
func (e *Engine) endQuiz(ctx context.Context, sess *Session) {
	if !sess.member.IsHost {
		e.sendError(sess, domain.ErrNotHost.Error())
		return
	}
	if sess.room.Status() != domain.StatusRunning {
		e.sendError(sess, domain.ErrNotRunning.Error())
		return
	}

	quizID := sess.quiz.ID
	if err := e.scores.DeleteScores(ctx, quizID); err != nil {
		e.log.Warn("score reset failed", zap.String("quiz_id", quizID), zap.Error(err))
	}
	e.setStatus(ctx, sess, domain.StatusIdle)

	e.broadcast(sess.room, endQuizNowMsg{Type: msgEndQuizNow, QuizID: quizID})
	e.log.Info("quiz ended", zap.String("quiz_code", sess.quiz.Code), zap.String("host", sess.user.ID))
}

// Leave runs the Closing state: remove the durable presence record, drop the
// room membership, prune the room if it emptied and tell the remaining
// members. Safe to call from any exit path; only the first call acts.
func (e *Engine) Leave(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	sess.closeOnce.Do(func() {
		sess.state = StateClosing
		defer func() { sess.state = StateClosed }()

		sess.member.Close()

		// If this member was already replaced by a newer connection for the
		// same user, the replacement owns the presence row and the room slot;
		// tearing either down here would evict a live session.
		removed := sess.room.Remove(sess.user.ID, sess.member.ConnID)
		if !removed {
			return
		}

		if err := e.presence.Disconnect(ctx, sess.quiz.ID, sess.user.ID); err != nil {
			e.log.Warn("presence disconnect failed",
				zap.String("quiz_id", sess.quiz.ID), zap.String("user_id", sess.user.ID), zap.Error(err))
		}

		e.registry.RemoveIfEmpty(sess.quiz.Code)
		e.broadcastParticipants(sess.room)
		e.log.Info("member left",
			zap.String("quiz_code", sess.quiz.Code), zap.String("user_id", sess.user.ID))
	})
}

// setStatus updates the room mirror and the durable record, then drops the
// cached quiz so the next load (a room recreated after everyone disconnects)
// sees the new status instead of a stale blob.
func (e *Engine) setStatus(ctx context.Context, sess *Session, status string) {
	sess.room.SetStatus(status)
	if err := e.status.SetStatus(ctx, sess.quiz.ID, status); err != nil {
		e.log.Warn("durable status update failed", zap.String("quiz_id", sess.quiz.ID), zap.Error(err))
	}
	if err := e.quizzes.Invalidate(ctx, sess.quiz.Code); err != nil {
		e.log.Warn("quiz cache invalidation failed", zap.String("quiz_code", sess.quiz.Code), zap.Error(err))
	}
}

// leaderboard re-queries the ledger; the result is never cached.
func (e *Engine) leaderboard(ctx context.Context, quizID string) []domain.LeaderboardEntry {
	lb, err := e.scores.Leaderboard(ctx, quizID)
	if err != nil {
		e.log.Warn("leaderboard query failed", zap.String("quiz_id", quizID), zap.Error(err))
		return []domain.LeaderboardEntry{}
	}
	return lb
}

func (e *Engine) broadcastParticipants(r *room.Room) {
	quiz, err := e.quizzes.GetQuizByCode(context.Background(), r.Code)
	var summary domain.QuizSummary
	if err != nil {
		summary = domain.QuizSummary{ID: r.QuizID, Code: r.Code}
	} else {
		summary = quiz.Summary()
	}
	e.broadcast(r, roomParticipantsMsg{
		Type:         msgRoomParticipants,
		Quiz:         summary,
		Participants: r.Participants(),
	})
}

func (e *Engine) broadcast(r *room.Room, v any) {
	if err := r.Broadcast(v, ""); err != nil {
		e.log.Warn("broadcast failed", zap.String("quiz_code", r.Code), zap.Error(err))
	}
}

func (e *Engine) sendError(sess *Session, message string) {
	if err := sess.member.Send(errorMsg{Type: msgError, Message: message}); err != nil {
		e.log.Debug("error message not delivered", zap.String("user_id", sess.user.ID), zap.Error(err))
	}
}
