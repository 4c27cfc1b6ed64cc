package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	pgstore "quiz-room-service/internal/infra/postgres"
	redisstore "quiz-room-service/internal/infra/redis"
	"quiz-room-service/internal/room"
	transport "quiz-room-service/internal/transport/http"
	"quiz-room-service/pkg/logger"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.File)
	defer func() { _ = log.Sync() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var (
		users    app.UserStore
		scores   app.ScoreStore
		presence app.PresenceStore
		status   app.QuizStatusStore
		loader   memory.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		quizLoader := pgstore.NewQuizLoader(pool)
		users = pgstore.NewUserStore(pool)
		scores = pgstore.NewScoreStore(pool)
		presence = pgstore.NewPresenceStore(pool)
		status = quizLoader
		loader = quizLoader
	} else {
		// Demo mode: everything in memory, seeded with a sample quiz.
		memUsers, quizStore := seedDemoData(log, cfg.Auth.Secret)
		memScores := memory.NewScoreStore(memUsers)
		users = memUsers
		scores = memScores
		presence = memory.NewPresenceStore()
		status = quizStore
		loader = quizStore
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	engine := app.NewEngine(
		room.NewRegistry(),
		auth.NewJWTVerifier(cfg.Auth.Secret),
		users, quizRepo, status, scores, presence,
		log,
	)
	wsHandler := transport.NewWSHandler(engine, log)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	wsHandler.Register(router)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz room service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoData builds in-memory stores with one quiz and two users, and logs
// ready-to-use connection tokens.
func seedDemoData(log *zap.Logger, secret string) (*memory.UserStore, *memory.QuizStore) {
	host := domain.User{ID: uuid.NewString(), Email: "host@example.com"}
	guest := domain.User{ID: uuid.NewString(), Email: "guest@example.com"}
	users := memory.NewUserStore(host, guest)

	quiz := domain.Quiz{
		ID:          uuid.NewString(),
		Code:        "DEMO01",
		Title:       "Demo quiz",
		Description: "Sample quiz served from memory",
		Status:      domain.StatusIdle,
		OwnerID:     host.ID,
		Questions: []domain.Question{
			{ID: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1, Score: 10, Order: 0},
			{ID: 2, Text: "Largest planet?", Options: []string{"Mars", "Venus", "Jupiter", "Saturn"}, CorrectAnswer: 2, Score: 10, Order: 1},
		},
	}

	for _, u := range []domain.User{host, guest} {
		token, err := auth.Sign(secret, u.ID, 24*time.Hour)
		if err != nil {
			log.Warn("demo token signing failed", zap.Error(err))
			continue
		}
		log.Info("demo credential",
			zap.String("email", u.Email),
			zap.String("url", "/ws/quiz/DEMO01?token="+token))
	}

	return users, memory.NewQuizStore(quiz)
}
