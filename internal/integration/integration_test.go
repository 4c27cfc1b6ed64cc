package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/domain"
	pgstore "quiz-room-service/internal/infra/postgres"
	pgmigrations "quiz-room-service/internal/infra/postgres/migrations"
	redisstore "quiz-room-service/internal/infra/redis"
	"quiz-room-service/internal/room"
)

const testSecret = "integration-secret"

func TestQuizRoundTripEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedData(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	quizLoader := pgstore.NewQuizLoader(pool)
	scores := pgstore.NewScoreStore(pool)
	engine := app.NewEngine(
		room.NewRegistry(),
		auth.NewJWTVerifier(testSecret),
		pgstore.NewUserStore(pool),
		redisstore.NewQuizRepository(redisClient, quizLoader, 5*time.Minute),
		quizLoader,
		scores,
		pgstore.NewPresenceStore(pool),
		zap.NewNop(),
	)

	host := join(t, ctx, engine, "u1")
	guest := join(t, ctx, engine, "u2")

	// One presence row per (quiz, user) even after a reconnect.
	guest2 := join(t, ctx, engine, "u2")
	var connections int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_connections WHERE quiz_id = 'quiz-1'`).Scan(&connections); err != nil {
		t.Fatalf("count connections: %v", err)
	}
	if connections != 2 {
		t.Fatalf("expected 2 connection rows, got %d", connections)
	}

	engine.HandleCommand(ctx, host, []byte(`{"type":"start_quiz"}`))
	lb, err := scores.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 2 || lb[0].Score != 0 || lb[1].Score != 0 {
		t.Fatalf("expected two zero entries after start, got %+v", lb)
	}

	engine.HandleCommand(ctx, guest2, []byte(`{"type":"submit_answer","question_id":1,"answer":1}`))
	engine.HandleCommand(ctx, host, []byte(`{"type":"submit_answer","question_id":1,"answer":0}`))

	lb, err = scores.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if lb[0].UserID != "u2" || lb[0].Score != 10 || lb[0].Email != "u2@example.com" {
		t.Fatalf("expected u2 leading with 10, got %+v", lb)
	}
	if lb[1].UserID != "u1" || lb[1].Score != 0 || lb[1].QuestionsAnswered != 1 {
		t.Fatalf("expected u1 with 0 and one answer, got %+v", lb)
	}

	engine.HandleCommand(ctx, host, []byte(`{"type":"end_quiz"}`))
	lb, err = scores.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 0 {
		t.Fatalf("expected empty leaderboard after end, got %+v", lb)
	}
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM quizzes WHERE id = 'quiz-1'`).Scan(&status); err != nil {
		t.Fatalf("quiz status: %v", err)
	}
	if status != domain.StatusIdle {
		t.Fatalf("expected durable status idle, got %q", status)
	}

	engine.Leave(ctx, guest2)
	engine.Leave(ctx, host)
	engine.Leave(ctx, guest)
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_connections WHERE quiz_id = 'quiz-1'`).Scan(&connections); err != nil {
		t.Fatalf("count connections: %v", err)
	}
	if connections != 0 {
		t.Fatalf("expected no connection rows after leaves, got %d", connections)
	}
}

func join(t *testing.T, ctx context.Context, engine *app.Engine, userID string) *app.Session {
	t.Helper()
	token, err := auth.Sign(testSecret, userID, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	sess, err := engine.Join(ctx, "ABC123", token)
	if err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
	return sess
}

func seedData(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stmts := []string{
		`INSERT INTO users (id, email) VALUES ('u1', 'u1@example.com'), ('u2', 'u2@example.com')`,
		`INSERT INTO quizzes (id, code, title, description, created_by_id)
		 VALUES ('quiz-1', 'ABC123', 'Integration quiz', 'end to end', 'u1')`,
		`INSERT INTO questions (id, quiz_id, text, options, correct_answer, score, display_order)
		 VALUES (1, 'quiz-1', 'Pick one', '["A","B","C","D"]'::jsonb, 1, 10, 0)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
