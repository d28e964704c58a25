package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"onlyconnect-service/internal/app"
	"onlyconnect-service/internal/config"
	"onlyconnect-service/internal/domain"
	"onlyconnect-service/internal/infra/memory"
	pgloader "onlyconnect-service/internal/infra/postgres"
	redisinfra "onlyconnect-service/internal/infra/redis"
	"onlyconnect-service/internal/store"
	transport "onlyconnect-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level, AddSource: true, TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)
	return logger
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuizLoader(pool)
		logger.Info("loading quizzes from postgres")
	} else {
		logger.Warn("postgres not configured, serving the built-in sample quiz")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, cfg.Redis.Prefix, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var st store.Store
	switch cfg.StoreBackend() {
	case config.BackendRedis:
		st = redisinfra.NewStore(redisClient, cfg.Redis.Prefix, cfg.RetryPolicy())
	default:
		st = memory.NewStore(cfg.RetryPolicy())
	}
	logger.Info("store ready", "backend", cfg.StoreBackend(), "max_attempts", cfg.RetryPolicy().MaxAttempts)

	service := app.NewQuizService(st, quizRepo, logger)
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is served when no postgres URL is configured.
func sampleQuizzes() map[string]domain.Quiz {
	wall := domain.WallSolution{Groups: []domain.SolutionGroup{
		{Texts: []string{"Mercury", "Venus", "Mars", "Saturn"}, Connection: "Planets"},
		{Texts: []string{"Thames", "Severn", "Trent", "Tyne"}, Connection: "English rivers"},
		{Texts: []string{"Brie", "Feta", "Edam", "Gouda"}, Connection: "Cheeses"},
		{Texts: []string{"Oak", "Ash", "Elm", "Yew"}, Connection: "Trees"},
	}}
	var grid []string
	for _, g := range wall.Groups {
		grid = append(grid, g.Texts...)
	}
	limit := 1

	return map[string]domain.Quiz{
		"quiz-1": {
			ID:      "quiz-1",
			OwnerID: "host",
			Questions: []domain.Question{
				domain.ConnectionQuestion{ID: "connection-1", Clues: [4]string{"cn-1", "cn-2", "cn-3", "cn-4"}, Limit: &limit},
				domain.SequenceQuestion{ID: "sequence-1", Clues: [3]string{"sq-1", "sq-2", "sq-3"}, Limit: &limit},
				domain.WallQuestion{ID: "wall-1", Clue: "wall-1-grid"},
				domain.MissingVowelsQuestion{ID: "vowels-1", Clue: "mv-1"},
			},
			Clues: map[string]domain.Clue{
				"cn-1":        {ID: "cn-1", QuestionID: "connection-1", Texts: []string{"Shaken"}},
				"cn-2":        {ID: "cn-2", QuestionID: "connection-1", Texts: []string{"Not stirred"}},
				"cn-3":        {ID: "cn-3", QuestionID: "connection-1", Texts: []string{"Aston Martin"}},
				"cn-4":        {ID: "cn-4", QuestionID: "connection-1", Texts: []string{"007"}},
				"sq-1":        {ID: "sq-1", QuestionID: "sequence-1", Texts: []string{"Bronze"}},
				"sq-2":        {ID: "sq-2", QuestionID: "sequence-1", Texts: []string{"Silver"}},
				"sq-3":        {ID: "sq-3", QuestionID: "sequence-1", Texts: []string{"Gold"}},
				"wall-1-grid": {ID: "wall-1-grid", QuestionID: "wall-1", Texts: grid},
				"mv-1":        {ID: "mv-1", QuestionID: "vowels-1", Texts: []string{"BR", "F T", "D M", "G D"}},
			},
			Solutions: map[string]domain.WallSolution{"wall-1-grid": wall},
		},
	}
}
