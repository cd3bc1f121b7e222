package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/comment-platform/internal/engine"
	"github.com/example/comment-platform/internal/events"
	"github.com/example/comment-platform/internal/handlers"
	"github.com/example/comment-platform/internal/platform/auth"
	"github.com/example/comment-platform/internal/platform/config"
	"github.com/example/comment-platform/internal/platform/db"
	"github.com/example/comment-platform/internal/platform/httpserver"
	"github.com/example/comment-platform/internal/platform/logging"
	"github.com/example/comment-platform/internal/platform/natsconn"
	"github.com/example/comment-platform/internal/platform/run"
	"github.com/example/comment-platform/internal/store"
)

func main() {
	// Local development convenience; a missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	publisher := initEvents(cfg, log)

	verifier := auth.Verifier{Secret: []byte(cfg.JWTSecret)}
	eng := engine.New(st, publisher, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r)

	// Public reads
	r.Get("/articles", handlers.ListArticles(st))
	r.Get("/articles/{article_id}/comments", handlers.ArticleComments(eng))
	r.Get("/comments", handlers.ListComments(eng))
	r.Get("/comments/{comment_id}", handlers.GetComment(eng))
	r.Get("/users", handlers.ListUsers(st))

	// Mutations and token verification require a validated credential.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/auth", handlers.VerifyToken())
		r.Post("/users", handlers.UpsertUser(st))
		r.Post("/articles", handlers.CreateArticle(eng))
		r.Delete("/articles/{article_id}", handlers.DeleteArticle(eng))
		r.Post("/articles/{article_id}/comments", handlers.CreateComment(eng))
		r.Post("/comments/{comment_id}", handlers.CreateReply(eng))
		r.Patch("/comments/{comment_id}", handlers.EditComment(eng))
		r.Delete("/comments/{comment_id}", handlers.DeleteComment(eng))
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Router:      r,
	})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the backend. Production requires a working Postgres
// connection and terminates the process otherwise; development falls
// back to the in-memory store.
func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.Production() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		return store.NewMemoryStore(), nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		if cfg.Production() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewMemoryStore(), nil
	}

	log.Info("store: postgres")
	return store.NewPostgresStore(pool), pool.Close
}

// initEvents connects to NATS when configured. The publisher degrades
// to a no-op stub when NATS is absent, so event delivery never blocks
// the request path.
func initEvents(cfg config.AppConfig, log *zap.Logger) *events.Publisher {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, domain events disabled")
		return events.New(nil, log)
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
	if err != nil {
		log.Warn("nats unavailable, domain events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn("jetstream unavailable, domain events disabled", zap.Error(err))
		return events.New(nil, log)
	}
	return events.New(js, log)
}
