package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fridgegames/leaderboard-engine/internal/leaderboard"
	"github.com/fridgegames/leaderboard-engine/internal/metrics"
	"github.com/fridgegames/leaderboard-engine/internal/rollover"
	"github.com/fridgegames/leaderboard-engine/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := envOr("PORT", "8080")
	dataPath := envOr("DATA_PATH", filepath.Join("data", "leaderboard.json"))
	staticDir := envOr("STATIC_DIR", "static")

	// --- Initialize backend ---
	var backend store.Backend
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresBackend(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		backend = pg
		slog.Info("connected to PostgreSQL")
	} else {
		fb, err := store.NewFileBackend(dataPath)
		if err != nil {
			slog.Error("data file setup failed", "err", err)
			os.Exit(1)
		}
		backend = fb
		slog.Info("using JSON file store", "path", dataPath)
	}

	// Wrap with a Redis document cache if configured.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		backend = store.NewCachedBackend(backend, rdb, 30*time.Second)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	ledger := store.NewLedger(backend)

	// --- WebSocket hub ---
	hub := leaderboard.NewHub()
	go hub.Run()

	// --- Leaderboard service ---
	svc := leaderboard.NewService(ledger, rollover.New(), hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"leaderboard-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// WebSocket endpoint for real-time leaderboard updates.
		r.Get("/ws", hub.HandleWS)

		r.Get("/leaderboard", svc.GetLeaderboard)

		r.Get("/user/{userID}", svc.GetUser)
		r.Post("/user/{userID}", svc.UpdateUser)
		r.Post("/user/{userID}/trade", svc.RecordTrade)

		r.Post("/close_month", svc.CloseMonth)
		r.Get("/winners", svc.GetLatestWinners)
		r.Get("/winners/{month}", svc.GetWinners)
	})

	// Static frontend: index at the root, assets under /static/.
	index := filepath.Join(staticDir, "index.html")
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"service":"leaderboard-engine","hint":"static frontend not installed"}`))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("leaderboard-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down leaderboard-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("leaderboard-engine stopped")
}
