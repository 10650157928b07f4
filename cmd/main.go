package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/ai"
	"github.com/Vovarama1992/xianyu-reply-engine/internal/config"
	"github.com/Vovarama1992/xianyu-reply-engine/internal/reply"
	"github.com/Vovarama1992/xianyu-reply-engine/internal/settingsbus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := reply.Open(pingCtx, cfg.StoreDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	store, err := reply.NewRepo(db, cfg.StoreDriver)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	// --- AI ---
	clients := ai.NewClientManager(cfg.BackendTimeout)
	dispatcher := ai.NewDispatcher(clients, ai.WithTimeout(cfg.BackendTimeout))

	go evictIdleClients(ctx, clients, cfg.ClientEvictInterval, cfg.ClientMaxIdle)

	// --- settings invalidation ---
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		listener := settingsbus.NewListener(rdb, cfg.SettingsChannel, clients)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Printf("[bus] listener stopped: %v", err)
			}
		}()
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Reply module wiring ---
	replyService := reply.NewService(store, store, dispatcher, cfg.Prompts)
	replyHandler := reply.NewHandler(replyService, clients)

	reply.RegisterRoutes(r, replyHandler)

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func evictIdleClients(ctx context.Context, clients *ai.ClientManager, every, maxIdle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			clients.EvictIdle(maxIdle)
		}
	}
}
