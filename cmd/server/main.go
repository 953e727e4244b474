package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/gemini-chat/internal/ai"
	"github.com/suPer8Hu/gemini-chat/internal/chat"
	"github.com/suPer8Hu/gemini-chat/internal/config"
	"github.com/suPer8Hu/gemini-chat/internal/db"
	"github.com/suPer8Hu/gemini-chat/internal/httpapi"
	"github.com/suPer8Hu/gemini-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/gemini-chat/internal/logger"
	"github.com/suPer8Hu/gemini-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/gemini-chat/internal/store/redisstore"
	"github.com/suPer8Hu/gemini-chat/internal/workspace"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}
	repo := chat.NewRepo(gdb)

	provider, err := ai.RegistryFromConfig(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Fatal("ai provider", zap.String("provider", cfg.AIProvider), zap.Error(err))
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}
	gen := ai.NewClient(provider,
		ai.WithRetry(cfg.GenMaxAttempts, cfg.GenBaseDelay),
		ai.WithLogger(log),
	)

	var store workspace.Store
	switch cfg.WorkspaceStore {
	case "memory":
		store = workspace.NewMemoryStore()
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		rs := redisstore.New(rdb, cfg.SubmitTimeout+30*time.Second)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rs.Ping(pctx)
		cancel()
		if err != nil {
			log.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		store = rs
	}

	orch := workspace.New(repo, gen, store, log, workspace.WithTimeout(cfg.SubmitTimeout))
	svc := chat.NewService(repo, gen, log)

	var jobs handlers.JobPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Warn("rabbitmq unavailable, async generation disabled", zap.Error(err))
	} else {
		defer pub.Close()
		jobs = pub
	}

	h := handlers.NewHandler(orch, svc, jobs, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("provider", cfg.AIProvider),
			zap.String("db", cfg.DBDriver),
			zap.String("workspace_store", cfg.WorkspaceStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
