package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustgreen/backend/internal/application"
	appanalysis "github.com/rustgreen/backend/internal/application/analysis"
	appsessions "github.com/rustgreen/backend/internal/application/sessions"
	"github.com/rustgreen/backend/internal/config"
	anadom "github.com/rustgreen/backend/internal/domain/analysis"
	sessdom "github.com/rustgreen/backend/internal/domain/sessions"
	aiopenai "github.com/rustgreen/backend/internal/infra/ai/openai"
	mysqlp "github.com/rustgreen/backend/internal/infra/db/mysql"
	postgresp "github.com/rustgreen/backend/internal/infra/db/postgres"
	"github.com/rustgreen/backend/internal/infra/httpserver"
	"github.com/rustgreen/backend/internal/infra/storage"
	"github.com/rustgreen/backend/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database
	var db *sql.DB
	var sessionRepo sessdom.Repository
	var resultRepo anadom.ResultRepository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		sessionRepo = postgresp.NewSessionRepository(db)
		resultRepo = postgresp.NewResultRepository(db)
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		sessionRepo = mysqlp.NewSessionRepository(db)
		resultRepo = mysqlp.NewResultRepository(db)
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init source store
	var source sessdom.SourceStore
	switch cfg.Storage.Driver {
	case "minio":
		source, err = storage.NewMinioStore(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
	case "local":
		source, err = storage.NewLocalStore(cfg.Storage.BasePath)
		if err != nil {
			log.Fatalf("local storage init error: %v", err)
		}
	default:
		log.Fatalf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	// init llm client + pipeline
	client := aiopenai.NewClient(aiopenai.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLMTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLMRetryDelay(),
		TrackTokens: cfg.LLM.TrackTokens,
	})
	pipeline := appanalysis.NewPipeline(client)

	// init queue + worker
	clock := application.SystemClock{}
	queue := appanalysis.NewQueue()
	worker := &appanalysis.Worker{
		Sessions: sessionRepo,
		Results:  resultRepo,
		Source:   source,
		Pipeline: pipeline,
		Queue:    queue,
		Clock:    clock,
		Enabled:  cfg.LLM.Enabled,
	}
	worker.Start()

	// init service
	svc := &appsessions.Service{
		Repo:    sessionRepo,
		Results: resultRepo,
		Source:  source,
		Queue:   queue,
		Clock:   clock,
	}

	// init router + probes
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(100, 10))
	mux.Use(middleware.APIKeyAuth(cfg.Server.APIKey))

	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Mount("/", httpserver.NewRouter(svc, cfg.Server.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: drain HTTP first, then let the worker finish the
	// in-flight job before exiting.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	worker.Stop()
}
