package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deathnote/internal/platform/config"
	"deathnote/internal/platform/httpserver"
	"deathnote/internal/platform/logger"
	"deathnote/internal/platform/metrics"
	"deathnote/internal/platform/middleware"
	"deathnote/internal/platform/redis"
	"deathnote/internal/registry/events"
	"deathnote/internal/registry/handler"
	"deathnote/internal/registry/scheduler"
	"deathnote/internal/registry/service"
	"deathnote/internal/registry/store"
	notestore "deathnote/internal/registry/store/note"
	ownerstore "deathnote/internal/registry/store/owner"
	personstore "deathnote/internal/registry/store/person"
	"deathnote/pkg/platform/httputil"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		persons service.PersonStore
		notes   service.NoteStore
		owners  service.OwnerStore
		dueSet  scheduler.DueLister
	)
	if cfg.Database.URL != "" {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			log.Error("opening database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Error("ensuring schema", "error", err)
			os.Exit(1)
		}
		pg := personstore.NewPostgres(db)
		persons, dueSet = pg, pg
		notes = notestore.NewPostgres(db)
		owners = ownerstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		mem := personstore.NewInMemory()
		persons, dueSet = mem, mem
		notes = notestore.NewInMemory()
		owners = ownerstore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		if backing, ok := persons.(personstore.Store); ok {
			cached := personstore.NewCached(backing, redisClient.Client,
				personstore.WithCacheLogger(log))
			persons = cached
			log.Info("person cache enabled")
		}
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafka(ctx, cfg.Kafka.Brokers,
			events.WithTopic(cfg.Kafka.Topic),
			events.WithKafkaLogger(log))
		if err != nil {
			log.Error("connecting to kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, service.WithEventPublisher(publisher))
		log.Info("event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	svc := service.New(persons, notes, owners, service.Config{
		DefaultDeadline: cfg.Registry.DefaultDeadline,
		DetailDeadline:  cfg.Registry.DetailDeadline,
		SingleOwnedNote: cfg.Registry.SingleOwnedNote,
	}, opts...)

	sweeper := scheduler.New(dueSet, svc,
		scheduler.WithInterval(cfg.Scheduler.Interval),
		scheduler.WithConcurrency(cfg.Scheduler.Concurrency),
		scheduler.WithLogger(log),
		scheduler.WithMetrics(m))
	go sweeper.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logging(log))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("cache unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.RequireAdminToken(cfg.Server.AdminToken, log))
		ar.Post("/sweep", func(w http.ResponseWriter, req *http.Request) {
			report, err := sweeper.Sweep(req.Context(), time.Now().UTC())
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, report)
		})
	})
	handler.New(svc, log).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
