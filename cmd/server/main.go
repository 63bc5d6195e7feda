package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qboard/qboard/internal/analysis"
	"github.com/qboard/qboard/internal/announcement"
	"github.com/qboard/qboard/internal/audit"
	"github.com/qboard/qboard/internal/cluster"
	"github.com/qboard/qboard/internal/course"
	"github.com/qboard/qboard/internal/identity"
	"github.com/qboard/qboard/internal/platform/cache"
	"github.com/qboard/qboard/internal/platform/config"
	"github.com/qboard/qboard/internal/platform/database"
	"github.com/qboard/qboard/internal/qa"
	"github.com/qboard/qboard/internal/question"
	"github.com/qboard/qboard/internal/reconcile"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildApp wires stores and services. With no database URL everything runs
// in memory, which is how the test suite and local development use it.
func buildApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	var (
		db      *database.DB
		cleanup = func() {}
	)

	var (
		courses       course.Store
		questions     question.Store
		clusters      cluster.Store
		qas           qa.Store
		announcements announcement.Store
		auditLog      audit.Logger
		statsCache    *cache.Cache
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		cleanup = db.Close

		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("applying schema: %w", err)
		}

		courses, err = course.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		questions, err = question.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		clusters, err = cluster.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		qas, err = qa.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		announcements, err = announcement.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		auditLog = audit.NewPostgresLogger(db.Pool)
		slog.Info("using postgres stores")
	} else {
		courses = course.NewMemoryStore()
		questions = question.NewMemoryStore()
		clusters = cluster.NewMemoryStore()
		qas = qa.NewMemoryStore()
		announcements = announcement.NewMemoryStore()
		auditLog = audit.NewMemoryLogger()
		slog.Info("using in-memory stores")
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, statistics will not be cached", "error", err)
		} else {
			statsCache = c
			prev := cleanup
			cleanup = func() {
				_ = c.Close()
				prev()
			}
		}
	}

	if cfg.Catalog.Path != "" {
		entries, err := course.LoadCatalog(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading course catalog: %w", err)
		}
		seeded, err := course.Seed(ctx, courses, entries)
		if err != nil {
			return nil, nil, fmt.Errorf("seeding course catalog: %w", err)
		}
		slog.Info("course catalog seeded", "path", cfg.Catalog.Path, "courses", seeded)
	}

	pseudo, err := identity.NewPseudonymizer(cfg.Identity.Salt)
	if err != nil {
		return nil, nil, err
	}

	clusterSvc, err := cluster.NewService(clusters, questions, auditLog)
	if err != nil {
		return nil, nil, err
	}
	questionSvc, err := question.NewService(question.ServiceConfig{
		Store:    questions,
		Courses:  courses,
		Pseudo:   pseudo,
		Recount:  clusterSvc,
		Audit:    auditLog,
		Cache:    statsCache,
		StatsTTL: time.Duration(cfg.StatsTTL) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	qaSvc, err := qa.NewService(qas, questions, clusterSvc, auditLog)
	if err != nil {
		return nil, nil, err
	}
	announcementSvc, err := announcement.NewService(announcements, courses, auditLog)
	if err != nil {
		return nil, nil, err
	}
	engine, err := reconcile.NewEngine(questions, clusters, clusterSvc, auditLog)
	if err != nil {
		return nil, nil, err
	}

	var analyzer *analysis.Client
	if cfg.Analysis.URL != "" {
		analyzer = analysis.NewClient(cfg.Analysis.URL, cfg.Analysis.APIKey)
	}

	return &app{
		courses:       courses,
		questions:     questionSvc,
		clusters:      clusterSvc,
		qas:           qaSvc,
		announcements: announcementSvc,
		engine:        engine,
		analyzer:      analyzer,
		db:            db,
		cache:         statsCache,
	}, cleanup, nil
}
