package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

func newPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	switch {
	case len(cfg.KafkaBrokers) > 0:
		p, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		logger.Info("events_enabled", "broker", "kafka", "brokers", cfg.KafkaBrokers)
		return p
	case cfg.AMQPURL != "":
		p, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		logger.Info("events_enabled", "broker", "rabbitmq")
		return p
	default:
		logger.Info("events_disabled", "reason", "no KAFKA_BROKERS or AMQP_URL")
		return events.Nop{}
	}
}

func newIndex(ctx context.Context, cfg config.Config, logger *slog.Logger) search.Index {
	if cfg.ESURL == "" {
		logger.Info("search_index_disabled", "reason", "no ES_URL")
		return nil
	}
	idx, err := search.Connect(ctx, search.Config{
		URL:      cfg.ESURL,
		User:     cfg.ESUser,
		Password: cfg.ESPassword,
		Index:    cfg.ESIndex,
	})
	if err != nil {
		logger.Warn("search_index_disabled", "reason", "cannot reach elasticsearch", "error", err)
		return nil
	}
	return idx
}

func main() {
	cfg := config.Load()
	cfg.MustServer()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db open: %v", err)
	}

	r := repo.New(db)
	if err := r.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}

	publisher := newPublisher(cfg, logger)
	index := newIndex(ctx, cfg, logger)

	authSvc := &service.AuthService{
		Repo:          r,
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Events:        publisher,
		Producer:      cfg.ServiceName,
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(logging.IntoContext(ctx, logger), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			cancel()
			log.Fatalf("bootstrap admin: %v", err)
		}
	}
	cancel()

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowCredentials: true,
	}))

	httpserver.Register(e, &httpserver.Deps{
		DB:          db,
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: &service.CatalogService{
			Repo: r, Events: publisher, Index: index, Producer: cfg.ServiceName,
		}},
		OrderHandler: &httpserver.OrderHTTP{Svc: &service.OrderService{
			Repo: r, Events: publisher, Producer: cfg.ServiceName,
		}},
		JWTSecret: cfg.JWTAccessSecret,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("publisher_close_error", "error", err)
	}
	_ = pkgdb.Close(db)

	logger.Info("stopped")
}
