// Command authd serves the session authentication API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/mail"
	promexport "github.com/MrEthical07/sessionauth/metrics/export/prometheus"
	"github.com/MrEthical07/sessionauth/storage/boltstore"
	"github.com/MrEthical07/sessionauth/storage/sqlstore"
	"github.com/MrEthical07/sessionauth/transport/httpapi"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := LoadConfig(*configFile, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("authd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	b := sessionauth.New().
		WithConfig(cfg.Auth).
		WithLogger(logger).
		WithMetricsEnabled(cfg.Metrics.Enabled).
		WithLatencyHistograms(cfg.Metrics.Enabled)

	var closers []io.Closer
	if cfg.Log.AuditFile != "" {
		f, err := os.OpenFile(cfg.Log.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		closers = append(closers, f)
		b.WithAuditSink(sessionauth.NewJSONWriterSink(f))
	} else {
		b.WithAuditSink(sessionauth.NewSlogSink(logger))
	}

	storage, err := wireStorage(ctx, cfg, b)
	closers = append(closers, storage...)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()
	if err != nil {
		return err
	}

	if cfg.SMTP.Host != "" {
		mailer, err := mail.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		b.WithMailer(mailer)
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	opts := []httpapi.Option{httpapi.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			promexport.NewCollector(engine),
		)
		opts = append(opts, httpapi.WithMetrics(reg))
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	httpapi.New(engine, opts...).Register(r)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			slog.String("addr", cfg.Server.Addr),
			slog.String("users", cfg.Storage.Users),
			slog.String("sessions", engine.SessionStrategy()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// wireStorage opens the configured backends and hands them to b. The returned
// closers must be closed even when err is non-nil.
func wireStorage(ctx context.Context, cfg *Config, b *sessionauth.Builder) ([]io.Closer, error) {
	var closers []io.Closer

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return closers, fmt.Errorf("redis ping: %w", err)
		}
		b.WithRedis(rdb)
	}

	switch cfg.Storage.Users {
	case "bolt":
		store, err := boltstore.Open(cfg.Storage.DSN)
		if err != nil {
			return closers, err
		}
		closers = append(closers, store)
		b.WithUserStore(store)
		if cfg.Storage.Sessions == "bolt" {
			b.WithSessionStore(store)
		}
	default:
		dialect := sqlstore.SQLite
		if cfg.Storage.Users == "postgres" {
			dialect = sqlstore.Postgres
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.Storage.DSN)
		if err != nil {
			return closers, err
		}
		closers = append(closers, db)
		b.WithUserStore(db).WithDeviceStore(db)
		switch cfg.Storage.Sessions {
		case "sql":
			b.WithSessionStore(db)
		case "chain":
			b.WithChainStore(db)
		}
	}
	return closers, nil
}
