package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/journeycas"
	"github.com/unkn0wn-root/journeycas/codec"
	asynchook "github.com/unkn0wn-root/journeycas/hooks/async"
	"github.com/unkn0wn-root/journeycas/hooks/loghooks"
	"github.com/unkn0wn-root/journeycas/hooks/prom"
	"github.com/unkn0wn-root/journeycas/internal/config"
	"github.com/unkn0wn-root/journeycas/internal/httpapi"
	"github.com/unkn0wn-root/journeycas/internal/seed"
	jlogrus "github.com/unkn0wn-root/journeycas/log/logrus"
	jslog "github.com/unkn0wn-root/journeycas/log/slog"
	jzap "github.com/unkn0wn-root/journeycas/log/zap"
	"github.com/unkn0wn-root/journeycas/store"
	"github.com/unkn0wn-root/journeycas/store/local"
	"github.com/unkn0wn-root/journeycas/store/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "journeyd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()
	log.Info("starting journeyd", journeycas.Fields{"store": cfg.Store, "codec": cfg.Codec, "addr": cfg.HTTPAddr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	docCodec, err := codec.ByName[journeycas.Journey](cfg.Codec)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logHooks := asynchook.New(loghooks.New(log, loghooks.Options{
		ConflictEvery: cfg.HookLogSample,
		CommitEvery:   cfg.HookLogSample,
	}), 1, 1024)
	defer logHooks.Close()

	svc, err := journeycas.New(journeycas.Options{
		Store:     st,
		Codec:     codec.Limit[journeycas.Journey]{Inner: docCodec, MaxDecode: cfg.MaxDecodeBytes},
		Namespace: cfg.Namespace,
		Policy: journeycas.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: cfg.BaseBackoff,
			MaxBackoff:  cfg.MaxBackoff,
		},
		Logger: log,
		Hooks:  journeycas.MultiHooks{prom.New(reg, cfg.MetricsNamespace), logHooks},
	})
	if err != nil {
		_ = st.Close(ctx)
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Error("store close failed", journeycas.Fields{"err": err})
		}
	}()

	if cfg.SeedFile != "" {
		seedJourneys(ctx, svc, cfg.SeedFile, log)
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(svc, journeycas.NewKV(st), log).Routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.WithRequestID(mux, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", journeycas.Fields{"addr": cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("received signal", journeycas.Fields{"signal": sig.String()})
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", journeycas.Fields{"err": err})
	}
	log.Info("journeyd stopped", nil)
	return nil
}

// seedJourneys loads the bootstrap file. A missing or broken file is logged
// and the service starts without it.
func seedJourneys(ctx context.Context, svc journeycas.Service, path string, log journeycas.Logger) {
	journeys, err := seed.Load(path)
	if errors.Is(err, seed.ErrNoFile) {
		log.Warn("seed file not found", journeycas.Fields{"path": path})
		return
	}
	if err != nil {
		log.Error("seed file unreadable", journeycas.Fields{"path": path, "err": err})
		return
	}
	if err := svc.Initialize(ctx, journeys); err != nil {
		log.Error("seeding journeys failed", journeycas.Fields{"path": path, "err": err})
		return
	}
	log.Info("cache initialized with journeys", journeycas.Fields{"count": len(journeys)})
}

func newLogger(cfg *config.Config) (journeycas.Logger, func(), error) {
	switch cfg.Logger {
	case "logrus":
		return jlogrus.NewJSON(os.Stdout, cfg.LogLevel), func() {}, nil
	case "slog":
		return jslog.NewJSON(os.Stdout, cfg.LogLevel), func() {}, nil
	default:
		l, err := jzap.NewProduction(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("zap: %w", err)
		}
		return l, func() { _ = l.Sync() }, nil
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store == "local" {
		return local.New(local.Config{})
	}
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.RedisOpTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return redis.New(redis.Config{Client: rdb, CloseClient: true, OpTimeout: cfg.RedisOpTimeout})
}
