// Package main boots the page statistics microservice: the queue consumer
// maintaining per-page counters and the HTTP facade over the same store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fairyhunter13/page-stats-service/internal/config"
	"github.com/fairyhunter13/page-stats-service/internal/consumer"
	httpapi "github.com/fairyhunter13/page-stats-service/internal/http"
	"github.com/fairyhunter13/page-stats-service/internal/obs"
	"github.com/fairyhunter13/page-stats-service/internal/queue"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.InitLogger("info")
		obs.Logger.Fatal().Err(err).Msg("config_load_failed")
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info().Msg("service_starting")

	var st store.Store
	if cfg.DevMode {
		st = store.NewMemStore()
		obs.Logger.Warn().Msg("using_in_memory_store")
	} else {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			obs.Logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis_unreachable")
		}
		st = store.NewRedisStore(rdb)
	}

	qc, err := queue.Dial(cfg.AMQPURL, cfg.StatsQueue, cfg.Prefetch)
	if err != nil {
		obs.Logger.Fatal().Err(err).Msg("amqp_connect_failed")
	}
	deliveries, err := qc.Deliveries()
	if err != nil {
		obs.Logger.Fatal().Err(err).Msg("amqp_consume_failed")
	}
	obs.Logger.Info().Str("queue", cfg.StatsQueue).Msg("consuming")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cons := consumer.New(st, qc, cfg.WorkerCount)
	consumerDone := make(chan struct{})
	go func() {
		cons.Run(ctx, deliveries)
		close(consumerDone)
	}()

	app := httpapi.NewApp(st)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		obs.Logger.Info().Str("addr", cfg.HTTPAddr).Msg("http_listen")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Fatal().Err(err).Msg("http_server_error")
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info().Str("signal", s.String()).Msg("shutdown_signal")

	// Stop the broker pushing new work, then let in-flight deliveries
	// finish and ack on the still-open channel.
	if err := qc.StopConsuming(); err != nil {
		obs.Logger.Error().Err(err).Msg("consumer_cancel_failed")
	}
	select {
	case <-consumerDone:
		obs.Logger.Info().Msg("shutdown_drain_complete")
	case <-time.After(cfg.ShutdownTimeout):
		obs.Logger.Warn().Msg("shutdown_drain_timeout")
		cancel()
	}

	srvCtx, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(srvCtx); err != nil {
		obs.Logger.Error().Err(err).Msg("http_shutdown_error")
	}
	if err := qc.Close(); err != nil {
		obs.Logger.Error().Err(err).Msg("amqp_close_error")
	}
	obs.Logger.Info().Msg("service_stopped")
}
