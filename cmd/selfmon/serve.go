package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/endpoint"
	"github.com/selfmon/selfmon/internal/meta"
	"github.com/selfmon/selfmon/internal/metrics"
	"github.com/selfmon/selfmon/internal/schedule"
)

// ShutdownTimeout is the limit to wait for the running requests and checks on shutdown.
var ShutdownTimeout = 30 * time.Second

func (cmd *SelfmonCommand) RunServer(ctx context.Context) (exitCode int) {
	cfg := cmd.Config

	mt := metrics.New()

	m, backend, log, code := cmd.openOrReport(mt.ObserveCheck)
	if code != 0 {
		return code
	}
	defer backend.Close()

	mt.Watch(m)

	scheduler := schedule.New(log)
	scheduler.OnTick(cfg.CheckSchedule, "check", func(ctx context.Context) {
		m.PerformCheck(ctx)
	})
	scheduler.OnTick(cfg.ResolveSchedule, "resolve", func(ctx context.Context) {
		m.Resolve(ctx)
	})

	if !cfg.ForceCheckProtected() {
		log.Warn().Msg("force check is disabled because user and password are not set")
	}

	srv := &http.Server{
		Handler: endpoint.New(m, endpoint.Options{
			User:         cfg.User,
			PasswordHash: cfg.PasswordHash,
			Runner:       scheduler,
			Metrics:      mt,
			Clock:        clock.System,
			Logger:       log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Error().Err(err).Str("listen", cfg.Listen).Msg("failed to listen")
		return 1
	}

	log.Info().
		Str("url", "http://"+ln.Addr().String()).
		Str("target", m.Target()).
		Str("check_interval", cfg.CheckSchedule.String()).
		Str("resolve_interval", cfg.ResolveSchedule.String()).
		Str("store", backend.String()).
		Str("version", meta.Version).
		Msg("start selfmon server")

	scheduler.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		log.Info().Msg("shutting down")

		sctx, scancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer scancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown server")
		}
		scheduler.Stop(sctx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("failed to serve")
		exitCode = 1
	}
	cancel()

	wg.Wait()

	return exitCode
}
