package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/googollee/go-comet"
	"github.com/googollee/go-comet/config"
	"github.com/googollee/go-comet/internal/chat"
	"github.com/googollee/go-comet/logger"
)

func main() {
	path := flag.String("config", "", "path of the YAML config file")
	flag.Parse()

	if err := run(*path); err != nil {
		logger.Error(err, "cometd stopped")
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	room := chat.New(cfg.Connection.SuspendTimeout)
	co := comet.NewCoordinator(room, cfg.Options())

	handler, err := newHandler(cfg.Server.Router, cfg.Server.Path, co)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("cometd started", "addr", cfg.Server.Addr, "path", cfg.Server.Path, "router", cfg.Server.Router)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("cometd shutting down", "connections", co.Count())

		// suspended connections block Shutdown until they are closed
		if err := co.Close(); err != nil {
			logger.Error(err, "close coordinator")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
