// Command svr-broker runs the Seawolf Video Router broker: a TCP listener
// accepting client and server source connections, the Source registry, and
// the per-stream Reencoder fan-out.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sevenwolf/svr/internal/broker"
	"github.com/sevenwolf/svr/internal/logger"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		logger.Logger().Warn("invalid log level, using default", "level", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	b := broker.New(broker.Config{
		ListenAddr:  cfg.listenAddr,
		DisableJPEG: cfg.disableJPEG,
	})

	if err := b.Start(); err != nil {
		log.Error("failed to start broker", "error", err)
		os.Exit(1)
	}
	log.Info("broker started", "addr", b.Addr().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := b.Stop(); err != nil {
			log.Error("broker stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("broker stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}
