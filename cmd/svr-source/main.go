// Command svr-source runs a minimal Seawolf Video Router producer: it dials
// a broker, opens a client source, and streams webcam frames to it until
// interrupted, the producer-side counterpart to n0remac-robot-webrtc's
// cvpipe capture loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/sevenwolf/svr/internal/comm"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/logger"
	"github.com/sevenwolf/svr/internal/source"
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
	log := logger.Logger().With("component", "cli", "source", cfg.name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := comm.Dial(ctx, cfg.brokerAddr)
	if err != nil {
		log.Error("dial broker", "addr", cfg.brokerAddr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	src, err := source.Open(conn, cfg.name)
	if err != nil {
		log.Error("open source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	src.SetPayloadBufferSize(cfg.payloadBufferSize)

	if cfg.encoding != "" {
		if err := src.SetEncoding(cfg.encoding); err != nil {
			log.Error("set encoding", "descriptor", cfg.encoding, "error", err)
			os.Exit(1)
		}
	}

	webcam, err := gocv.OpenVideoCapture(0)
	if err != nil {
		log.Error("open video capture", "error", err)
		os.Exit(1)
	}
	defer webcam.Close()

	log.Info("source streaming", "broker", cfg.brokerAddr)

	mat := gocv.NewMat()
	defer mat.Close()

	for ctx.Err() == nil {
		if ok := webcam.Read(&mat); !ok || mat.Empty() {
			continue
		}

		frame := frameprops.Frame{Mat: mat.Clone()}
		if err := src.SendFrame(frame); err != nil {
			log.Warn("send frame", "error", err)
		}
		frame.Close()

		select {
		case <-ctx.Done():
		case <-time.After(33 * time.Millisecond):
		}
	}

	log.Info("shutdown signal received")
}
