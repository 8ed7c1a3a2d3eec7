package main

import (
	"flag"
	"fmt"
	"os"
)

type cliConfig struct {
	brokerAddr        string
	name              string
	encoding          string
	logLevel          string
	payloadBufferSize int
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("svr-source", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.brokerAddr, "broker", "localhost:9935", "Broker TCP address")
	fs.StringVar(&cfg.name, "name", "", "Source name (required)")
	fs.StringVar(&cfg.encoding, "encoding", "", "Encoding descriptor, e.g. \"jpeg;quality=90\" (default: broker's negotiated default)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.IntVar(&cfg.payloadBufferSize, "payload-buffer-size", 4096, "Per-chunk payload size used when draining the encoder (spec default 4096)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.name == "" {
		return nil, fmt.Errorf("-name is required")
	}
	if cfg.payloadBufferSize <= 0 {
		return nil, fmt.Errorf("-payload-buffer-size must be positive")
	}
	return cfg, nil
}
