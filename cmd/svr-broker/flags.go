package main

import (
	"flag"
	"fmt"
	"os"
)

// cliConfig holds user-supplied flag values prior to translation into
// broker.Config, matching the teacher's cliConfig/parseFlags split
// (cmd/rtmp-server/flags.go).
type cliConfig struct {
	listenAddr  string
	logLevel    string
	disableJPEG bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("svr-broker", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.listenAddr, "listen", ":9935", "TCP listen address (e.g. :9935 or 0.0.0.0:9935)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.disableJPEG, "disable-jpeg", false, "Omit jpeg from the broker's encoding registry (reproduces scenario S2)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}
