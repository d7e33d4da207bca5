package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luki/o2ring/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file (default ~/.config/o2ring/config.toml)")
	sourceKind := flag.String("source", "", "reading source: simulated, stdin, file, command, mqtt or ble")
	interval := flag.Duration("interval", 0, "reading interval (default 2s)")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9108")
	plain := flag.Bool("plain", false, "print one line per reading instead of the dashboard")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:  *configPath,
		Source:      *sourceKind,
		MetricsAddr: *metricsAddr,
		Plain:       *plain,
		Debug:       *debug,
	}
	if d := *interval; d > 0 {
		opts.Interval = d
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "o2ring: %v\n", err)
		return 1
	}
	return 0
}
