// Package app wires configuration, logging, the selected reading source and
// the display sinks together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/config"
	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/logging"
	"github.com/luki/o2ring/internal/metrics"
	"github.com/luki/o2ring/internal/monitor"
	"github.com/luki/o2ring/internal/source"
)

const eventBuffer = 64

// Options configure a run. Zero values defer to the config file.
type Options struct {
	ConfigPath  string
	Source      string
	Interval    time.Duration
	MetricsAddr string
	Plain       bool
	Debug       bool

	Stdin  io.Reader // defaults to os.Stdin
	Stdout io.Writer // defaults to os.Stdout
}

// Run loads the configuration and runs the monitor until the UI exits or
// ctx is cancelled. In plain mode it also returns when the source ends.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(&cfg, opts); err != nil {
		return err
	}

	logFile := cfg.Log.File
	if opts.Plain {
		logFile = ""
	}
	level := cfg.Log.Level
	if opts.Debug {
		level = "debug"
	}
	closer, err := logging.Setup(level, logFile)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	src, err := BuildSource(cfg, stdin)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"source": src.Name(), "interval": cfg.Source.Interval}).Info("starting monitor")

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sinks feed.Fanout
	if cfg.Metrics.Listen != "" {
		ms := metrics.New()
		sinks = append(sinks, ms)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ms.Serve(ctx, cfg.Metrics.Listen); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	if opts.Plain {
		sinks = append(sinks, feed.NewPlainSink(stdout))
		return produce(ctx, src, sinks)
	}

	events := feed.NewChannelSink(eventBuffer)
	sinks = append(sinks, events)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer events.Close()
		if err := produce(ctx, src, sinks); err != nil {
			events.Deliver(feed.StateEvent(feed.StateError, "Source failed", err))
		}
	}()

	programOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(stdout),
	}
	if cfg.Source.Kind == config.SourceStdin {
		// status lines arrive on stdin, so keys come from the terminal
		programOpts = append(programOpts, tea.WithInputTTY())
	}
	p := tea.NewProgram(monitor.New(monitor.Options{
		Events:     events.Events(),
		SourceName: src.Name(),
	}), programOpts...)

	_, err = p.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func produce(ctx context.Context, src source.Source, sink feed.Sink) error {
	err := src.Run(ctx, sink)
	if err != nil {
		log.WithError(err).WithField("source", src.Name()).Error("source failed")
	} else {
		log.WithField("source", src.Name()).Info("source finished")
	}
	return err
}

func applyOverrides(cfg *config.Config, opts Options) error {
	if opts.Source != "" {
		if err := config.ValidateKind(opts.Source); err != nil {
			return err
		}
		cfg.Source.Kind = opts.Source
	}
	if opts.Interval > 0 {
		cfg.Source.Interval = opts.Interval
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Listen = opts.MetricsAddr
	}
	return nil
}
