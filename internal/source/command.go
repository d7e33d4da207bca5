package source

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/feed"
)

// Command runs an external bridge that prints status lines on stdout, for
// example a vendor BLE helper, and restarts it whenever it exits.
type Command struct {
	Argv     []string
	Interval time.Duration // backoff base between restarts
}

func (c *Command) Name() string {
	if len(c.Argv) == 0 {
		return "command"
	}
	return c.Argv[0]
}

func (c *Command) Run(ctx context.Context, sink feed.Sink) error {
	if len(c.Argv) == 0 {
		return fmt.Errorf("command source: no command configured")
	}
	if _, err := exec.LookPath(c.Argv[0]); err != nil {
		return fmt.Errorf("command source: %w", err)
	}

	failures := 0
	for {
		started := time.Now()
		err := c.runOnce(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}

		// a bridge that ran for a while is not failing, just reconnecting
		if time.Since(started) > maxBackoff {
			failures = 0
		}
		wait := calculateBackoff(failures, c.Interval)
		failures++

		status := fmt.Sprintf("%s exited, restarting in %s", c.Name(), wait)
		if err != nil {
			log.WithError(err).WithField("command", strings.Join(c.Argv, " ")).Warn("bridge process failed")
			sink.Deliver(feed.StateEvent(feed.StateError, status, err))
		} else {
			sink.Deliver(feed.StateEvent(feed.StateDisconnected, status, nil))
		}
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

func (c *Command) runOnce(ctx context.Context, sink feed.Sink) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(cctx, c.Argv[0], c.Argv[1:]...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Name(), err)
	}
	log.WithField("pid", cmd.Process.Pid).Infof("started bridge %s", c.Name())

	lines := &Lines{Label: c.Name(), Reader: out}
	filtered := feed.SinkFunc(func(e feed.Event) {
		// end of the pipe is reported by Run once the process is reaped
		if !e.HasReading && e.Err == nil && e.State == feed.StateDisconnected {
			return
		}
		sink.Deliver(e)
	})
	readErr := lines.Run(cctx, filtered)

	cancel()
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	if waitErr != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", c.Name(), waitErr)
	}
	return nil
}
