package pipeline

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/evsproject/headcount/logging"
)

// DefaultTickInterval is the pipeline cadence.
const DefaultTickInterval = 30 * time.Millisecond

// A Runner ticks a Controller at a fixed interval and applies commands between ticks, all from the
// goroutine that calls Run.
type Runner struct {
	controller *Controller
	clk        clock.Clock
	interval   time.Duration
	logger     logging.Logger

	// Poll, if set, is called after every tick and may return a command to apply.
	Poll func() (Command, bool)
	// SnapshotPath returns where a snapshot taken at the given time is written.
	SnapshotPath func(now time.Time) string
}

// NewRunner returns a Runner for controller. A nil clk means the wall clock.
func NewRunner(controller *Controller, clk clock.Clock, interval time.Duration, logger logging.Logger) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		controller: controller,
		clk:        clk,
		interval:   interval,
		logger:     logger,
		SnapshotPath: func(now time.Time) string {
			return "snapshot-" + now.Format("20060102-150405.000") + ".jpg"
		},
	}
}

// Run ticks until an exit command arrives, in which case it returns nil, or ctx is done.
// Ticks missed while a tick runs are dropped.
func (r *Runner) Run(ctx context.Context, commands <-chan Command) error {
	ticker := r.clk.Ticker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if r.apply(ctx, cmd) {
				return nil
			}
		case <-ticker.C:
			if err := r.controller.Tick(ctx); err != nil {
				r.logger.Warnw("tick failed", "error", err)
			}
			if r.Poll == nil {
				continue
			}
			if cmd, ok := r.Poll(); ok && r.apply(ctx, cmd) {
				return nil
			}
		}
	}
}

// apply runs cmd and reports whether the runner should stop.
func (r *Runner) apply(ctx context.Context, cmd Command) bool {
	r.logger.Debugw("command", "command", cmd)
	switch cmd {
	case CommandPlay:
		r.controller.Play()
	case CommandPause:
		r.controller.Pause()
	case CommandReset:
		if err := r.controller.Reset(ctx); err != nil {
			r.logger.Errorw("reset failed", "error", err)
		}
	case CommandSnapshot:
		path := r.SnapshotPath(r.clk.Now())
		if err := r.controller.Snapshot(path); err != nil {
			if errors.Is(err, ErrNoFrame) {
				r.logger.Warn("No frame available to capture")
			} else {
				r.logger.Errorw("snapshot failed", "error", err)
			}
		}
	case CommandExit:
		r.logger.Info("exiting")
		return true
	default:
		r.logger.Warnw("ignoring unknown command", "command", int(cmd))
	}
	return false
}
