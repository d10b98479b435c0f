// Package main runs the head count camera pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/camera/mediadev"
	"github.com/evsproject/headcount/camera/webcam"
	"github.com/evsproject/headcount/config"
	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/ml"
	"github.com/evsproject/headcount/ml/inference"
	"github.com/evsproject/headcount/ml/inference/caffe"
	"github.com/evsproject/headcount/pipeline"
	"github.com/evsproject/headcount/sink"
	"github.com/evsproject/headcount/sink/mjpeg"
	"github.com/evsproject/headcount/sink/window"
	"github.com/evsproject/headcount/vision/objectdetection"
)

const (
	flagConfig      = "config"
	flagDebug       = "debug"
	flagSnapshotDir = "snapshot-dir"
	flagHeadless    = "headless"
	flagLogFile     = "log-file"

	logFileMaxSizeMB = 50

	windowName = "headcount"
)

// OpenCV windows must be driven from the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	app := &cli.App{
		Name:            "headcount",
		Usage:           "count faces in a live camera feed",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagSnapshotDir,
				Value: ".",
				Usage: "write snapshots to `DIR`",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "run without a window, reading commands (play, pause, reset, snapshot, exit) from stdin",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotating it as it grows",
			},
		},
		Action: runAction,
	}
	if err := app.Run(os.Args); err != nil {
		logging.Global().Fatal(err)
	}
}

func runAction(c *cli.Context) error {
	logger := logging.NewLogger("headcount")
	if path := c.String(flagLogFile); path != "" {
		logger.AddAppender(logging.NewRotatingFileAppender(path, logFileMaxSizeMB))
	}
	defer goutils.UncheckedErrorFunc(logger.Sync)
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(c.Context, path, logger); err != nil {
			return err
		}
	}
	if cfg.Debug || c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, cfg, c.String(flagSnapshotDir), c.Bool(flagHeadless), logger)
}

func run(ctx context.Context, cfg *config.Config, snapshotDir string, headless bool, logger logging.Logger) error {
	src, srcErr := openSource(cfg.Camera, logger.Sublogger("camera"))
	if srcErr != nil {
		logger.Errorw("cannot open camera, use reset to retry", "error", srcErr)
	}

	var engine inference.Engine
	loaded, err := caffe.Load(cfg.Model.ConfigPath, cfg.Model.WeightsPath, logger.Sublogger("model"))
	if err != nil {
		logger.Errorw("cannot load face detection model, faces will not be detected", "error", err)
	} else {
		engine = loaded
	}
	extractor := objectdetection.NewExtractor(
		engine,
		ml.BlobParams{Size: cfg.InputSize(), Mean: cfg.Mean()},
		logger.Sublogger("extractor"),
	)

	var recorder sink.Recorder
	if cfg.RecordingEnabled {
		rec, err := mjpeg.NewRecorder(cfg.RecordingPath, cfg.RecordingFPS, src.Resolution(), logger.Sublogger("recording"))
		if err != nil {
			logger.Errorw("video writer not opened, frames will not be recorded", "error", err)
		} else {
			recorder = rec
		}
	}

	var display sink.Display
	var win *window.Window
	if !headless {
		win = window.New(windowName)
		display = win
	}

	controller, err := pipeline.NewController(pipeline.Options{
		Source:     src,
		SourceDown: srcErr != nil,
		Extractor:  extractor,
		Selector: objectdetection.Selector{
			Threshold:    cfg.ConfidenceThreshold,
			Dedup:        objectdetection.DedupMode(cfg.Dedup),
			MinArea:      cfg.MinFaceArea,
			NMSThreshold: cfg.NMSIoUThreshold,
		},
		Sink:      sink.New(display, recorder, logger.Sublogger("sink")),
		FPSWindow: cfg.FPSWindow(),
		OnFrameRate: func(fps float64) {
			if win != nil {
				win.ShowFrameRate(fps)
			}
		},
	}, logger.Sublogger("pipeline"))
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error {
		return controller.Close(context.Background())
	})

	runner := pipeline.NewRunner(controller, nil, cfg.TickInterval(), logger.Sublogger("pipeline"))
	runner.SnapshotPath = func(now time.Time) string {
		name := fmt.Sprintf("snapshot-%s-%s.jpg", controller.SessionID()[:8], now.Format("20060102-150405.000"))
		return filepath.Join(snapshotDir, name)
	}

	commands := make(chan pipeline.Command)
	if headless {
		goutils.PanicCapturingGo(func() {
			if err := pipeline.ReadCommands(ctx, os.Stdin, commands, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnw("stopped reading commands", "error", err)
			}
		})
	} else {
		runner.Poll = func() (pipeline.Command, bool) {
			return pipeline.CommandForKey(win.WaitKey(1))
		}
	}

	logger.Infow("running", "session", controller.SessionID(), "tick_interval", cfg.TickInterval(), "headless", headless)
	if err := runner.Run(ctx, commands); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	stats := controller.Stats()
	logger.Infow("stopped", "ticks", stats.Ticks, "published", stats.Published, "empty_frames", stats.EmptyFrames)
	return nil
}

// openSource returns a usable source even when err is set.
func openSource(cfg config.CameraConfig, logger logging.Logger) (camera.Source, error) {
	if cfg.Driver == config.CameraDriverMediaDevices {
		return mediadev.NewSource(cfg.Width, cfg.Height, logger)
	}
	return webcam.NewSource(cfg.DeviceID, cfg.Width, cfg.Height, logger)
}
