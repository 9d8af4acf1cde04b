package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool, w io.Writer) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Options --------------------

type options struct {
	debug     bool
	boardDev  string
	boardBaud int
	serialDev string
	usbPort   string
	usbRaw    string
	settle    time.Duration
	sim       bool
	tick      time.Duration
	monitor   string
	logPath   string
}

func parseFlags() options {
	var o options
	flag.BoolVar(&o.debug, "debug", false, "enable debug logging (adds source location)")
	flag.StringVar(&o.boardDev, "board", "/dev/ttyACM0", "serial device of the Firmata board driving the matrix")
	flag.IntVar(&o.boardBaud, "board-baud", FirmataBaud, "Firmata baud rate")
	flag.StringVar(&o.serialDev, "serial", "", "serial device for MIDI out at 31250 baud (empty disables)")
	flag.StringVar(&o.usbPort, "usb", "", "MIDI output port name pattern for USB MIDI (empty disables)")
	flag.StringVar(&o.usbRaw, "usb-raw", "", "file or device receiving raw 4-byte USB MIDI packets")
	flag.DurationVar(&o.settle, "settle", 2*time.Millisecond, "wait after selecting a column before reading rows")
	flag.BoolVar(&o.sim, "sim", false, "run against a virtual matrix in the terminal")
	flag.DurationVar(&o.tick, "tick", 5*time.Millisecond, "scan interval in -sim mode")
	flag.StringVar(&o.monitor, "monitor", "", "log notes arriving on the MIDI input matching this pattern, then exit")
	flag.StringVar(&o.logPath, "log", "", "write logs to this file instead of stderr")
	flag.Parse()
	return o
}

// -------------------- Main --------------------

func main() {
	opts := parseFlags()

	var logOut io.Writer = os.Stderr
	if opts.sim {
		logOut = io.Discard // the TUI owns the terminal
	}
	if opts.logPath != "" {
		f, err := os.OpenFile(opts.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log %s: %v\n", opts.logPath, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	initLogger(opts.debug, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("keymatrix: fatal", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := DefaultConfig()
	logger.Info("keymatrix starting",
		"rows", cfg.Rows,
		"cols", cfg.Cols,
		"base_pitch", pitchName(cfg.BasePitch),
		"velocity", cfg.Velocity,
		"channel", cfg.Channel,
		"sim", opts.sim,
		"debug", opts.debug,
	)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.monitor != "" {
		return runMonitor(ctx, opts.monitor)
	}

	var sinks []Sink
	var ticks []func()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if opts.serialDev != "" {
		sp, err := OpenSerial(opts.serialDev, SerialRate)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = sp.Close() })
		sinks = append(sinks, NewSerialSink(sp))
	}

	if opts.usbPort != "" {
		drv, err := rtmididrv.New()
		if err != nil {
			return fmt.Errorf("rtmididrv: %w", err)
		}
		watcher := NewOutWatcher(drv, opts.usbPort)
		closers = append(closers, func() {
			watcher.Close()
			_ = drv.Close()
		})
		watcher.Tick()
		ticks = append(ticks, watcher.Tick)
		sinks = append(sinks, NewUSBSink(watcher, 0))
	}

	if opts.usbRaw != "" {
		f, err := os.OpenFile(opts.usbRaw, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("usb-raw: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })
		sinks = append(sinks, NewUSBSink(NewStreamPort(f), 0))
	}

	if opts.sim {
		return runSim(ctx, cfg, opts.tick, sinks, ticks)
	}
	return runBoard(ctx, cfg, opts, sinks, ticks)
}

func runBoard(ctx context.Context, cfg Config, opts options, sinks []Sink, ticks []func()) error {
	sp, err := OpenSerial(opts.boardDev, opts.boardBaud)
	if err != nil {
		return err
	}
	board := NewBoard(sp)
	defer board.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := board.Connect(connectCtx); err != nil {
		return err
	}

	engine, err := NewEngine(cfg, NewShiftRegister(board, cfg), NewRowBank(board, cfg.RowPins), sinks...)
	if err != nil {
		return err
	}
	engine.Settle = opts.settle

	logger.Info("running – scanning matrix", "board", opts.boardDev, "settle", opts.settle, "sinks", len(sinks))
	return engine.Run(ctx, ticks...)
}

func runSim(ctx context.Context, cfg Config, tick time.Duration, sinks []Sink, ticks []func()) error {
	matrix := NewVirtualMatrix(cfg)
	recorder := NewRecordingSink(256)
	engine, err := NewEngine(cfg, NewShiftRegister(matrix, cfg), NewRowBank(matrix, cfg.RowPins), append(sinks, recorder)...)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newSimModel(engine, matrix, recorder, tick, ticks...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	engine.ReleaseAll()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return ctx.Err()
		}
		return fmt.Errorf("sim: %w", err)
	}
	return nil
}

func runMonitor(ctx context.Context, pattern string) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("midi: list inputs: %w", err)
	}
	stopListen, err := Monitor(ins, pattern)
	if err != nil {
		return err
	}
	defer stopListen()

	<-ctx.Done()
	return ctx.Err()
}
