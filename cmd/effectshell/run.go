package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/effectshell/pkg/canonicalize"
	"github.com/Mindburn-Labs/effectshell/pkg/config"
	"github.com/Mindburn-Labs/effectshell/pkg/observability"
	"github.com/Mindburn-Labs/effectshell/pkg/shell"
	"github.com/Mindburn-Labs/effectshell/pkg/wallet"
)

const maxEventLine = 1 << 20

func runRunCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		configPath string
		corePath   string
		drain      time.Duration
	)
	cmd.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	cmd.StringVar(&corePath, "core", "", "Path to the core WebAssembly module (overrides core.path)")
	cmd.DurationVar(&drain, "drain", 30*time.Second, "How long to wait for in-flight effects after input ends")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if corePath != "" {
		cfg.Core.Path = corePath
	}
	if cfg.Core.Path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: no core module configured (core.path or --core)")
		return 2
	}

	logger := cfg.NewLogger(stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runShell(ctx, cfg, drain, stdin, stdout, logger); err != nil {
		logger.Error("shell failed", "error", err)
		return 1
	}
	return 0
}

// runShell wires the core to its capabilities, feeds it one event per input
// line and prints every view as a line of canonical JSON.
func runShell(ctx context.Context, cfg *config.Config, drain time.Duration, in io.Reader, out io.Writer, logger *slog.Logger) error {
	provider, err := observability.New(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		reportObjectives(provider, logger)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	core, closeCore, err := openCore(ctx, cfg.Core)
	if err != nil {
		return fmt.Errorf("core: %w", err)
	}
	defer func() {
		if err := closeCore(context.Background()); err != nil {
			logger.Warn("core close", "error", err)
		}
	}()

	caps, closeCaps, err := buildCapabilities(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCaps(); err != nil {
			logger.Warn("capabilities close", "error", err)
		}
	}()

	d := shell.New(core, wallet.DecodeView, caps,
		shell.WithLogger(logger),
		shell.WithTracker(provider),
		shell.WithProtocolErrorHandler(func(err error) {
			logger.Error("core protocol violation", "error", err)
		}),
	)

	var outMu sync.Mutex
	unsubscribe := d.Subscribe(func(vm wallet.ViewModel) {
		line, err := canonicalize.JCS(vm)
		if err != nil {
			logger.Error("encode view", "error", err)
			return
		}
		logger.Debug("view", "digest", canonicalize.HashBytes(line))
		outMu.Lock()
		defer outMu.Unlock()
		_, _ = out.Write(append(line, '\n'))
	})
	defer unsubscribe()

	lines := readLines(ctx, in, logger)
loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			ev, err := wallet.ParseEvent(line)
			if err != nil {
				logger.Warn("skipping input line", "line", line, "error", err)
				continue
			}
			logger.Debug("event", "name", ev.Name())
			d.Submit(ev)
		}
	}

	if ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, drain)
		if err := d.WaitIdle(waitCtx); err != nil {
			logger.Warn("effects still in flight", "count", d.InFlight(), "error", err)
		}
		cancel()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.Close(closeCtx)
}

// readLines streams non-blank, non-comment lines from r. The channel is
// closed at EOF, on a read error or once ctx is done.
func readLines(ctx context.Context, r io.Reader, logger *slog.Logger) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
			logger.Error("read input", "error", err)
		}
	}()
	return ch
}

func reportObjectives(provider *observability.Provider, logger *slog.Logger) {
	for _, st := range provider.Objectives() {
		level := slog.LevelInfo
		if !st.InCompliance {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "objective",
			"operation", st.Operation,
			"in_compliance", st.InCompliance,
			"success_rate", st.CurrentSuccess,
			"p99_ms", st.CurrentP99,
			"burn_rate", st.BurnRate,
			"observations", st.ObservationCount,
		)
	}
}
