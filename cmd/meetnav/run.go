package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/MrWong99/meetnav/internal/app"
	"github.com/MrWong99/meetnav/internal/assist"
	"github.com/MrWong99/meetnav/internal/capture"
	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/dashboard"
	"github.com/MrWong99/meetnav/internal/notify"
	"github.com/MrWong99/meetnav/internal/observe"
	"github.com/MrWong99/meetnav/internal/uia"
)

func newRunCmd(g *globals) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture captions and open the dashboard",
		Long: `Attach to the caption window, write the transcript file and open the
dashboard. Press s, v or n for a summary, the viewpoints or navigation hints,
m for minutes and l to toggle live analysis.

With --headless no dashboard is shown; logs go to stderr and live analysis
results are logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMeetnav(cmd, g, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "capture without the dashboard")
	return cmd
}

func runMeetnav(cmd *cobra.Command, g *globals, headless bool) error {
	cfg, fromFile, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	var logOut io.Writer = os.Stderr
	if !headless {
		f, err := openLogFile(cfg)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, level)
	slog.SetDefault(logger)
	logger.Info("meetnav starting", "version", version, "config", g.configPath, "from_file", fromFile)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	provider, err := buildLLM(cfg, g.registry(), logger)
	if err != nil {
		return err
	}
	kb, err := uia.NewSystemKeyboard()
	if err != nil {
		return err
	}
	finder := uia.NewFinder()
	defer finder.Close()

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithLevel(level),
		app.WithNotifier(notify.NewDesktop()),
	}
	if fromFile {
		opts = append(opts, app.WithConfigWatch(g.configPath))
	}
	application, err := app.New(ctx, cfg, &app.Providers{LLM: provider, Finder: finder, Keyboard: kb}, opts...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	var ui app.UI
	if !headless {
		ui = dashboardUI(application, logger)
	} else {
		logger.Info("capturing headless, press Ctrl+C to stop")
	}

	if err := application.Run(ctx, ui); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("goodbye")
	return nil
}

// openLogFile opens the log file used while the dashboard owns the terminal.
func openLogFile(cfg *config.Config) (*os.File, error) {
	path := cfg.Server.LogFile
	if path == "" {
		dir := cfg.Capture.OutputDir
		if dir == "" {
			d, err := capture.DefaultOutputDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		path = filepath.Join(dir, "meetnav.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// dashboardUI runs the terminal dashboard until the user quits or ctx ends.
// Live analysis results are forwarded into the program while it runs.
func dashboardUI(a *app.App, logger *slog.Logger) app.UI {
	return func(ctx context.Context) error {
		model := dashboard.New(dashboard.Deps{
			Ctx:        ctx,
			Events:     a.Events(),
			Entries:    a.Entries,
			Assistant:  a.Assistant(),
			Live:       a.Live(),
			Meeting:    a.Meeting,
			Roster:     a.Roster,
			MinutesDir: a.OutputDir(),
			SessionID:  a.SessionID,
			Notifier:   a.Notifier(),
			Logger:     logger,
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		a.OnLiveResult(func(r assist.Result) { p.Send(dashboard.ResultMsg(r)) })
		defer a.OnLiveResult(nil)

		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	}
}
