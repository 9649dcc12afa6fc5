package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/AreaStream/internal/api"
	"github.com/bryanchriswhite/AreaStream/internal/capture"
	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/preview"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
	"github.com/bryanchriswhite/AreaStream/internal/session"
	"github.com/bryanchriswhite/AreaStream/internal/window"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start capturing",
	Long: `Start capturing the selected target into the preview window.

The saved selection is restored: the saved window when it is still open,
otherwise the saved screen or area. The control server provides a REST API
for changing the target, method, frame rate and scale mode at runtime.`,
	Example: `  # Start with the preview window and control server on port 8080
  areastream serve

  # Capture without a preview window
  areastream serve --headless

  # Start at 60 frames per second on a custom port
  areastream serve --fps 60 --port 9090

  # Start with debug logging
  areastream serve --log-level debug`,
	RunE: runServe,
}

var serveHeadless bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "capture without a preview window")
}

// newController connects to the X server and restores the saved selection
func newController(configMgr *config.Manager) (*session.Controller, func(), error) {
	enumerator, err := window.NewX11Enumerator(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	ctrl, err := session.New(session.Options{
		Registry:   capture.DefaultRegistry(),
		Displays:   capture.ScreenshotDisplays{},
		Enumerator: enumerator,
		Settings:   configMgr,
	})
	if err != nil {
		enumerator.Close()
		return nil, nil, err
	}
	if err := ctrl.Init(); err != nil {
		enumerator.Close()
		return nil, nil, fmt.Errorf("failed to start capture session: %w", err)
	}

	cleanup := func() {
		ctrl.Close()
		enumerator.Close()
	}
	return ctrl, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	log.Info().
		Str("path", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	ctrl, cleanup, err := newController(configMgr)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.OnAbort(func(ev capture.AbortEvent) {
		if configMgr.Get().AutoExit {
			log.Info().Err(ev.Err).Msg("Capture target lost, exiting")
			stop()
		}
	})
	go ctrl.Watch(ctx, cfg.RefreshEvery())

	// Preview surface
	mode, err := scale.ParseMode(cfg.Preview.ScaleMode)
	if err != nil {
		log.Warn().Err(err).Msg("Using 100% scale")
	}
	size := scale.Size{W: cfg.Preview.Width, H: cfg.Preview.Height}

	var sink preview.Sink
	var labeler preview.Labeler
	if serveHeadless || !cfg.Preview.Enabled {
		sink = preview.NewDiscard(size)
		log.Info().Msg("Preview disabled, capturing headless")
	} else {
		win, err := preview.NewWindow(preview.WindowOptions{
			Title:     cfg.Preview.Title,
			Size:      size,
			ShowLabel: cfg.Preview.ShowLabel,
		})
		if err != nil {
			return fmt.Errorf("failed to create preview window: %w", err)
		}
		defer win.Close()
		sink, labeler = win, win
	}

	loop := preview.NewLoop(ctrl, sink, mode)
	ctrl.Attach(loop, labeler)

	server := api.NewServer(ctrl, configMgr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx, cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	_, name := ctrl.Selection()
	log.Info().
		Str("target", name).
		Int("framerate", cfg.Capture.FrameRate).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("AreaStream is running, press Ctrl+C to stop")

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	select {
	case err := <-serverErr:
		stop()
		<-loopDone
		return fmt.Errorf("control server failed: %w", err)
	case err := <-loopDone:
		stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	stats := loop.Stats()
	log.Info().
		Uint64("presented", stats.Presented).
		Uint64("skipped", stats.Skipped).
		Msg("Shutting down gracefully")
	return nil
}
