package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"kiosk-age-verification/activities"
	"kiosk-age-verification/config"
	"kiosk-age-verification/engine"
	"kiosk-age-verification/kiosk"
	"kiosk-age-verification/logging"
	"kiosk-age-verification/navigator"
	"kiosk-age-verification/shared"
)

const frameInterval = 33 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		log.Fatalf("Kiosk %s stopped: %v", cfg.KioskID, err)
	}
	logger.Info("Kiosk stopped", "kioskId", cfg.KioskID)
}

// run wires the kiosk and blocks until a signal or a fatal error.
func run(cfg *config.Config, logger tlog.Logger) error {
	script, err := engine.ParseScript(cfg.SimScript)
	if err != nil {
		return fmt.Errorf("invalid SIM_SCRIPT: %w", err)
	}
	eng, err := engine.New(
		engine.NewSimulator(clock.New(), script, frameInterval),
		engine.DefaultSettings(cfg.EngineLicenseKey),
		logger,
	)
	if err != nil {
		return fmt.Errorf("start capture engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	fatal := make(chan error, 1)
	host := kiosk.NewHost(eng, kiosk.Options{
		KioskID:     cfg.KioskID,
		ShowButtons: cfg.ShowButtons,
		Logger:      logger,
		OnFatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
	})
	g.Go(func() error {
		select {
		case err := <-fatal:
			return err
		case <-ctx.Done():
			return nil
		}
	})

	switch cfg.Mode {
	case config.ModeStandalone:
		nav := navigator.NewLocal(cfg.KioskID, host, cfg.Defaults(), logger)
		host.Attach(nav)
		if err := nav.Start(ctx); err != nil {
			return fmt.Errorf("show first screen: %w", err)
		}
		g.Go(func() error { return host.Run(ctx) })

	case config.ModeTemporal:
		c, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("create Temporal client: %w", err)
		}
		defer c.Close()

		nav := navigator.NewTemporal(c, shared.FlowWorkflowID(cfg.KioskID), logger, 0)
		host.Attach(nav)
		g.Go(func() error { return host.Run(ctx) })
		g.Go(func() error { return nav.Run(ctx) })

		// Screens for this kiosk are presented by this process only.
		w := worker.New(c, shared.ScreenTaskQueue(cfg.KioskID), worker.Options{})
		w.RegisterActivity(&activities.Activities{Screens: host})
		if err := w.Start(); err != nil {
			return fmt.Errorf("start screen worker: %w", err)
		}
		defer w.Stop()
	}

	if cfg.HTTPAddr != "" {
		srv := kiosk.NewServer(cfg.HTTPAddr, kiosk.NewRouter(host))
		g.Go(func() error {
			logger.Info("Kiosk HTTP server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("Kiosk started", "kioskId", cfg.KioskID, "mode", cfg.Mode)
	return g.Wait()
}
