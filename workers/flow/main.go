package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"kiosk-age-verification/config"
	"kiosk-age-verification/logging"
	"kiosk-age-verification/shared"
	"kiosk-age-verification/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Unable to create Temporal client: %v", err)
	}
	defer c.Close()

	// One flow worker serves every kiosk. Screen activities run on each
	// kiosk's own queue, so this worker registers no activities.
	w := worker.New(c, shared.KioskFlowTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.KioskFlowWorkflow)

	logger.Info("Starting kiosk flow worker", "taskQueue", shared.KioskFlowTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Unable to start worker: %v", err)
	}
}
