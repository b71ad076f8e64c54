// Command bridged runs the Jellyfin-to-Discord notification bridge as a
// long-lived process: it loads configuration, builds the orchestrator, and
// serves until interrupted.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"jellydiscord/internal/config"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/orchestrator"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, _, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	o, err := orchestrator.New(cfg, logger)
	if err != nil {
		logger.Error("create orchestrator", logging.Error(err))
		log.Fatalf("create orchestrator: %v", err)
	}

	if err := o.Start(ctx); err != nil {
		logger.Error("start orchestrator", logging.Error(err))
		log.Fatalf("start orchestrator: %v", err)
	}

	<-ctx.Done()
	logger.Info("bridged shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	o.Stop(stopCtx)
}
