package orchestrator

import (
	"context"
	"time"

	"jellydiscord/internal/discord"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/model"
)

// maintenanceLoop vacuums the store and purges expired rating-cache rows
// once per vacuum_interval_hours.
func (o *Orchestrator) maintenanceLoop(ctx context.Context) {
	defer o.wg.Done()
	interval := time.Duration(o.cfg.VacuumIntervalHours) * time.Hour
	if interval <= 0 {
		interval = maintenanceTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runMaintenance(ctx)
		}
	}
}

func (o *Orchestrator) runMaintenance(ctx context.Context) {
	if err := o.store.Vacuum(ctx); err != nil {
		o.logger.Warn("vacuum failed", logging.Error(err))
	}
	if purged, err := o.store.PurgeExpired(ctx, time.Now()); err != nil {
		o.logger.Warn("purge expired ratings cache failed", logging.Error(err))
	} else if purged > 0 {
		o.logger.Info("purged expired rating cache entries", logging.Int64("count", purged))
	}
	if err := o.store.RecordMaintenanceRun(ctx, time.Now()); err != nil {
		o.logger.Warn("failed to record maintenance timestamp", logging.Error(err))
	}
}

// connectivityLoop polls Jellyfin reachability and announces edges: an
// offline->online transition triggers a recovery sync, per the notification
// bridge's original connection-monitoring behavior.
func (o *Orchestrator) connectivityLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(connectivityTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.checkConnectivity(ctx)
		}
	}
}

func (o *Orchestrator) checkConnectivity(ctx context.Context) {
	connected := o.jellyClnt.IsConnected(ctx)

	if !connected && !o.wasOffline {
		o.wasOffline = true
		o.dispatch.BroadcastStatus(statusMessage(false, o.cfg.JellyfinURL))
		o.logger.Warn("jellyfin server went offline")
		return
	}
	if connected && o.wasOffline {
		o.wasOffline = false
		o.dispatch.BroadcastStatus(statusMessage(true, o.cfg.JellyfinURL))
		o.logger.Info("jellyfin server back online")

		if !o.engine.Running() {
			go func() {
				if _, err := o.engine.Run(ctx, model.SyncRecovery); err != nil {
					o.logger.Warn("recovery sync failed", logging.Error(err))
				}
			}()
		}
	}
}

func statusMessage(online bool, serverURL string) model.DiscordMessage {
	title := "Jellyfin server is back online"
	color := 0x2ECC71
	if !online {
		title = "Jellyfin server is offline"
		color = 0xE74C3C
	}
	return model.DiscordMessage{
		Embeds: []model.DiscordEmbed{{
			Title:       title,
			Description: serverURL,
			Color:       color,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
}

// periodicSyncLoop checks once a minute whether it's been longer than
// sync_interval_hours since the last completed sync, and if so launches a
// background one.
func (o *Orchestrator) periodicSyncLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(periodicSyncTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.checkPeriodicSync(ctx)
		}
	}
}

func (o *Orchestrator) checkPeriodicSync(ctx context.Context) {
	if o.engine.Running() {
		return
	}
	status, err := o.store.LastSync(ctx)
	if err != nil {
		o.logger.Warn("failed to read last sync status", logging.Error(err))
		return
	}
	interval := time.Duration(o.cfg.SyncIntervalHours) * time.Hour
	if status.LastSyncFinished.IsZero() || time.Since(status.LastSyncFinished) > interval {
		o.logger.Info("starting periodic background sync",
			logging.Duration("since_last_sync", time.Since(status.LastSyncFinished)))
		go func() {
			if _, err := o.engine.Run(ctx, model.SyncPeriodicBackground); err != nil {
				o.logger.Warn("periodic sync failed", logging.Error(err))
			}
		}()
	}
}

// queueDepths reports every webhook target's current queue size, used by
// the health endpoint.
func (o *Orchestrator) queueDepths() map[string]int {
	depths := make(map[string]int, 4)
	for _, target := range []discord.Target{discord.TargetMovies, discord.TargetTV, discord.TargetMusic, discord.TargetDefault} {
		depths[string(target)] = o.dispatch.StatsFor(target).CurrentSize
	}
	return depths
}
