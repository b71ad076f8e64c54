package orchestrator

import (
	"encoding/json"
	"net/http"

	"jellydiscord/internal/discord"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/model"
)

// queueStatsResponse reports per-webhook delivery counters for bridgectl's
// "queue" command.
type queueStatsResponse struct {
	Webhooks map[string]discord.Stats `json:"webhooks"`
}

func (o *Orchestrator) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	resp := queueStatsResponse{Webhooks: make(map[string]discord.Stats, 4)}
	for _, target := range []discord.Target{discord.TargetMovies, discord.TargetTV, discord.TargetMusic, discord.TargetDefault} {
		resp.Webhooks[string(target)] = o.dispatch.StatsFor(target)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// syncTriggerResponse reports the outcome of an admin-triggered sync.
type syncTriggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// handleSyncTrigger starts a background manual sync on demand,
// refusing to stack a second run on top of one already in progress.
func (o *Orchestrator) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if o.engine.Running() {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(syncTriggerResponse{Started: false, Message: "a sync is already in progress"})
		return
	}

	ctx := o.ctx
	if ctx == nil {
		ctx = r.Context()
	}
	go func() {
		if _, err := o.engine.Run(ctx, model.SyncManual); err != nil {
			o.logger.Warn("manual sync failed", logging.Error(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(syncTriggerResponse{Started: true})
}
