package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse mirrors the JSON contract spec'd for the liveness
// endpoint: store/jellyfin component status, last-sync staleness, and
// per-webhook queue depth.
type healthResponse struct {
	Store              string         `json:"store"`
	Jellyfin           string         `json:"jellyfin"`
	LastSyncAgeSeconds float64        `json:"last_sync_age_seconds"`
	QueueDepth         map[string]int `json:"queue_depth_per_webhook"`
}

func (o *Orchestrator) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Store: "ok", Jellyfin: "ok", QueueDepth: o.queueDepths()}
	status := http.StatusOK

	if _, err := o.store.Stats(ctx); err != nil {
		resp.Store = "error"
		status = http.StatusServiceUnavailable
	}

	if !o.jellyClnt.IsConnected(ctx) {
		resp.Jellyfin = "error"
		status = http.StatusServiceUnavailable
	}

	if syncStatus, err := o.store.LastSync(ctx); err == nil && !syncStatus.LastSyncFinished.IsZero() {
		resp.LastSyncAgeSeconds = time.Since(syncStatus.LastSyncFinished).Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
