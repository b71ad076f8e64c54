package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jellydiscord/internal/config"
	"jellydiscord/internal/detect"
	"jellydiscord/internal/discord"
	"jellydiscord/internal/enrich"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/model"
	"jellydiscord/internal/render"
	"jellydiscord/internal/store"
	"jellydiscord/internal/thumbnail"
)

// Store is the subset of persistence the ingress handler needs.
type Store interface {
	GetFingerprint(ctx context.Context, id string) (string, bool, error)
	Get(ctx context.Context, id string) (*store.StoredRecord, error)
	Save(ctx context.Context, record *model.Record) error
}

// ItemFetcher pulls the full item by id, used to enrich a webhook payload
// with media-stream detail the notification plugin omits.
type ItemFetcher interface {
	GetRecord(ctx context.Context, id string, server model.ServerContext) (*model.Record, error)
}

// SyncGate reports whether an initial blocking sync is still in progress,
// so the handler can wait (bounded) rather than race it.
type SyncGate interface {
	Running() bool
}

// Response is the ingress endpoint's JSON reply, per spec.md §6.
type Response struct {
	Status           string `json:"status"`
	ItemID           string `json:"item_id"`
	ItemName         string `json:"item_name"`
	Action           string `json:"action"`
	ChangesCount     int    `json:"changes_count"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// blockingSyncWait bounds how long a webhook delivery waits for an
// in-progress initial blocking sync before proceeding anyway.
const blockingSyncWait = 30 * time.Second

// Handler wires the webhook endpoint to the same enrich/render/dispatch
// pipeline the sync engine drives for batch reconciliation.
type Handler struct {
	store    Store
	items    ItemFetcher
	gate     SyncGate
	enricher *enrich.Enricher
	thumbs   *thumbnail.Resolver
	renderer *render.Renderer
	dispatch *discord.Dispatcher
	cfg      *config.Config
	server   model.ServerContext
	logger   *slog.Logger
}

// New builds an ingress Handler. gate may be nil if no blocking sync gate
// applies (e.g. tests).
func New(st Store, items ItemFetcher, gate SyncGate, enricher *enrich.Enricher, thumbs *thumbnail.Resolver, renderer *render.Renderer, dispatch *discord.Dispatcher, cfg *config.Config, server model.ServerContext, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store: st, items: items, gate: gate,
		enricher: enricher, thumbs: thumbs, renderer: renderer, dispatch: dispatch,
		cfg: cfg, server: server, logger: logger,
	}
}

// Router builds the chi mux exposing the webhook endpoint. /healthz and
// /metrics are mounted by the orchestrator alongside this router, not
// inside it, so each concern owns its own handler.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/webhook", h.handleWebhook)
	return r
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "", "", "invalid JSON body")
		return
	}
	if err := payload.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, payload.ItemId, payload.Name, err.Error())
		return
	}

	h.awaitBlockingSync(r.Context())

	record := h.resolveRecord(r.Context(), payload)

	prevFingerprint, hadPrev, err := h.store.GetFingerprint(r.Context(), record.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, record.ID, record.Name, "fingerprint lookup failed")
		return
	}

	var action model.Action
	var changes []model.Change

	switch {
	case !hadPrev:
		action = model.ActionNewItem
	case prevFingerprint == record.Fingerprint():
		action = model.ActionNoChanges
	default:
		prior, getErr := h.store.Get(r.Context(), record.ID)
		if getErr != nil {
			action = model.ActionUpgradedItem
		} else {
			changes = detect.Detect(&prior.Record, record, h.cfg.ChangeWatch.ToPolicy())
			if len(changes) > 0 {
				action = model.ActionUpgradedItem
			} else {
				action = model.ActionHashUpdated
			}
		}
	}

	if action != model.ActionNoChanges {
		if err := h.store.Save(r.Context(), record); err != nil {
			h.writeError(w, http.StatusInternalServerError, record.ID, record.Name, "persist failed")
			return
		}
	}

	if action == model.ActionNewItem || action == model.ActionUpgradedItem {
		h.deliverNotification(r.Context(), record, action, changes)
	}

	h.writeJSON(w, http.StatusOK, Response{
		Status:           "ok",
		ItemID:           record.ID,
		ItemName:         record.Name,
		Action:           string(action),
		ChangesCount:     len(changes),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	})
}

// resolveRecord prefers the pulled copy from the Jellyfin Client (fuller
// media-stream data) and falls back to payload-only normalization if the
// pull fails, per spec.md §4.I step 2.
func (h *Handler) resolveRecord(ctx context.Context, payload Payload) *model.Record {
	if h.items != nil {
		if record, err := h.items.GetRecord(ctx, payload.ItemId, h.server); err == nil && record != nil {
			return record
		}
	}
	record := payload.ToRecord()
	record.Server = h.server
	return record
}

func (h *Handler) awaitBlockingSync(ctx context.Context) {
	if h.gate == nil || !h.gate.Running() {
		return
	}
	deadline := time.Now().Add(blockingSyncWait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.gate.Running() {
				return
			}
		}
	}
}

func (h *Handler) deliverNotification(ctx context.Context, record *model.Record, action model.Action, changes []model.Change) {
	bundle := model.Bundle{}
	if h.enricher != nil {
		bundle = h.enricher.Enrich(ctx, record)
	}
	thumbURL := ""
	if h.thumbs != nil {
		thumbURL = h.thumbs.Resolve(ctx, record)
	}

	var webhookCfg config.WebhookConfig
	switch routeFor(record.Kind) {
	case discord.TargetMovies:
		webhookCfg = h.cfg.WebhookMovies
	case discord.TargetTV:
		webhookCfg = h.cfg.WebhookTV
	case discord.TargetMusic:
		webhookCfg = h.cfg.WebhookMusic
	default:
		webhookCfg = h.cfg.WebhookDefault
	}
	mode := groupingModeFor(webhookCfg.Mode)

	msg := h.renderer.Render(action, mode, record, thumbURL, changes, h.cfg.JellyfinURL, bundle)
	if err := h.dispatch.Enqueue(record, msg); err != nil {
		h.logger.Warn("failed to enqueue discord message",
			logging.String(logging.FieldItemID, record.ID), logging.Error(err))
	}
}

func routeFor(kind model.Kind) discord.Target {
	switch kind {
	case model.KindMovie:
		return discord.TargetMovies
	case model.KindSeries, model.KindSeason, model.KindEpisode:
		return discord.TargetTV
	case model.KindAudio, model.KindMusicAlbum, model.KindMusicArtist:
		return discord.TargetMusic
	default:
		return discord.TargetDefault
	}
}

func groupingModeFor(mode string) render.GroupingMode {
	switch mode {
	case "by_event":
		return render.ModeByEvent
	case "by_type":
		return render.ModeByType
	case "grouped":
		return render.ModeGrouped
	default:
		return render.ModeIndividual
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode ingress response", logging.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, itemID, itemName, message string) {
	h.writeJSON(w, status, Response{
		Status:   "error",
		ItemID:   itemID,
		ItemName: itemName,
		Action:   string(model.ActionError),
	})
	if status >= http.StatusInternalServerError {
		h.logger.Error("ingress request failed", logging.String(logging.FieldItemID, itemID), logging.String("reason", message))
	} else {
		h.logger.Warn("ingress request rejected", logging.String(logging.FieldItemID, itemID), logging.String("reason", message))
	}
}
