// Package sync drives full-library reconciliation between Jellyfin and the
// local store, streaming batches through detect/enrich/dispatch so a
// library of any size never needs to be buffered in memory.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jellydiscord/internal/config"
	"jellydiscord/internal/detect"
	"jellydiscord/internal/discord"
	"jellydiscord/internal/enrich"
	"jellydiscord/internal/jellyfin"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/metrics"
	"jellydiscord/internal/model"
	"jellydiscord/internal/render"
	"jellydiscord/internal/store"
	"jellydiscord/internal/svcerr"
	"jellydiscord/internal/thumbnail"
)

const itemConcurrency = 8

// Store is the subset of the persistence layer the sync engine needs.
type Store interface {
	GetFingerprint(ctx context.Context, id string) (string, bool, error)
	Get(ctx context.Context, id string) (*store.StoredRecord, error)
	SaveBatch(ctx context.Context, records []*model.Record) (store.BatchResult, error)
	RecordSyncStart(ctx context.Context, syncType model.SyncType, started time.Time) error
	RecordSyncFinish(ctx context.Context, finished time.Time, scanned, changed, added int, syncErr error) error
	MarkNotified(ctx context.Context, id string, when time.Time) error
}

// ItemSource streams already-converted library records page by page.
type ItemSource interface {
	StreamRecords(ctx context.Context, includeItemTypes string, server model.ServerContext, fn jellyfin.RecordPageFunc) error
}

// Result reports the outcome of one reconciliation run.
type Result struct {
	Status         string
	ItemsProcessed int
	ItemsChanged   int
	ItemsNew       int
	Duration       time.Duration
}

// Engine owns the full reconciliation pipeline: pull from Jellyfin, detect
// changes against the store, enrich, render, and dispatch.
type Engine struct {
	store    Store
	items    ItemSource
	enricher *enrich.Enricher
	thumbs   *thumbnail.Resolver
	renderer *render.Renderer
	dispatch *discord.Dispatcher
	cfg      *config.Config
	server   model.ServerContext
	logger   *slog.Logger

	running atomic.Bool
}

// New builds a sync Engine from the bridge's already-constructed
// components.
func New(st Store, items ItemSource, enricher *enrich.Enricher, thumbs *thumbnail.Resolver, renderer *render.Renderer, dispatch *discord.Dispatcher, cfg *config.Config, server model.ServerContext, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		items:    items,
		enricher: enricher,
		thumbs:   thumbs,
		renderer: renderer,
		dispatch: dispatch,
		cfg:      cfg,
		server:   server,
		logger:   logger,
	}
}

// Running reports whether a reconciliation pass is currently active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run executes one reconciliation pass of the given type. Only one run may
// be active at a time; a concurrent call returns a warning error
// immediately rather than blocking on the in-progress one.
func (e *Engine) Run(ctx context.Context, syncType model.SyncType) (Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Result{}, svcerr.Wrap(svcerr.ErrInvalidInput, "sync", "run",
			fmt.Sprintf("sync already in progress, dropping %s request", syncType), nil)
	}
	defer e.running.Store(false)

	runID := uuid.NewString()
	started := time.Now()
	if err := e.store.RecordSyncStart(ctx, syncType, started); err != nil {
		e.logger.Warn("failed to record sync start",
			logging.String(logging.FieldRequestID, runID), logging.Error(err))
	}

	var scanned, changed, added int
	var mu sync.Mutex

	runErr := e.items.StreamRecords(ctx, "", e.server, func(batch []*model.Record, startIndex, total int) error {
		s, c, n, err := e.processBatch(ctx, batch)
		mu.Lock()
		scanned += s
		changed += c
		added += n
		mu.Unlock()
		if err != nil {
			return err
		}
		e.logger.Info("sync batch committed",
			logging.String(logging.FieldRequestID, runID),
			logging.String(logging.FieldSyncType, string(syncType)),
			logging.Int("start_index", startIndex),
			logging.Int("total_record_count", total))
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	finished := time.Now()
	if err := e.store.RecordSyncFinish(ctx, finished, scanned, changed, added, runErr); err != nil {
		e.logger.Warn("failed to record sync finish", logging.Error(err))
	}

	status := "completed"
	if runErr != nil {
		status = "failed"
		if jellyfin.IsCircuitOpen(runErr) {
			e.logger.Warn("sync aborted: jellyfin circuit breaker is open",
				logging.String(logging.FieldSyncType, string(syncType)))
		}
	}
	metrics.RecordSyncRun(string(syncType), status, finished)
	return Result{
		Status:         status,
		ItemsProcessed: scanned,
		ItemsChanged:   changed,
		ItemsNew:       added,
		Duration:       finished.Sub(started),
	}, runErr
}

// batchOutcome is one item's reconciliation result, kept in the same slot
// it occupied in the incoming batch so ordering is preserved after the
// concurrent convert/detect phase.
type batchOutcome struct {
	record  *model.Record
	action  model.Action
	changes []model.Change
}

func (e *Engine) processBatch(ctx context.Context, batch []*model.Record) (scanned, changed, added int, err error) {
	started := time.Now()
	defer func() { metrics.RecordSyncBatch(time.Since(started)) }()

	outcomes := make([]batchOutcome, len(batch))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(itemConcurrency)
	for i := range batch {
		i := i
		group.Go(func() error {
			outcome, itemErr := e.reconcileItem(gctx, batch[i])
			outcomes[i] = outcome
			return itemErr
		})
	}
	if groupErr := group.Wait(); groupErr != nil {
		return 0, 0, 0, groupErr
	}

	toSave := make([]*model.Record, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.record != nil {
			toSave = append(toSave, outcome.record)
		}
	}
	if len(toSave) > 0 {
		if _, saveErr := e.store.SaveBatch(ctx, toSave); saveErr != nil {
			return 0, 0, 0, svcerr.Wrap(svcerr.ErrStoreFailure, "sync", "save_batch", "batch upsert failed", saveErr)
		}
	}

	for _, outcome := range outcomes {
		scanned++
		metrics.RecordSyncItem(string(outcome.action))
		switch outcome.action {
		case model.ActionUpgradedItem:
			changed++
		case model.ActionNewItem:
			added++
		}
		if outcome.action == model.ActionNewItem || outcome.action == model.ActionUpgradedItem {
			e.dispatchOutcome(ctx, outcome)
		}
	}
	return scanned, changed, added, nil
}

// reconcileItem runs the per-item algorithm from spec.md §4.H step "for
// each batch, in parallel per item": compare fingerprints, detect changes
// against any prior record, and classify the outcome.
func (e *Engine) reconcileItem(ctx context.Context, record *model.Record) (batchOutcome, error) {
	prevFingerprint, hadPrev, err := e.store.GetFingerprint(ctx, record.ID)
	if err != nil {
		return batchOutcome{}, svcerr.Wrap(svcerr.ErrStoreFailure, "sync", "get_fingerprint", "fingerprint lookup failed", err)
	}
	if hadPrev && prevFingerprint == record.Fingerprint() {
		return batchOutcome{record: record, action: model.ActionNoChanges}, nil
	}
	if !hadPrev {
		return batchOutcome{record: record, action: model.ActionNewItem}, nil
	}

	prior, err := e.store.Get(ctx, record.ID)
	if err != nil {
		return batchOutcome{record: record, action: model.ActionUpgradedItem}, nil
	}
	changes := detect.Detect(&prior.Record, record, e.cfg.ChangeWatch.ToPolicy())
	return batchOutcome{record: record, action: model.ActionUpgradedItem, changes: changes}, nil
}

func (e *Engine) dispatchOutcome(ctx context.Context, outcome batchOutcome) {
	bundle := model.Bundle{}
	if e.enricher != nil {
		bundle = e.enricher.Enrich(ctx, outcome.record)
	}
	thumbURL := ""
	if e.thumbs != nil {
		thumbURL = e.thumbs.Resolve(ctx, outcome.record)
	}

	var webhookCfg config.WebhookConfig
	switch discordTargetFor(outcome.record.Kind) {
	case discord.TargetMovies:
		webhookCfg = e.cfg.WebhookMovies
	case discord.TargetTV:
		webhookCfg = e.cfg.WebhookTV
	case discord.TargetMusic:
		webhookCfg = e.cfg.WebhookMusic
	default:
		webhookCfg = e.cfg.WebhookDefault
	}
	mode := parseGroupingMode(webhookCfg.Mode)

	msg := e.renderer.Render(outcome.action, mode, outcome.record, thumbURL, outcome.changes, e.cfg.JellyfinURL, bundle)
	if err := e.dispatch.Enqueue(outcome.record, msg); err != nil {
		e.logger.Warn("failed to enqueue discord message",
			logging.String(logging.FieldItemID, outcome.record.ID),
			logging.Error(err))
		return
	}
	if err := e.store.MarkNotified(ctx, outcome.record.ID, time.Now()); err != nil {
		e.logger.Warn("failed to record notification timestamp",
			logging.String(logging.FieldItemID, outcome.record.ID),
			logging.Error(err))
	}
}

func discordTargetFor(kind model.Kind) discord.Target {
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

func parseGroupingMode(mode string) render.GroupingMode {
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
