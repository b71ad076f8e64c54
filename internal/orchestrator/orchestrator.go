// Package orchestrator wires the bridge's components together in
// dependency order, supervises its background loops (maintenance,
// connectivity watch, periodic sync), and owns the single-instance lock
// and coordinated shutdown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/flock"

	"jellydiscord/internal/config"
	"jellydiscord/internal/discord"
	"jellydiscord/internal/enrich"
	"jellydiscord/internal/ingress"
	"jellydiscord/internal/jellyfin"
	"jellydiscord/internal/logging"
	"jellydiscord/internal/metrics"
	"jellydiscord/internal/model"
	"jellydiscord/internal/render"
	"jellydiscord/internal/store"
	syncengine "jellydiscord/internal/sync"
	"jellydiscord/internal/thumbnail"
)

const (
	maintenanceTick   = time.Hour
	connectivityTick  = 30 * time.Second
	periodicSyncTick  = time.Minute
	shutdownDrainWait = 10 * time.Second
)

// Orchestrator owns every long-lived component and the process lifecycle.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	store      *store.Store
	httpClient *http.Client
	dispatch   *discord.Dispatcher
	renderer   *render.Renderer
	enricher   *enrich.Enricher
	thumbs     *thumbnail.Resolver
	jellyClnt  *jellyfin.Client
	engine     *syncengine.Engine
	ingressH   *ingress.Handler

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	wasOffline bool
}

// New builds every component in the order spec'd for startup, but does
// not start background work or bind a listener; call Start for that.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 30,
			MaxConnsPerHost:     30,
		},
	}

	dispatch := discord.New(cfg, logging.NewComponentLogger(logger, "discord"))
	renderer, err := render.New(render.Colors{
		NewItem:     cfg.Colors.NewItem,
		Resolution:  cfg.Colors.Resolution,
		Codec:       cfg.Colors.Codec,
		AudioCodec:  cfg.Colors.AudioCodec,
		HDRStatus:   cfg.Colors.HDRStatus,
		ProviderIDs: cfg.Colors.ProviderIDs,
		Default:     cfg.Colors.Default,
	}, os.DirFS(cfg.TemplateDir))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("compile templates: %w", err)
	}

	enricher := enrich.New(st, buildProviders(cfg, httpClient), enrich.WithTTL(time.Duration(cfg.RatingCacheTTLHours)*time.Hour), enrich.WithLogger(logging.NewComponentLogger(logger, "enrich")))
	thumbs := thumbnail.New(cfg.JellyfinURL, httpClient)
	jellyClnt := jellyfin.New(cfg.JellyfinURL, cfg.JellyfinAPIKey, httpClient, jellyfin.WithLogger(logging.NewComponentLogger(logger, "jellyfin")))

	server := model.ServerContext{URL: cfg.JellyfinURL}
	engine := syncengine.New(st, jellyClnt, enricher, thumbs, renderer, dispatch, cfg, server, logging.NewComponentLogger(logger, "sync"))

	// No sync gate: Start finishes the blocking initial sync before the
	// listener binds, and background syncs do not hold up webhooks.
	ingressH := ingress.New(st, jellyClnt, nil, enricher, thumbs, renderer, dispatch, cfg, server, logging.NewComponentLogger(logger, "ingress"))

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		lockPath:   filepath.Join(cfg.DataDir, "jellydiscord.lock"),
		lock:       flock.New(filepath.Join(cfg.DataDir, "jellydiscord.lock")),
		store:      st,
		httpClient: httpClient,
		dispatch:   dispatch,
		renderer:   renderer,
		enricher:   enricher,
		thumbs:     thumbs,
		jellyClnt:  jellyClnt,
		engine:     engine,
		ingressH:   ingressH,
	}, nil
}

func buildProviders(cfg *config.Config, client *http.Client) []enrich.Provider {
	var providers []enrich.Provider
	if cfg.OMDBEnabled {
		providers = append(providers, enrich.NewOMDB(cfg.OMDBAPIKey, client))
	}
	if cfg.TMDBEnabled {
		providers = append(providers, enrich.NewTMDB(cfg.TMDBAPIKey, client))
	}
	if cfg.TVDBEnabled {
		providers = append(providers, enrich.NewTVDB(cfg.TVDBAPIKey, client))
	}
	return providers
}

// Start acquires the single-instance lock, brings up every component in
// dependency order, decides between a blocking or background initial sync
// via the init_complete marker, starts the ingress listener, and launches
// the background loops.
func (o *Orchestrator) Start(ctx context.Context) error {
	ok, err := o.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jellydiscord instance is already running")
	}

	o.ctx, o.cancel = context.WithCancel(ctx)

	if err := o.store.RecordStartup(o.ctx, time.Now()); err != nil {
		o.logger.Warn("failed to record startup timestamp", logging.Error(err))
	}

	// Dispatcher workers are not tied to o.ctx, so Stop can cancel the loops
	// and still drain the queues; dispatch.Stop ends the workers.
	o.dispatch.Start(context.WithoutCancel(o.ctx))

	if err := o.jellyClnt.Connect(o.ctx); err != nil {
		o.logger.Warn("jellyfin not reachable at startup; ingress will serve payload-only notifications",
			logging.Error(err))
	} else {
		o.runInitialSync(o.ctx)
	}

	if err := o.startListener(o.ctx); err != nil {
		o.dispatch.Stop()
		_ = o.lock.Unlock()
		return fmt.Errorf("start listener: %w", err)
	}

	o.wg.Add(3)
	go o.maintenanceLoop(o.ctx)
	go o.connectivityLoop(o.ctx)
	go o.periodicSyncLoop(o.ctx)

	o.logger.Info("jellydiscord started",
		logging.String("bind", o.cfg.APIBind),
		logging.String("lock", o.lockPath))
	return nil
}

// runInitialSync decides between a blocking initial sync (first run, no
// init_complete marker) and a non-blocking background sync (subsequent
// restarts), matching the original notification bridge's startup
// behavior: only the very first sync blocks webhook processing.
func (o *Orchestrator) runInitialSync(ctx context.Context) {
	markerPath := o.cfg.InitCompletePath()
	if pathExists(markerPath) {
		o.logger.Info("init_complete marker found; running background startup sync")
		go func() {
			if _, err := o.engine.Run(ctx, model.SyncBackgroundStartup); err != nil {
				o.logger.Warn("background startup sync failed", logging.Error(err))
			}
		}()
		return
	}

	o.logger.Info("no init_complete marker; running blocking initial sync")
	result, err := o.engine.Run(ctx, model.SyncInitialBlocking)
	if err != nil {
		o.logger.Error("initial sync failed", logging.Error(err))
		return
	}
	if result.Status == "completed" {
		if markErr := writeMarker(markerPath); markErr != nil {
			o.logger.Warn("failed to write init_complete marker", logging.Error(markErr))
		}
	}
}

// Stop signals cancellation, drains the dispatcher queue for a bounded
// grace period, closes the HTTP client pool, and closes the store.
func (o *Orchestrator) Stop(ctx context.Context) {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	if o.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = o.httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	drainDeadline := time.Now().Add(shutdownDrainWait)
	for _, target := range []discord.Target{discord.TargetMovies, discord.TargetTV, discord.TargetMusic, discord.TargetDefault} {
		for time.Now().Before(drainDeadline) {
			if o.dispatch.StatsFor(target).CurrentSize == 0 {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
	o.dispatch.Stop()

	o.httpClient.CloseIdleConnections()

	if err := o.store.Close(); err != nil {
		o.logger.Warn("failed to close store cleanly", logging.Error(err))
	}
	if err := o.lock.Unlock(); err != nil {
		o.logger.Warn("failed to release lock", logging.Error(err))
	}

	residual := 0
	for _, target := range []discord.Target{discord.TargetMovies, discord.TargetTV, discord.TargetMusic, discord.TargetDefault} {
		residual += o.dispatch.StatsFor(target).CurrentSize
	}
	o.logger.Info("jellydiscord stopped", logging.Int("residual_queue_depth", residual))
}

// startListener builds the merged router (webhook ingress + health +
// metrics) and begins serving it in a background goroutine.
func (o *Orchestrator) startListener(ctx context.Context) error {
	r := chi.NewRouter()
	r.Mount("/", o.ingressH.Router())
	r.Get("/healthz", o.handleHealthz)
	r.Get("/queue/stats", o.handleQueueStats)
	r.Post("/sync", o.handleSyncTrigger)
	r.Handle("/metrics", metrics.Handler())

	o.httpServer = &http.Server{
		Addr:              o.cfg.APIBind,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := listen(o.cfg.APIBind)
	if err != nil {
		return err
	}

	go func() {
		if serveErr := o.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			o.logger.Error("ingress server error", logging.Error(serveErr))
		}
	}()
	return nil
}
