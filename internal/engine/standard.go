package engine

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/logging"
	"github.com/meshwire/meshwire-go/internal/metrics"
	"github.com/meshwire/meshwire-go/internal/xds"
)

// standardEngine is the default runtime implementation. It assembles the
// transport stack described by the frozen configuration and drives the
// background loops (DNS refresh, stats flush, xDS connection).
type standardEngine struct {
	cfg       *config.EngineConfiguration
	logger    *zap.Logger
	tracker   EventTracker
	resolver  *Resolver
	transport *transport
	client    *http.Client
	xds       *xds.Client // nil when no descriptor was configured

	cancel    context.CancelFunc
	terminate sync.Once
}

func newStandardEngine(opts Options) (Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Global()
	}

	cfg := opts.Config
	if opts.Custom {
		ov, err := parseOverlay(opts.RawConfig)
		if err != nil {
			return nil, err
		}
		cfg = ov.apply(cfg)
	}

	var store = cfg.KeyValueStores[config.PlatformStoreName]
	resolver := NewResolver(cfg, store, logger)

	t, err := newTransport(cfg, resolver)
	if err != nil {
		return nil, err
	}

	rt := newDecompressRoundTripper(t, cfg.EnableGzipDecompression, cfg.EnableBrotliDecompression)

	// Platform filters wrap the transport in chain order: the first
	// appended filter is outermost.
	chain := cfg.PlatformFilterChain
	for i := len(chain) - 1; i >= 0; i-- {
		rt = chain[i].Value.NewInterceptor().Intercept(rt)
	}

	e := &standardEngine{
		cfg:       cfg,
		logger:    logger,
		tracker:   opts.EventTracker,
		resolver:  resolver,
		transport: t,
		client:    &http.Client{Transport: rt},
	}
	resolver.SetDrainCallback(e.drain)

	if cfg.HasXds() {
		e.xds = xds.NewClient(xds.BootstrapFromConfig(cfg), logger)
	}

	if len(cfg.NativeFilterChain) > 0 {
		names := make([]string, len(cfg.NativeFilterChain))
		for i, f := range cfg.NativeFilterChain {
			names[i] = f.Name
		}
		logger.Debug("Native filter chain configured", zap.Strings("filters", names))
	}

	return e, nil
}

// Start runs the engine's background loops until ctx is cancelled or
// Terminate is called.
func (e *standardEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	e.track(map[string]string{
		"name":        "engine_running",
		"app_id":      e.cfg.AppID,
		"app_version": e.cfg.AppVersion,
	})
	e.logger.Info("Engine running",
		zap.String("app_id", e.cfg.AppID),
		zap.String("app_version", e.cfg.AppVersion),
		zap.Bool("http3", e.cfg.EnableHTTP3),
		zap.Bool("xds", e.cfg.HasXds()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.resolver.Run(gctx) })
	g.Go(func() error { return e.statsLoop(gctx) })
	if e.xds != nil {
		g.Go(func() error { return e.xds.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Terminate stops the background loops and releases connections.
func (e *standardEngine) Terminate() error {
	e.terminate.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		e.transport.CloseIdleConnections()
		e.track(map[string]string{"name": "engine_terminated"})
		e.logger.Info("Engine terminated")
	})
	return nil
}

// HTTPClient returns a client backed by the engine's assembled transport.
func (e *standardEngine) HTTPClient() *http.Client {
	return e.client
}

// statsLoop flushes stats on the configured cadence.
func (e *standardEngine) statsLoop(ctx context.Context) error {
	interval := time.Duration(e.cfg.StatsFlushSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordStatsFlush()
			if len(e.cfg.StatsSinks) > 0 {
				e.logger.Debug("Stats flushed", zap.Strings("sinks", e.cfg.StatsSinks))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain is invoked after a completed DNS refresh when draining is enabled;
// established connections are released so new streams pick up fresh
// addresses.
func (e *standardEngine) drain() {
	e.transport.CloseIdleConnections()
	e.logger.Debug("Drained connections after DNS refresh")
}

func (e *standardEngine) track(event map[string]string) {
	if e.tracker != nil {
		e.tracker.Track(event)
	}
}
