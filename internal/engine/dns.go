package engine

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	expirable "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/extension"
	"github.com/meshwire/meshwire-go/internal/metrics"
)

const dnsCacheSize = 256

// dnsStoreKeyPrefix namespaces persisted cache entries in the platform store.
const dnsStoreKeyPrefix = "dns."

// Resolver resolves hostnames with a local expirable LRU cache, a periodic
// refresh loop for preresolved hosts, and optional persistence through the
// reserved platform key-value store.
type Resolver struct {
	cfg     *config.EngineConfiguration
	net     *net.Resolver
	cache   *expirable.LRU[string, []string]
	store   extension.KeyValueStore // nil when DNS cache persistence is off
	logger  *zap.Logger
	onDrain func() // invoked after a completed refresh when drain is enabled
}

// NewResolver creates a resolver for the given configuration. store may be
// nil; persistence is skipped entirely in that case.
func NewResolver(cfg *config.EngineConfiguration, store extension.KeyValueStore, logger *zap.Logger) *Resolver {
	ttl := time.Duration(cfg.DNSRefreshSeconds) * time.Second
	r := &Resolver{
		cfg:    cfg,
		net:    net.DefaultResolver,
		cache:  expirable.NewLRU[string, []string](dnsCacheSize, nil, ttl),
		store:  store,
		logger: logger,
	}
	r.loadPersisted()
	return r
}

// SetDrainCallback registers the post-refresh drain notification.
func (r *Resolver) SetDrainCallback(fn func()) {
	r.onDrain = fn
}

// Lookup resolves host, answering from cache when possible. Fresh lookups
// are bounded by the configured query timeout.
func (r *Resolver) Lookup(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := r.cache.Get(host); ok {
		metrics.RecordDNSCacheHit()
		return addrs, nil
	}
	metrics.RecordDNSCacheMiss()
	return r.resolve(ctx, host)
}

func (r *Resolver) resolve(ctx context.Context, host string) ([]string, error) {
	timeout := time.Duration(r.cfg.DNSQueryTimeoutSeconds) * time.Second
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.net.LookupHost(qctx, host)
	metrics.RecordDNSLookup(err)
	if err != nil {
		return nil, err
	}
	r.cache.Add(host, addrs)
	return addrs, nil
}

// Run drives the refresh loop for preresolved hostnames until ctx is
// cancelled. Failed refresh rounds back off exponentially between the
// configured base and max intervals; successful rounds return to the steady
// refresh cadence (never below the minimum refresh interval).
func (r *Resolver) Run(ctx context.Context) error {
	if len(r.cfg.DNSPreresolveHostnames) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	refresh := time.Duration(r.cfg.DNSRefreshSeconds) * time.Second
	if min := time.Duration(r.cfg.DNSMinRefreshSeconds) * time.Second; refresh < min {
		refresh = min
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(r.cfg.DNSFailureRefreshSecondsBase) * time.Second
	bo.MaxInterval = time.Duration(r.cfg.DNSFailureRefreshSecondsMax) * time.Second
	bo.MaxElapsedTime = 0 // keep retrying for the engine's lifetime

	var lastSave time.Time
	for {
		err := r.refreshAll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := refresh
		if err != nil {
			wait = bo.NextBackOff()
			r.logger.Warn("DNS refresh failed, backing off",
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		} else {
			bo.Reset()
			if r.onDrain != nil && r.cfg.EnableDrainPostDNSRefresh {
				r.onDrain()
			}
			if r.shouldPersist(lastSave) {
				r.persist()
				lastSave = time.Now()
			}
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Resolver) refreshAll(ctx context.Context) error {
	var firstErr error
	for _, host := range r.cfg.DNSPreresolveHostnames {
		if _, err := r.resolve(ctx, host); err != nil && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}

func (r *Resolver) shouldPersist(lastSave time.Time) bool {
	if r.store == nil || !r.cfg.EnableDNSCache {
		return false
	}
	interval := time.Duration(r.cfg.DNSCacheSaveIntervalSeconds) * time.Second
	return time.Since(lastSave) >= interval
}

// persist writes current cache contents into the platform store so a
// restarted engine starts warm.
func (r *Resolver) persist() {
	for _, host := range r.cache.Keys() {
		if addrs, ok := r.cache.Get(host); ok {
			r.store.Set(dnsStoreKeyPrefix+host, strings.Join(addrs, ","))
		}
	}
}

// loadPersisted seeds the cache for preresolved hosts from the platform
// store, if one was registered.
func (r *Resolver) loadPersisted() {
	if r.store == nil || !r.cfg.EnableDNSCache {
		return
	}
	for _, host := range r.cfg.DNSPreresolveHostnames {
		if v, ok := r.store.Get(dnsStoreKeyPrefix + host); ok && v != "" {
			r.cache.Add(host, strings.Split(v, ","))
		}
	}
}
