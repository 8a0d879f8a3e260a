package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meshwire/meshwire-go/internal/config"
)

// memStore is an in-memory platform store for resolver persistence tests.
type memStore map[string]string

func (s memStore) Get(key string) (string, bool) { v, ok := s[key]; return v, ok }
func (s memStore) Set(key, value string)         { s[key] = value }
func (s memStore) Remove(key string)             { delete(s, key) }

func cacheConfig(hosts ...string) *config.EngineConfiguration {
	return &config.EngineConfiguration{
		DNSRefreshSeconds:           config.DefaultDNSRefreshSeconds,
		DNSQueryTimeoutSeconds:      config.DefaultDNSQueryTimeoutSeconds,
		DNSPreresolveHostnames:      hosts,
		EnableDNSCache:              true,
		DNSCacheSaveIntervalSeconds: config.DefaultDNSCacheSaveIntervalSeconds,
	}
}

func TestResolverLoadsPersistedEntries(t *testing.T) {
	store := memStore{
		"dns.api.example.com": "10.0.0.1,10.0.0.2",
		"dns.unrelated":       "10.9.9.9",
	}
	r := NewResolver(cacheConfig("api.example.com"), store, zap.NewNop())

	// The persisted answer is served from cache, no network involved.
	addrs, err := r.Lookup(context.Background(), "api.example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "10.0.0.1" || addrs[1] != "10.0.0.2" {
		t.Errorf("addrs = %v, want persisted [10.0.0.1 10.0.0.2]", addrs)
	}
}

func TestResolverPersistRoundTrip(t *testing.T) {
	seed := memStore{"dns.api.example.com": "10.0.0.1"}
	r := NewResolver(cacheConfig("api.example.com"), seed, zap.NewNop())

	out := memStore{}
	r.store = out
	r.persist()

	if got := out["dns.api.example.com"]; got != "10.0.0.1" {
		t.Errorf("persisted value = %q, want 10.0.0.1", got)
	}
}

func TestResolverSkipsPersistenceWhenDisabled(t *testing.T) {
	store := memStore{"dns.api.example.com": "10.0.0.1"}
	cfg := cacheConfig("api.example.com")
	cfg.EnableDNSCache = false

	r := NewResolver(cfg, store, zap.NewNop())
	if _, ok := r.cache.Get("api.example.com"); ok {
		t.Error("cache seeded although persistence is disabled")
	}
	if r.shouldPersist(time.Time{}) {
		t.Error("shouldPersist = true with persistence disabled")
	}
}

func TestResolverShouldPersistInterval(t *testing.T) {
	cfg := cacheConfig("api.example.com")
	cfg.DNSCacheSaveIntervalSeconds = 60
	r := NewResolver(cfg, memStore{}, zap.NewNop())

	if !r.shouldPersist(time.Time{}) {
		t.Error("shouldPersist = false for a never-saved cache")
	}
	if r.shouldPersist(time.Now()) {
		t.Error("shouldPersist = true immediately after a save")
	}
	if !r.shouldPersist(time.Now().Add(-2 * time.Minute)) {
		t.Error("shouldPersist = false after the save interval elapsed")
	}
}

func TestResolverRunStopsOnCancel(t *testing.T) {
	r := NewResolver(&config.EngineConfiguration{
		DNSRefreshSeconds:      config.DefaultDNSRefreshSeconds,
		DNSQueryTimeoutSeconds: config.DefaultDNSQueryTimeoutSeconds,
	}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
