package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/extension"
)

func baseConfig() *config.EngineConfiguration {
	return &config.EngineConfiguration{
		ConnectTimeoutSeconds:    config.DefaultConnectTimeoutSeconds,
		DNSRefreshSeconds:        config.DefaultDNSRefreshSeconds,
		DNSQueryTimeoutSeconds:   config.DefaultDNSQueryTimeoutSeconds,
		StreamIdleTimeoutSeconds: config.DefaultStreamIdleTimeoutSeconds,
		MaxConnectionsPerHost:    config.DefaultMaxConnectionsPerHost,
		StatsFlushSeconds:        config.DefaultStatsFlushSeconds,
		AppVersion:               "unspecified",
		AppID:                    "unspecified",
	}
}

// headerInterceptor stamps a header and records invocation order.
type headerInterceptor struct {
	name  string
	order *[]string
}

func (h headerInterceptor) NewInterceptor() extension.StreamInterceptor {
	return extension.InterceptorFunc(func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			*h.order = append(*h.order, h.name)
			req.Header.Add("X-Filter", h.name)
			return next.RoundTrip(req)
		})
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestStandardEngineFilterChainOrder(t *testing.T) {
	var serverSaw []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverSaw = r.Header.Values("X-Filter")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	var order []string
	cfg := baseConfig()
	cfg.PlatformFilterChain = []extension.Entry[extension.InterceptorFactory]{
		{Name: "first", Value: headerInterceptor{name: "first", order: &order}},
		{Name: "second", Value: headerInterceptor{name: "second", order: &order}},
	}

	eng, err := newStandardEngine(Options{Config: cfg})
	if err != nil {
		t.Fatalf("newStandardEngine: %v", err)
	}
	defer eng.Terminate()

	resp, err := eng.HTTPClient().Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	// First appended filter is outermost: it runs first on the way out.
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("invocation order = %v, want [first second]", order)
	}
	if len(serverSaw) != 2 || serverSaw[0] != "first" || serverSaw[1] != "second" {
		t.Errorf("header order at server = %v, want [first second]", serverSaw)
	}
}

func TestStandardEngineCustomOverlayApplied(t *testing.T) {
	cfg := baseConfig()
	eng, err := newStandardEngine(Options{
		Config:    cfg,
		Custom:    true,
		RawConfig: "connect_timeout_seconds: 3\napp_version: 9.9.9\n",
	})
	if err != nil {
		t.Fatalf("newStandardEngine: %v", err)
	}
	defer eng.Terminate()

	se := eng.(*standardEngine)
	if se.cfg.ConnectTimeoutSeconds != 3 {
		t.Errorf("ConnectTimeoutSeconds = %d, want overlay value 3", se.cfg.ConnectTimeoutSeconds)
	}
	if se.cfg.AppVersion != "9.9.9" {
		t.Errorf("AppVersion = %q, want 9.9.9", se.cfg.AppVersion)
	}
	// The frozen configuration handed to the factory stays untouched.
	if cfg.ConnectTimeoutSeconds != config.DefaultConnectTimeoutSeconds {
		t.Error("overlay modified the frozen configuration")
	}
}

func TestStandardEngineCustomOverlayNormalizesIntervals(t *testing.T) {
	eng, err := newStandardEngine(Options{
		Config:    baseConfig(),
		Custom:    true,
		RawConfig: "stats_flush_seconds: 0\ndns_query_timeout_seconds: -1\n",
	})
	if err != nil {
		t.Fatalf("newStandardEngine: %v", err)
	}
	defer eng.Terminate()

	se := eng.(*standardEngine)
	if se.cfg.StatsFlushSeconds != config.DefaultStatsFlushSeconds {
		t.Errorf("StatsFlushSeconds = %d, want default %d", se.cfg.StatsFlushSeconds, config.DefaultStatsFlushSeconds)
	}
	if se.cfg.DNSQueryTimeoutSeconds != config.DefaultDNSQueryTimeoutSeconds {
		t.Errorf("DNSQueryTimeoutSeconds = %d, want default %d", se.cfg.DNSQueryTimeoutSeconds, config.DefaultDNSQueryTimeoutSeconds)
	}

	// Start must bring up the loops without panicking on the overlaid knobs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eng.Start(ctx); err != nil {
		t.Errorf("Start = %v, want nil after cancellation", err)
	}
}

func TestStandardEngineInvalidOverlayFailsConstruction(t *testing.T) {
	_, err := newStandardEngine(Options{
		Config:    baseConfig(),
		Custom:    true,
		RawConfig: "connect_timeout_seconds: [broken",
	})
	if err == nil {
		t.Fatal("newStandardEngine error = nil, want overlay parse error")
	}
}

func TestStandardEngineTracksLifecycleEvents(t *testing.T) {
	tracker := &recordingTracker{}
	eng, err := newStandardEngine(Options{Config: baseConfig(), EventTracker: tracker})
	if err != nil {
		t.Fatalf("newStandardEngine: %v", err)
	}

	if err := eng.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	// Terminate is idempotent.
	if err := eng.Terminate(); err != nil {
		t.Fatalf("second Terminate: %v", err)
	}

	if len(tracker.events) != 1 || tracker.events[0]["name"] != "engine_terminated" {
		t.Errorf("events = %v, want a single engine_terminated", tracker.events)
	}
}

type recordingTracker struct {
	events []map[string]string
}

func (r *recordingTracker) Track(event map[string]string) {
	r.events = append(r.events, event)
}
