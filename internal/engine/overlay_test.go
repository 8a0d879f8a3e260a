package engine

import (
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/extension"
)

func TestParseOverlayEmptyDocument(t *testing.T) {
	o, err := parseOverlay("")
	if err != nil {
		t.Fatalf("parseOverlay(\"\") error = %v", err)
	}
	if o.ConnectTimeoutSeconds != nil || o.EnableHTTP3 != nil {
		t.Error("empty document produced overrides")
	}
}

func TestParseOverlayInvalidDocument(t *testing.T) {
	if _, err := parseOverlay("connect_timeout_seconds: [oops"); err == nil {
		t.Fatal("parseOverlay error = nil, want parse error")
	}
}

func TestOverlayApplyPrecedence(t *testing.T) {
	const raw = `
connect_timeout_seconds: 3
enable_http3: false
app_version: 2.0.0
runtime_guards:
  quic_enabled: false
  new_guard: true
`
	o, err := parseOverlay(raw)
	if err != nil {
		t.Fatalf("parseOverlay: %v", err)
	}

	base := &config.EngineConfiguration{
		ConnectTimeoutSeconds: config.DefaultConnectTimeoutSeconds,
		DNSRefreshSeconds:     config.DefaultDNSRefreshSeconds,
		EnableHTTP3:           true,
		AppVersion:            "1.0.0",
		AppID:                 "com.example.app",
		RuntimeGuards:         map[string]bool{"quic_enabled": true, "kept": true},
	}
	got := o.apply(base)

	if got.ConnectTimeoutSeconds != 3 {
		t.Errorf("ConnectTimeoutSeconds = %d, want overlay value 3", got.ConnectTimeoutSeconds)
	}
	if got.DNSRefreshSeconds != config.DefaultDNSRefreshSeconds {
		t.Errorf("DNSRefreshSeconds = %d, want untouched default", got.DNSRefreshSeconds)
	}
	// Explicit false must override, unlike an absent field.
	if got.EnableHTTP3 {
		t.Error("EnableHTTP3 = true, want overlay's explicit false")
	}
	if got.AppVersion != "2.0.0" {
		t.Errorf("AppVersion = %q, want 2.0.0", got.AppVersion)
	}
	if got.AppID != "com.example.app" {
		t.Errorf("AppID = %q, want untouched", got.AppID)
	}
	if got.RuntimeGuards["quic_enabled"] || !got.RuntimeGuards["new_guard"] || !got.RuntimeGuards["kept"] {
		t.Errorf("RuntimeGuards = %v, want merged with overlay precedence", got.RuntimeGuards)
	}

	// The base configuration is never modified.
	if base.ConnectTimeoutSeconds != config.DefaultConnectTimeoutSeconds || !base.EnableHTTP3 {
		t.Error("apply modified the base configuration")
	}
	if base.RuntimeGuards["new_guard"] {
		t.Error("apply modified the base configuration's runtime guards")
	}
}

func TestOverlayApplyClampsNonPositiveIntervals(t *testing.T) {
	const raw = `
stats_flush_seconds: 0
connect_timeout_seconds: -5
dns_query_timeout_seconds: 0
`
	o, err := parseOverlay(raw)
	if err != nil {
		t.Fatalf("parseOverlay: %v", err)
	}

	base := &config.EngineConfiguration{
		ConnectTimeoutSeconds:  config.DefaultConnectTimeoutSeconds,
		DNSQueryTimeoutSeconds: config.DefaultDNSQueryTimeoutSeconds,
		StatsFlushSeconds:      config.DefaultStatsFlushSeconds,
	}
	got := o.apply(base)

	if got.StatsFlushSeconds != config.DefaultStatsFlushSeconds {
		t.Errorf("StatsFlushSeconds = %d, want default %d", got.StatsFlushSeconds, config.DefaultStatsFlushSeconds)
	}
	if got.ConnectTimeoutSeconds != config.DefaultConnectTimeoutSeconds {
		t.Errorf("ConnectTimeoutSeconds = %d, want default %d", got.ConnectTimeoutSeconds, config.DefaultConnectTimeoutSeconds)
	}
	if got.DNSQueryTimeoutSeconds != config.DefaultDNSQueryTimeoutSeconds {
		t.Errorf("DNSQueryTimeoutSeconds = %d, want default %d", got.DNSQueryTimeoutSeconds, config.DefaultDNSQueryTimeoutSeconds)
	}
}

func TestOverlayExtensionsOverrideNativeFilterConfigs(t *testing.T) {
	o, err := parseOverlay("extensions:\n  buffer:\n    max_bytes: 2048\n")
	if err != nil {
		t.Fatalf("parseOverlay: %v", err)
	}

	base := &config.EngineConfiguration{
		NativeFilterChain: []extension.Entry[string]{
			{Name: "buffer", Value: "max_bytes: 1024"},
			{Name: "retry", Value: "attempts: 3"},
		},
	}
	got := o.apply(base)

	// The replacing document stays raw YAML; the owning filter decodes it.
	var bufCfg struct {
		MaxBytes int `yaml:"max_bytes"`
	}
	if err := yaml.Unmarshal([]byte(got.NativeFilterChain[0].Value), &bufCfg); err != nil {
		t.Fatalf("decode overridden config: %v", err)
	}
	if bufCfg.MaxBytes != 2048 {
		t.Errorf("buffer max_bytes = %d, want overlay value 2048", bufCfg.MaxBytes)
	}
	if got.NativeFilterChain[1].Value != "attempts: 3" {
		t.Errorf("retry config = %q, want untouched", got.NativeFilterChain[1].Value)
	}
	if base.NativeFilterChain[0].Value != "max_bytes: 1024" {
		t.Error("apply modified the base configuration's filter chain")
	}
}
