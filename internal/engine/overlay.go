package engine

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/extension"
)

// overlay is the parsed form of a custom raw configuration document. Only
// fields present in the document override the frozen configuration; pointer
// fields distinguish "absent" from zero values.
type overlay struct {
	ConnectTimeoutSeconds    *int  `yaml:"connect_timeout_seconds"`
	DNSRefreshSeconds        *int  `yaml:"dns_refresh_seconds"`
	DNSQueryTimeoutSeconds   *int  `yaml:"dns_query_timeout_seconds"`
	StreamIdleTimeoutSeconds *int  `yaml:"stream_idle_timeout_seconds"`
	PerTryIdleTimeoutSeconds *int  `yaml:"per_try_idle_timeout_seconds"`
	MaxConnectionsPerHost    *int  `yaml:"max_connections_per_host"`
	StatsFlushSeconds        *int  `yaml:"stats_flush_seconds"`
	EnableHTTP3              *bool `yaml:"enable_http3"`
	EnableGzipDecompression  *bool `yaml:"enable_gzip_decompression"`
	EnableBrotliDecompression *bool `yaml:"enable_brotli_decompression"`

	AppVersion string `yaml:"app_version"`
	AppID      string `yaml:"app_id"`

	RuntimeGuards map[string]bool `yaml:"runtime_guards"`

	// Extensions carries raw per-extension documents. An entry whose key
	// matches a native filter's name replaces that filter's typed config.
	Extensions map[string]yaml.RawMessage `yaml:"extensions"`
}

// parseOverlay decodes a raw configuration document. An empty document is
// valid and yields no overrides.
func parseOverlay(raw string) (*overlay, error) {
	var o overlay
	if err := yaml.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("parse raw configuration: %w", err)
	}
	return &o, nil
}

// apply returns a copy of cfg with the overlay's explicit settings taking
// precedence. cfg itself is never modified.
func (o *overlay) apply(cfg *config.EngineConfiguration) *config.EngineConfiguration {
	out := *cfg

	if o.ConnectTimeoutSeconds != nil {
		out.ConnectTimeoutSeconds = *o.ConnectTimeoutSeconds
	}
	if o.DNSRefreshSeconds != nil {
		out.DNSRefreshSeconds = *o.DNSRefreshSeconds
	}
	if o.DNSQueryTimeoutSeconds != nil {
		out.DNSQueryTimeoutSeconds = *o.DNSQueryTimeoutSeconds
	}
	if o.StreamIdleTimeoutSeconds != nil {
		out.StreamIdleTimeoutSeconds = *o.StreamIdleTimeoutSeconds
	}
	if o.PerTryIdleTimeoutSeconds != nil {
		out.PerTryIdleTimeoutSeconds = *o.PerTryIdleTimeoutSeconds
	}
	if o.MaxConnectionsPerHost != nil {
		out.MaxConnectionsPerHost = *o.MaxConnectionsPerHost
	}
	if o.StatsFlushSeconds != nil {
		out.StatsFlushSeconds = *o.StatsFlushSeconds
	}
	if o.EnableHTTP3 != nil {
		out.EnableHTTP3 = *o.EnableHTTP3
	}
	if o.EnableGzipDecompression != nil {
		out.EnableGzipDecompression = *o.EnableGzipDecompression
	}
	if o.EnableBrotliDecompression != nil {
		out.EnableBrotliDecompression = *o.EnableBrotliDecompression
	}
	if o.AppVersion != "" {
		out.AppVersion = o.AppVersion
	}
	if o.AppID != "" {
		out.AppID = o.AppID
	}
	if len(o.RuntimeGuards) > 0 {
		guards := make(map[string]bool, len(cfg.RuntimeGuards)+len(o.RuntimeGuards))
		for k, v := range cfg.RuntimeGuards {
			guards[k] = v
		}
		for k, v := range o.RuntimeGuards {
			guards[k] = v
		}
		out.RuntimeGuards = guards
	}
	if len(o.Extensions) > 0 && len(cfg.NativeFilterChain) > 0 {
		chain := make([]extension.Entry[string], len(cfg.NativeFilterChain))
		copy(chain, cfg.NativeFilterChain)
		for i, f := range chain {
			if doc, ok := o.Extensions[f.Name]; ok {
				chain[i].Value = string(doc)
			}
		}
		out.NativeFilterChain = chain
	}

	// The raw document is opaque and never rejected, so overlaid interval
	// knobs get the same non-positive substitution freezing performs.
	config.NormalizeIntervals(&out)

	return &out
}
