package engine

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Profile is the YAML surface for constructing a Builder from a file. It is
// an external collaborator of the builder: loading a profile is exactly
// equivalent to making the corresponding setter calls by hand.
type Profile struct {
	// RawConfig, when present, selects the custom base-configuration
	// variant with the given document.
	RawConfig string `yaml:"raw_config"`

	ConnectTimeoutSeconds    int `yaml:"connect_timeout_seconds"`
	StreamIdleTimeoutSeconds int `yaml:"stream_idle_timeout_seconds"`
	PerTryIdleTimeoutSeconds int `yaml:"per_try_idle_timeout_seconds"`
	MaxConnectionsPerHost    int `yaml:"max_connections_per_host"`
	StatsFlushSeconds        int `yaml:"stats_flush_seconds"`

	AppVersion string `yaml:"app_version"`
	AppID      string `yaml:"app_id"`

	DNS struct {
		RefreshSeconds            int      `yaml:"refresh_seconds"`
		FailureRefreshSecondsBase int      `yaml:"failure_refresh_seconds_base"`
		FailureRefreshSecondsMax  int      `yaml:"failure_refresh_seconds_max"`
		MinRefreshSeconds         int      `yaml:"min_refresh_seconds"`
		QueryTimeoutSeconds       int      `yaml:"query_timeout_seconds"`
		PreresolveHostnames       []string `yaml:"preresolve_hostnames"`
		CacheEnabled              bool     `yaml:"cache_enabled"`
		CacheSaveIntervalSeconds  int      `yaml:"cache_save_interval_seconds"`
		DrainPostRefresh          bool     `yaml:"drain_post_refresh"`
	} `yaml:"dns"`

	HTTP3 struct {
		Enabled                 bool           `yaml:"enabled"`
		ConnectionOptions       string         `yaml:"connection_options"`
		ClientConnectionOptions string         `yaml:"client_connection_options"`
		QuicHints               map[string]int `yaml:"quic_hints"` // host -> port
		QuicCanonicalSuffixes   []string       `yaml:"quic_canonical_suffixes"`
	} `yaml:"http3"`

	Decompression struct {
		Gzip   bool `yaml:"gzip"`
		Brotli bool `yaml:"brotli"`
	} `yaml:"decompression"`

	Node struct {
		ID       string            `yaml:"id"`
		Region   string            `yaml:"region"`
		Zone     string            `yaml:"zone"`
		SubZone  string            `yaml:"sub_zone"`
		Metadata map[string]string `yaml:"metadata"`
	} `yaml:"node"`

	StatsSinks    []string        `yaml:"stats_sinks"`
	RuntimeGuards map[string]bool `yaml:"runtime_guards"`

	NativeFilters []struct {
		Name   string `yaml:"name"`
		Config string `yaml:"config"`
	} `yaml:"native_filters"`

	Xds *struct {
		ServerAddress string `yaml:"server_address"`
		ServerPort    int    `yaml:"server_port"`
		AuthHeader    string `yaml:"auth_header"`
		AuthToken     string `yaml:"auth_token"`
		JwtToken      string `yaml:"jwt_token"`
		JwtLifetime   int    `yaml:"jwt_token_lifetime_seconds"`
		SslRootCerts  string `yaml:"ssl_root_certs"`
		Sni           string `yaml:"sni"`
		Rtds          *struct {
			ResourceName   string `yaml:"resource_name"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"rtds"`
		Cds *struct {
			ResourcesLocator string `yaml:"resources_locator"`
			TimeoutSeconds   int    `yaml:"timeout_seconds"`
		} `yaml:"cds"`
	} `yaml:"xds"`
}

// LoadProfile reads a YAML engine profile and applies it to a fresh Builder.
func LoadProfile(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses a YAML engine profile and applies it to a fresh
// Builder.
func ParseProfile(data []byte) (*Builder, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return p.Apply(), nil
}

// Apply constructs a Builder and replays the profile onto it. Zero-valued
// fields are left at the builder's defaults.
func (p *Profile) Apply() *Builder {
	var b *Builder
	if p.RawConfig != "" {
		b = NewBuilderWithConfig(p.RawConfig)
	} else {
		b = NewBuilder()
	}

	setIf := func(v int, set func(int) *Builder) {
		if v != 0 {
			set(v)
		}
	}
	setIf(p.ConnectTimeoutSeconds, b.SetConnectTimeoutSeconds)
	setIf(p.StreamIdleTimeoutSeconds, b.SetStreamIdleTimeoutSeconds)
	setIf(p.PerTryIdleTimeoutSeconds, b.SetPerTryIdleTimeoutSeconds)
	setIf(p.MaxConnectionsPerHost, b.SetMaxConnectionsPerHost)
	setIf(p.StatsFlushSeconds, b.SetStatsFlushSeconds)

	if p.AppVersion != "" {
		b.SetAppVersion(p.AppVersion)
	}
	if p.AppID != "" {
		b.SetAppID(p.AppID)
	}

	setIf(p.DNS.RefreshSeconds, b.SetDNSRefreshSeconds)
	if p.DNS.FailureRefreshSecondsBase != 0 || p.DNS.FailureRefreshSecondsMax != 0 {
		b.SetDNSFailureRefreshSeconds(p.DNS.FailureRefreshSecondsBase, p.DNS.FailureRefreshSecondsMax)
	}
	setIf(p.DNS.MinRefreshSeconds, b.SetDNSMinRefreshSeconds)
	setIf(p.DNS.QueryTimeoutSeconds, b.SetDNSQueryTimeoutSeconds)
	if len(p.DNS.PreresolveHostnames) > 0 {
		b.SetDNSPreresolveHostnames(p.DNS.PreresolveHostnames...)
	}
	if p.DNS.CacheEnabled {
		b.EnableDNSCache(true, p.DNS.CacheSaveIntervalSeconds)
	}
	if p.DNS.DrainPostRefresh {
		b.EnableDrainPostDNSRefresh(true)
	}

	if p.HTTP3.Enabled {
		b.EnableHTTP3(true)
	}
	if p.HTTP3.ConnectionOptions != "" {
		b.SetHTTP3ConnectionOptions(p.HTTP3.ConnectionOptions)
	}
	if p.HTTP3.ClientConnectionOptions != "" {
		b.SetHTTP3ClientConnectionOptions(p.HTTP3.ClientConnectionOptions)
	}
	for host, port := range p.HTTP3.QuicHints {
		b.AddQuicHint(host, port)
	}
	for _, suffix := range p.HTTP3.QuicCanonicalSuffixes {
		b.AddQuicCanonicalSuffix(suffix)
	}

	if p.Decompression.Gzip {
		b.EnableGzipDecompression(true)
	}
	if p.Decompression.Brotli {
		b.EnableBrotliDecompression(true)
	}

	if p.Node.ID != "" {
		b.SetNodeID(p.Node.ID)
	}
	if p.Node.Region != "" || p.Node.Zone != "" || p.Node.SubZone != "" {
		b.SetNodeLocality(p.Node.Region, p.Node.Zone, p.Node.SubZone)
	}
	for k, v := range p.Node.Metadata {
		b.AddNodeMetadata(k, v)
	}

	if len(p.StatsSinks) > 0 {
		b.SetStatsSinks(p.StatsSinks...)
	}
	for name, value := range p.RuntimeGuards {
		b.AddRuntimeGuard(name, value)
	}
	for _, f := range p.NativeFilters {
		b.AddNativeFilter(f.Name, f.Config)
	}

	if p.Xds != nil {
		x := NewXdsBuilder(p.Xds.ServerAddress, p.Xds.ServerPort)
		if p.Xds.AuthHeader != "" {
			x.SetAuthenticationToken(p.Xds.AuthHeader, p.Xds.AuthToken)
		}
		if p.Xds.JwtToken != "" {
			x.SetJwtAuthenticationToken(p.Xds.JwtToken, p.Xds.JwtLifetime)
		}
		if p.Xds.SslRootCerts != "" {
			x.SetSslRootCerts(p.Xds.SslRootCerts)
		}
		if p.Xds.Sni != "" {
			x.SetSni(p.Xds.Sni)
		}
		if p.Xds.Rtds != nil {
			x.AddRuntimeDiscoveryService(p.Xds.Rtds.ResourceName, p.Xds.Rtds.TimeoutSeconds)
		}
		if p.Xds.Cds != nil {
			x.AddClusterDiscoveryService(p.Xds.Cds.ResourcesLocator, p.Xds.Cds.TimeoutSeconds)
		}
		b.SetXds(x)
	}

	return b
}
