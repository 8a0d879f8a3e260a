package engine

import (
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/meshwire/meshwire-go/internal/config"
	ie "github.com/meshwire/meshwire-go/internal/engine"
	"github.com/meshwire/meshwire-go/internal/extension"
)

// Builder accumulates engine configuration through chained setter calls and
// freezes it into an immutable Configuration. Setters never fail: values are
// normalized rather than rejected, and every setter overwrites its field
// (chain appends and registry puts are additive/overwriting instead).
//
// A Builder is meant for single-goroutine, sequential construction. Sharing
// one builder across goroutines without external locking is undefined
// behavior; only the freeze copy-out itself is internally locked. Frozen
// Configurations, by contrast, are freely shareable.
type Builder struct {
	mu  sync.Mutex // guards the freeze copy-out
	cfg config.EngineConfiguration

	custom    bool
	rawConfig string

	platformFilters extension.Chain[extension.InterceptorFactory]
	nativeFilters   extension.Chain[string]
	stringAccessors extension.Registry[extension.StringAccessor]
	keyValueStores  extension.Registry[extension.KeyValueStore]

	xds *XdsBuilder

	factory Factory
	logger  *zap.Logger
	tracker EventTracker
}

// NewBuilder creates a builder for the standard base configuration: the
// engine's compiled-in default topology.
func NewBuilder() *Builder {
	return &Builder{cfg: defaultConfiguration()}
}

// NewBuilderWithConfig creates a builder for the custom base configuration
// variant. raw is a full configuration document the engine parses verbatim;
// settings it explicitly overrides take precedence over the frozen
// configuration. Callers must supply non-empty text; this is a documented
// precondition, not validated here.
func NewBuilderWithConfig(raw string) *Builder {
	b := NewBuilder()
	b.custom = true
	b.rawConfig = raw
	return b
}

func defaultConfiguration() config.EngineConfiguration {
	return config.EngineConfiguration{
		ConnectTimeoutSeconds:        config.DefaultConnectTimeoutSeconds,
		DNSRefreshSeconds:            config.DefaultDNSRefreshSeconds,
		DNSFailureRefreshSecondsBase: config.DefaultDNSFailureRefreshSecondsBase,
		DNSFailureRefreshSecondsMax:  config.DefaultDNSFailureRefreshSecondsMax,
		DNSMinRefreshSeconds:         config.DefaultDNSMinRefreshSeconds,
		DNSQueryTimeoutSeconds:       config.DefaultDNSQueryTimeoutSeconds,
		DNSCacheSaveIntervalSeconds:  config.DefaultDNSCacheSaveIntervalSeconds,
		H2ConnectionKeepaliveIdleIntervalMilliseconds: config.DefaultH2KeepaliveIdleIntervalMillis,
		H2ConnectionKeepaliveTimeoutSeconds:           config.DefaultH2KeepaliveTimeoutSeconds,
		MaxConnectionsPerHost:                         config.DefaultMaxConnectionsPerHost,
		StatsFlushSeconds:                             config.DefaultStatsFlushSeconds,
		StreamIdleTimeoutSeconds:                      config.DefaultStreamIdleTimeoutSeconds,
		PerTryIdleTimeoutSeconds:                      config.DefaultPerTryIdleTimeoutSeconds,
		AppVersion:                                    "unspecified",
		AppID:                                         "unspecified",
		TrustChainVerification:                        config.VerifyTrustChain,
	}
}

// SetConnectTimeoutSeconds sets the connection establishment timeout.
func (b *Builder) SetConnectTimeoutSeconds(v int) *Builder {
	b.cfg.ConnectTimeoutSeconds = v
	return b
}

// SetDNSRefreshSeconds sets the steady-state DNS refresh interval.
func (b *Builder) SetDNSRefreshSeconds(v int) *Builder {
	b.cfg.DNSRefreshSeconds = v
	return b
}

// SetDNSFailureRefreshSeconds sets the base and max backoff intervals used
// between failed DNS refresh rounds.
func (b *Builder) SetDNSFailureRefreshSeconds(base, max int) *Builder {
	b.cfg.DNSFailureRefreshSecondsBase = base
	b.cfg.DNSFailureRefreshSecondsMax = max
	return b
}

// SetDNSMinRefreshSeconds sets the floor on the effective refresh interval.
func (b *Builder) SetDNSMinRefreshSeconds(v int) *Builder {
	b.cfg.DNSMinRefreshSeconds = v
	return b
}

// SetDNSQueryTimeoutSeconds bounds individual DNS queries.
func (b *Builder) SetDNSQueryTimeoutSeconds(v int) *Builder {
	b.cfg.DNSQueryTimeoutSeconds = v
	return b
}

// SetDNSPreresolveHostnames replaces the list of hostnames resolved eagerly
// at engine start and kept fresh by the refresh loop.
func (b *Builder) SetDNSPreresolveHostnames(hosts ...string) *Builder {
	b.cfg.DNSPreresolveHostnames = append([]string(nil), hosts...)
	return b
}

// EnableDNSCache toggles DNS cache persistence through the reserved
// platform key-value store, with the given save interval.
func (b *Builder) EnableDNSCache(enabled bool, saveIntervalSeconds int) *Builder {
	b.cfg.EnableDNSCache = enabled
	b.cfg.DNSCacheSaveIntervalSeconds = saveIntervalSeconds
	return b
}

// EnableDrainPostDNSRefresh makes the engine drain established connections
// after each completed DNS refresh.
func (b *Builder) EnableDrainPostDNSRefresh(enabled bool) *Builder {
	b.cfg.EnableDrainPostDNSRefresh = enabled
	return b
}

// EnableHTTP3 toggles the HTTP/3 transport.
func (b *Builder) EnableHTTP3(enabled bool) *Builder {
	b.cfg.EnableHTTP3 = enabled
	return b
}

// SetHTTP3ConnectionOptions sets QUIC connection options forwarded to the
// engine's HTTP/3 stack.
func (b *Builder) SetHTTP3ConnectionOptions(opts string) *Builder {
	b.cfg.HTTP3ConnectionOptions = opts
	return b
}

// SetHTTP3ClientConnectionOptions sets QUIC client connection options
// forwarded to the engine's HTTP/3 stack.
func (b *Builder) SetHTTP3ClientConnectionOptions(opts string) *Builder {
	b.cfg.HTTP3ClientConnectionOptions = opts
	return b
}

// AddQuicHint records that host:port is known to support HTTP/3, so the
// engine prefers QUIC for it without waiting for Alt-Svc discovery.
func (b *Builder) AddQuicHint(host string, port int) *Builder {
	if b.cfg.QuicHints == nil {
		b.cfg.QuicHints = make(map[string]int)
	}
	b.cfg.QuicHints[net.JoinHostPort(host, strconv.Itoa(port))] = port
	return b
}

// AddQuicCanonicalSuffix marks a domain suffix whose hosts share QUIC
// brokenness/support state.
func (b *Builder) AddQuicCanonicalSuffix(suffix string) *Builder {
	b.cfg.QuicCanonicalSuffixes = append(b.cfg.QuicCanonicalSuffixes, suffix)
	return b
}

// EnableGzipDecompression toggles transparent gzip response decompression.
func (b *Builder) EnableGzipDecompression(enabled bool) *Builder {
	b.cfg.EnableGzipDecompression = enabled
	return b
}

// EnableBrotliDecompression toggles transparent brotli response
// decompression.
func (b *Builder) EnableBrotliDecompression(enabled bool) *Builder {
	b.cfg.EnableBrotliDecompression = enabled
	return b
}

// EnableSocketTagging toggles per-socket traffic tagging on platforms that
// support it.
func (b *Builder) EnableSocketTagging(enabled bool) *Builder {
	b.cfg.EnableSocketTagging = enabled
	return b
}

// EnableInterfaceBinding allows the engine to bind sockets to specific
// network interfaces.
func (b *Builder) EnableInterfaceBinding(enabled bool) *Builder {
	b.cfg.EnableInterfaceBinding = enabled
	return b
}

// SetH2ConnectionKeepaliveIdleIntervalMilliseconds sets the idle interval
// between HTTP/2 keepalive pings.
func (b *Builder) SetH2ConnectionKeepaliveIdleIntervalMilliseconds(v int) *Builder {
	b.cfg.H2ConnectionKeepaliveIdleIntervalMilliseconds = v
	return b
}

// SetH2ConnectionKeepaliveTimeoutSeconds sets the HTTP/2 keepalive ping
// timeout.
func (b *Builder) SetH2ConnectionKeepaliveTimeoutSeconds(v int) *Builder {
	b.cfg.H2ConnectionKeepaliveTimeoutSeconds = v
	return b
}

// SetMaxConnectionsPerHost caps concurrent connections per host.
func (b *Builder) SetMaxConnectionsPerHost(v int) *Builder {
	b.cfg.MaxConnectionsPerHost = v
	return b
}

// SetStatsFlushSeconds sets the stats flush cadence.
func (b *Builder) SetStatsFlushSeconds(v int) *Builder {
	b.cfg.StatsFlushSeconds = v
	return b
}

// SetStreamIdleTimeoutSeconds sets the per-stream inactivity timeout.
func (b *Builder) SetStreamIdleTimeoutSeconds(v int) *Builder {
	b.cfg.StreamIdleTimeoutSeconds = v
	return b
}

// SetPerTryIdleTimeoutSeconds sets the per-retry-attempt inactivity timeout.
func (b *Builder) SetPerTryIdleTimeoutSeconds(v int) *Builder {
	b.cfg.PerTryIdleTimeoutSeconds = v
	return b
}

// SetAppVersion records the embedding application's version for telemetry.
func (b *Builder) SetAppVersion(v string) *Builder {
	b.cfg.AppVersion = v
	return b
}

// SetAppID records the embedding application's identifier for telemetry.
func (b *Builder) SetAppID(v string) *Builder {
	b.cfg.AppID = v
	return b
}

// SetTrustChainVerification selects certificate chain validation behavior.
func (b *Builder) SetTrustChainVerification(mode TrustChainVerification) *Builder {
	b.cfg.TrustChainVerification = mode
	return b
}

// EnablePlatformCertificatesValidation validates certificates against the
// platform trust store instead of the bundled roots.
func (b *Builder) EnablePlatformCertificatesValidation(enabled bool) *Builder {
	b.cfg.EnablePlatformCertificatesValidation = enabled
	return b
}

// SetNodeID sets the node identifier presented to management servers.
func (b *Builder) SetNodeID(id string) *Builder {
	b.cfg.NodeID = id
	return b
}

// SetNodeLocality sets the node locality presented to management servers.
func (b *Builder) SetNodeLocality(region, zone, subZone string) *Builder {
	b.cfg.NodeRegion = region
	b.cfg.NodeZone = zone
	b.cfg.NodeSubZone = subZone
	return b
}

// AddNodeMetadata attaches one metadata entry to the node identity.
// Re-adding a key overwrites the prior value.
func (b *Builder) AddNodeMetadata(key, value string) *Builder {
	if b.cfg.NodeMetadata == nil {
		b.cfg.NodeMetadata = make(map[string]string)
	}
	b.cfg.NodeMetadata[key] = value
	return b
}

// SetStatsSinks replaces the list of stats sink targets.
func (b *Builder) SetStatsSinks(sinks ...string) *Builder {
	b.cfg.StatsSinks = append([]string(nil), sinks...)
	return b
}

// AddRuntimeGuard sets one runtime feature guard override. Re-adding a guard
// overwrites the prior value.
func (b *Builder) AddRuntimeGuard(name string, value bool) *Builder {
	if b.cfg.RuntimeGuards == nil {
		b.cfg.RuntimeGuards = make(map[string]bool)
	}
	b.cfg.RuntimeGuards[name] = value
	return b
}

// AddPlatformFilter appends a platform filter to the chain. Filters execute
// in the order they were appended. An empty name is replaced with a
// generated unique token.
func (b *Builder) AddPlatformFilter(name string, factory InterceptorFactory) *Builder {
	b.platformFilters.Append(name, factory)
	return b
}

// AddNativeFilter appends a native filter with its typed configuration
// document to the chain. An empty name is replaced with a generated unique
// token.
func (b *Builder) AddNativeFilter(name, typedConfig string) *Builder {
	b.nativeFilters.Append(name, typedConfig)
	return b
}

// AddStringAccessor registers a string accessor under name; re-registering
// a name replaces the prior accessor.
func (b *Builder) AddStringAccessor(name string, accessor StringAccessor) *Builder {
	b.stringAccessors.Put(name, accessor)
	return b
}

// AddKeyValueStore registers a key-value store under name; re-registering a
// name replaces the prior store.
func (b *Builder) AddKeyValueStore(name string, store KeyValueStore) *Builder {
	b.keyValueStores.Put(name, store)
	return b
}

// SetXds attaches a dynamic-configuration descriptor. The descriptor's
// fields are flattened into the Configuration at freeze time; keeping and
// mutating the XdsBuilder afterwards affects later freezes only.
func (b *Builder) SetXds(x *XdsBuilder) *Builder {
	b.xds = x
	return b
}

// AddEngineType overrides the engine factory invoked by Build. The default
// factory constructs the standard runtime implementation.
func (b *Builder) AddEngineType(factory Factory) *Builder {
	b.factory = factory
	return b
}

// SetLogger sets the logger handed to the engine. The builder itself never
// logs.
func (b *Builder) SetLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// SetEventTracker sets the tracker that receives engine events.
func (b *Builder) SetEventTracker(tracker EventTracker) *Builder {
	b.tracker = tracker
	return b
}

// Freeze resolves default substitutions, copies the chains and registries,
// flattens the xDS descriptor, and returns the immutable Configuration.
// Later builder mutations never affect a Configuration already returned.
func (b *Builder) Freeze() *Configuration {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.cfg
	config.NormalizeIntervals(&snap)

	snap.DNSPreresolveHostnames = copySlice(b.cfg.DNSPreresolveHostnames)
	snap.QuicCanonicalSuffixes = copySlice(b.cfg.QuicCanonicalSuffixes)
	snap.StatsSinks = copySlice(b.cfg.StatsSinks)
	snap.QuicHints = copyMap(b.cfg.QuicHints)
	snap.NodeMetadata = copyMap(b.cfg.NodeMetadata)
	snap.RuntimeGuards = copyMap(b.cfg.RuntimeGuards)

	snap.PlatformFilterChain = b.platformFilters.Snapshot()
	snap.NativeFilterChain = b.nativeFilters.Snapshot()
	snap.StringAccessors = b.stringAccessors.Snapshot()
	snap.KeyValueStores = b.keyValueStores.Snapshot()

	if b.xds != nil {
		b.xds.flattenInto(&snap)
	}

	return &snap
}

// Build freezes the current state and hands the Configuration (and, for the
// custom variant, the raw configuration text — always both together) to the
// engine factory. Factory errors propagate unchanged; the builder performs
// no retry and no partial recovery.
func (b *Builder) Build() (Engine, error) {
	snap := b.Freeze()

	factory := b.factory
	if factory == nil {
		factory = ie.DefaultFactory
	}
	return factory(ie.Options{
		Config:       snap,
		Custom:       b.custom,
		RawConfig:    b.rawConfig,
		Logger:       b.logger,
		EventTracker: b.tracker,
	})
}

func copySlice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func copyMap[V any](in map[string]V) map[string]V {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
