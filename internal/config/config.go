package config

import (
	"github.com/meshwire/meshwire-go/internal/extension"
)

// TrustChainVerification selects how the engine validates upstream
// certificate chains.
type TrustChainVerification int

const (
	// VerifyTrustChain validates certificates against the configured or
	// system trust store. This is the default.
	VerifyTrustChain TrustChainVerification = iota
	// AcceptUntrusted skips chain validation entirely. Only for tests and
	// controlled environments.
	AcceptUntrusted
)

// Default values applied by the builder. Timeout-like knobs that are set to
// a non-positive value fall back to these, never to zero.
const (
	DefaultConnectTimeoutSeconds           = 30
	DefaultDNSRefreshSeconds               = 60
	DefaultDNSFailureRefreshSecondsBase    = 2
	DefaultDNSFailureRefreshSecondsMax     = 10
	DefaultDNSMinRefreshSeconds            = 60
	DefaultDNSQueryTimeoutSeconds          = 25
	DefaultH2KeepaliveIdleIntervalMillis   = 100000000
	DefaultH2KeepaliveTimeoutSeconds       = 10
	DefaultMaxConnectionsPerHost           = 7
	DefaultStatsFlushSeconds               = 60
	DefaultStreamIdleTimeoutSeconds        = 15
	DefaultPerTryIdleTimeoutSeconds        = 15
	DefaultXdsTimeoutSeconds               = 5
	DefaultJwtTokenLifetimeSeconds         = 7776000 // 90 days
	DefaultDNSCacheSaveIntervalSeconds     = 1
)

// PlatformStoreName is the reserved key-value store the engine uses to
// persist state across restarts (DNS cache snapshots).
const PlatformStoreName = "reserved.platform_store"

// EngineConfiguration is the frozen, immutable configuration handed to the
// runtime engine. It is produced exactly once per Freeze call; the builder
// that produced it may be mutated and re-frozen independently afterwards.
// An EngineConfiguration carries no reference back to its builder and is
// freely shareable across goroutines.
type EngineConfiguration struct {
	// Connection and stream knobs.
	ConnectTimeoutSeconds    int
	StreamIdleTimeoutSeconds int
	PerTryIdleTimeoutSeconds int
	MaxConnectionsPerHost    int

	// DNS.
	DNSRefreshSeconds            int
	DNSFailureRefreshSecondsBase int
	DNSFailureRefreshSecondsMax  int
	DNSMinRefreshSeconds         int
	DNSQueryTimeoutSeconds       int
	DNSPreresolveHostnames       []string
	EnableDNSCache               bool
	DNSCacheSaveIntervalSeconds  int
	EnableDrainPostDNSRefresh    bool

	// HTTP/3 and QUIC.
	EnableHTTP3                  bool
	HTTP3ConnectionOptions       string
	HTTP3ClientConnectionOptions string
	// QuicHints maps "host:port" to the port QUIC should be attempted on.
	QuicHints             map[string]int
	QuicCanonicalSuffixes []string

	// HTTP/2 keepalive.
	H2ConnectionKeepaliveIdleIntervalMilliseconds int
	H2ConnectionKeepaliveTimeoutSeconds           int

	// Response decompression.
	EnableGzipDecompression   bool
	EnableBrotliDecompression bool

	// Socket behavior.
	EnableSocketTagging    bool
	EnableInterfaceBinding bool

	// TLS.
	TrustChainVerification               TrustChainVerification
	EnablePlatformCertificatesValidation bool

	// Identity and stats.
	AppVersion        string
	AppID             string
	NodeID            string
	NodeRegion        string
	NodeZone          string
	NodeSubZone       string
	NodeMetadata      map[string]string
	StatsSinks        []string
	StatsFlushSeconds int
	RuntimeGuards     map[string]bool

	// Extension chains, in recorded execution order.
	PlatformFilterChain []extension.Entry[extension.InterceptorFactory]
	NativeFilterChain   []extension.Entry[string]

	// Named capability registries.
	StringAccessors map[string]extension.StringAccessor
	KeyValueStores  map[string]extension.KeyValueStore

	// Flattened dynamic-configuration (xDS) fields. XdsServerAddress == ""
	// means no xDS descriptor was configured and every feed is disabled.
	XdsServerAddress           string
	XdsServerPort              int
	XdsAuthHeader              string
	XdsAuthToken               string
	XdsJwtToken                string
	XdsJwtTokenLifetimeSeconds int
	XdsSslRootCerts            string
	XdsSni                     string
	EnableRTDS                 bool
	RtdsResourceName           string
	RtdsTimeoutSeconds         int
	EnableCDS                  bool
	// CdsResourcesLocator empty means non-xdstp addressing.
	CdsResourcesLocator string
	CdsTimeoutSeconds   int
}

// HasXds reports whether a dynamic-configuration descriptor was set.
func (c *EngineConfiguration) HasXds() bool {
	return c.XdsServerAddress != ""
}

// NormalizeIntervals substitutes the documented defaults for non-positive
// interval knobs. Both freeze and raw-config overlay application run values
// through here, so configurations reaching the runtime never carry a
// non-positive interval.
func NormalizeIntervals(c *EngineConfiguration) {
	subst := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	subst(&c.ConnectTimeoutSeconds, DefaultConnectTimeoutSeconds)
	subst(&c.DNSRefreshSeconds, DefaultDNSRefreshSeconds)
	subst(&c.DNSFailureRefreshSecondsBase, DefaultDNSFailureRefreshSecondsBase)
	subst(&c.DNSFailureRefreshSecondsMax, DefaultDNSFailureRefreshSecondsMax)
	subst(&c.DNSMinRefreshSeconds, DefaultDNSMinRefreshSeconds)
	subst(&c.DNSQueryTimeoutSeconds, DefaultDNSQueryTimeoutSeconds)
	subst(&c.DNSCacheSaveIntervalSeconds, DefaultDNSCacheSaveIntervalSeconds)
	subst(&c.H2ConnectionKeepaliveIdleIntervalMilliseconds, DefaultH2KeepaliveIdleIntervalMillis)
	subst(&c.H2ConnectionKeepaliveTimeoutSeconds, DefaultH2KeepaliveTimeoutSeconds)
	subst(&c.MaxConnectionsPerHost, DefaultMaxConnectionsPerHost)
	subst(&c.StatsFlushSeconds, DefaultStatsFlushSeconds)
	subst(&c.StreamIdleTimeoutSeconds, DefaultStreamIdleTimeoutSeconds)
	subst(&c.PerTryIdleTimeoutSeconds, DefaultPerTryIdleTimeoutSeconds)
}
