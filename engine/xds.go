package engine

import (
	"github.com/meshwire/meshwire-go/internal/config"
)

// XdsBuilder describes the engine's connection to a dynamic-configuration
// (xDS) management server: addressing, authentication, trust material, and
// two independently toggleable discovery feeds. All timeout normalization
// happens at call time, so the effective values are visible on the builder
// immediately, not just after freezing.
type XdsBuilder struct {
	serverAddress string
	serverPort    int

	authHeader         string
	authToken          string
	jwtToken           string
	jwtLifetimeSeconds int

	sslRootCerts string
	sni          string

	rtdsEnabled        bool
	rtdsResourceName   string
	rtdsTimeoutSeconds int

	cdsEnabled          bool
	cdsResourcesLocator string
	cdsTimeoutSeconds   int
}

// NewXdsBuilder creates a descriptor for the management server at
// address:port. Both discovery feeds start disabled.
func NewXdsBuilder(address string, port int) *XdsBuilder {
	return &XdsBuilder{
		serverAddress: address,
		serverPort:    port,
	}
}

// SetAuthenticationToken configures header/token authentication for the
// management connection. Header and token are set as a pair. Calling this
// after SetJwtAuthenticationToken replaces the JWT configuration: the last
// authentication setter invoked wins.
func (x *XdsBuilder) SetAuthenticationToken(header, token string) *XdsBuilder {
	x.authHeader = header
	x.authToken = token
	x.jwtToken = ""
	x.jwtLifetimeSeconds = 0
	return x
}

// SetJwtAuthenticationToken configures JWT bearer authentication. A
// non-positive lifetime falls back to 90 days. Calling this after
// SetAuthenticationToken replaces the header/token configuration: the last
// authentication setter invoked wins.
func (x *XdsBuilder) SetJwtAuthenticationToken(token string, lifetimeSeconds int) *XdsBuilder {
	if lifetimeSeconds <= 0 {
		lifetimeSeconds = config.DefaultJwtTokenLifetimeSeconds
	}
	x.jwtToken = token
	x.jwtLifetimeSeconds = lifetimeSeconds
	x.authHeader = ""
	x.authToken = ""
	return x
}

// SetSslRootCerts supplies the PEM trust bundle for the management
// connection. Empty means system roots.
func (x *XdsBuilder) SetSslRootCerts(certs string) *XdsBuilder {
	x.sslRootCerts = certs
	return x
}

// SetSni sets the TLS server name presented when connecting.
func (x *XdsBuilder) SetSni(sni string) *XdsBuilder {
	x.sni = sni
	return x
}

// AddRuntimeDiscoveryService enables the runtime discovery (RTDS) feed for
// the named resource. A non-positive timeout falls back to 5 seconds.
func (x *XdsBuilder) AddRuntimeDiscoveryService(resourceName string, timeoutSeconds int) *XdsBuilder {
	if timeoutSeconds <= 0 {
		timeoutSeconds = config.DefaultXdsTimeoutSeconds
	}
	x.rtdsEnabled = true
	x.rtdsResourceName = resourceName
	x.rtdsTimeoutSeconds = timeoutSeconds
	return x
}

// AddClusterDiscoveryService enables the cluster discovery (CDS) feed. An
// empty resourcesLocator selects non-xdstp addressing. A non-positive
// timeout falls back to 5 seconds.
func (x *XdsBuilder) AddClusterDiscoveryService(resourcesLocator string, timeoutSeconds int) *XdsBuilder {
	if timeoutSeconds <= 0 {
		timeoutSeconds = config.DefaultXdsTimeoutSeconds
	}
	x.cdsEnabled = true
	x.cdsResourcesLocator = resourcesLocator
	x.cdsTimeoutSeconds = timeoutSeconds
	return x
}

// RtdsTimeoutSeconds returns the effective RTDS fetch timeout (0 when the
// feed is disabled).
func (x *XdsBuilder) RtdsTimeoutSeconds() int { return x.rtdsTimeoutSeconds }

// CdsTimeoutSeconds returns the effective CDS fetch timeout (0 when the
// feed is disabled).
func (x *XdsBuilder) CdsTimeoutSeconds() int { return x.cdsTimeoutSeconds }

// JwtTokenLifetimeSeconds returns the effective JWT lifetime (0 when JWT
// authentication is not configured).
func (x *XdsBuilder) JwtTokenLifetimeSeconds() int { return x.jwtLifetimeSeconds }

// flattenInto copies the descriptor's fields into a configuration snapshot.
// Values were already normalized at call time.
func (x *XdsBuilder) flattenInto(c *Configuration) {
	c.XdsServerAddress = x.serverAddress
	c.XdsServerPort = x.serverPort
	c.XdsAuthHeader = x.authHeader
	c.XdsAuthToken = x.authToken
	c.XdsJwtToken = x.jwtToken
	c.XdsJwtTokenLifetimeSeconds = x.jwtLifetimeSeconds
	c.XdsSslRootCerts = x.sslRootCerts
	c.XdsSni = x.sni
	c.EnableRTDS = x.rtdsEnabled
	c.RtdsResourceName = x.rtdsResourceName
	c.RtdsTimeoutSeconds = x.rtdsTimeoutSeconds
	c.EnableCDS = x.cdsEnabled
	c.CdsResourcesLocator = x.cdsResourcesLocator
	c.CdsTimeoutSeconds = x.cdsTimeoutSeconds
}
