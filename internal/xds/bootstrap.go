// Package xds bootstraps the engine's connection to a dynamic-configuration
// management server. The ADS wire protocol itself is handled by the engine
// core; this package owns the connection: addressing, trust material,
// per-RPC authentication, and node identity.
package xds

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"

	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/meshwire/meshwire-go/internal/config"
)

// Subscription describes one discovery feed.
type Subscription struct {
	// ResourceName is the RTDS layer name, or the CDS resources locator
	// (empty for non-xdstp addressing).
	ResourceName   string
	TimeoutSeconds int
}

// Bootstrap is everything needed to establish the management connection,
// flattened out of a frozen engine configuration.
type Bootstrap struct {
	ServerAddress string
	ServerPort    int

	AuthHeader         string
	AuthToken          string
	JwtToken           string
	JwtLifetimeSeconds int

	SslRootCerts string // PEM bundle; empty means system roots
	Sni          string

	NodeID       string
	NodeRegion   string
	NodeZone     string
	NodeSubZone  string
	NodeMetadata *structpb.Struct

	RTDS *Subscription // nil when runtime discovery is disabled
	CDS  *Subscription // nil when cluster discovery is disabled
}

// BootstrapFromConfig flattens the xDS fields of a frozen configuration.
// The caller is expected to have checked cfg.HasXds().
func BootstrapFromConfig(cfg *config.EngineConfiguration) Bootstrap {
	b := Bootstrap{
		ServerAddress:      cfg.XdsServerAddress,
		ServerPort:         cfg.XdsServerPort,
		AuthHeader:         cfg.XdsAuthHeader,
		AuthToken:          cfg.XdsAuthToken,
		JwtToken:           cfg.XdsJwtToken,
		JwtLifetimeSeconds: cfg.XdsJwtTokenLifetimeSeconds,
		SslRootCerts:       cfg.XdsSslRootCerts,
		Sni:                cfg.XdsSni,
		NodeID:             cfg.NodeID,
		NodeRegion:         cfg.NodeRegion,
		NodeZone:           cfg.NodeZone,
		NodeSubZone:        cfg.NodeSubZone,
	}
	if len(cfg.NodeMetadata) > 0 {
		fields := make(map[string]any, len(cfg.NodeMetadata))
		for k, v := range cfg.NodeMetadata {
			fields[k] = v
		}
		// String-valued maps always convert cleanly.
		b.NodeMetadata, _ = structpb.NewStruct(fields)
	}
	if cfg.EnableRTDS {
		b.RTDS = &Subscription{
			ResourceName:   cfg.RtdsResourceName,
			TimeoutSeconds: cfg.RtdsTimeoutSeconds,
		}
	}
	if cfg.EnableCDS {
		b.CDS = &Subscription{
			ResourceName:   cfg.CdsResourcesLocator,
			TimeoutSeconds: cfg.CdsTimeoutSeconds,
		}
	}
	return b
}

// Target returns the gRPC dial target for the management server.
func (b Bootstrap) Target() string {
	return net.JoinHostPort(b.ServerAddress, strconv.Itoa(b.ServerPort))
}

// TLSConfig builds the client TLS configuration from the bootstrap trust
// material. An empty SslRootCerts bundle falls back to system roots.
func (b Bootstrap) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{ServerName: b.Sni}
	if b.SslRootCerts != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(b.SslRootCerts)) {
			return nil, fmt.Errorf("ssl root certs: no valid certificates in bundle")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// PerRPCCredentials returns the call credentials configured for the
// management connection, or nil when the connection is unauthenticated.
// When both a header token and a JWT were configured, the one set last on
// the builder survived flattening; JWT takes effect only if the header pair
// is absent.
func (b Bootstrap) PerRPCCredentials() credentials.PerRPCCredentials {
	if b.AuthHeader != "" && b.AuthToken != "" {
		return headerCredentials{header: b.AuthHeader, token: b.AuthToken}
	}
	if b.JwtToken != "" {
		return jwtCredentials{token: b.JwtToken}
	}
	return nil
}

// InitialFetchTimeoutSeconds is the longest configured feed timeout, used to
// bound the initial connection readiness wait.
func (b Bootstrap) InitialFetchTimeoutSeconds() int {
	timeout := config.DefaultXdsTimeoutSeconds
	if b.RTDS != nil && b.RTDS.TimeoutSeconds > timeout {
		timeout = b.RTDS.TimeoutSeconds
	}
	if b.CDS != nil && b.CDS.TimeoutSeconds > timeout {
		timeout = b.CDS.TimeoutSeconds
	}
	return timeout
}
