package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/net/http2"

	"github.com/meshwire/meshwire-go/internal/config"
	"github.com/meshwire/meshwire-go/internal/metrics"
)

// platformSocketControl is the hook point used when socket tagging or
// interface binding is enabled. Platform builds install their own control
// function; the portable default is a no-op.
var platformSocketControl = func(network, address string, c syscall.RawConn) error {
	return nil
}

// transport is the engine's assembled outbound transport: a TCP-based
// http.Transport for HTTP/1.1 and HTTP/2, and an optional HTTP/3 transport
// selected per request by the configured QUIC hints.
type transport struct {
	cfg *config.EngineConfiguration
	tcp *http.Transport
	h3  *http3.Transport // nil unless HTTP/3 is enabled
}

// newTransport assembles the transport stack from a frozen configuration.
// resolver may be nil; the OS resolver is used directly in that case.
func newTransport(cfg *config.EngineConfiguration, resolver *Resolver) (*transport, error) {
	dialer := &net.Dialer{
		Timeout:   time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if cfg.EnableSocketTagging || cfg.EnableInterfaceBinding {
		dialer.Control = platformSocketControl
	}

	dialCtx := dialer.DialContext
	if resolver != nil {
		dialCtx = resolverDial(dialer, resolver)
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TrustChainVerification == config.AcceptUntrusted,
	}

	tcp := &http.Transport{
		DialContext:           dialCtx,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       cfg.MaxConnectionsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.StreamIdleTimeoutSeconds) * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		TLSClientConfig:       tlsCfg,
		ForceAttemptHTTP2:     true,
	}

	h2, err := http2.ConfigureTransports(tcp)
	if err != nil {
		return nil, fmt.Errorf("configure h2 transport: %w", err)
	}
	h2.ReadIdleTimeout = time.Duration(cfg.H2ConnectionKeepaliveIdleIntervalMilliseconds) * time.Millisecond
	h2.PingTimeout = time.Duration(cfg.H2ConnectionKeepaliveTimeoutSeconds) * time.Second

	t := &transport{cfg: cfg, tcp: tcp}

	if cfg.EnableHTTP3 {
		t.h3 = &http3.Transport{
			TLSClientConfig: tlsCfg.Clone(),
			QUICConfig: &quic.Config{
				HandshakeIdleTimeout: time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
				MaxIdleTimeout:       time.Duration(cfg.StreamIdleTimeoutSeconds) * time.Second,
				KeepAlivePeriod:      time.Duration(cfg.H2ConnectionKeepaliveIdleIntervalMilliseconds) * time.Millisecond,
			},
		}
	}

	return t, nil
}

// RoundTrip routes the request over HTTP/3 when the target is covered by a
// QUIC hint or canonical suffix, and over TCP otherwise. Every stream is
// recorded with its protocol, result, and duration.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	protocol := "tcp"
	var resp *http.Response
	var err error
	if t.h3 != nil && t.preferQuic(req) {
		protocol = "h3"
		resp, err = t.h3.RoundTrip(req)
	} else {
		resp, err = t.tcp.RoundTrip(req)
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordStream(protocol, result, time.Since(start))
	return resp, err
}

// preferQuic reports whether the configured hints mark the request target as
// an HTTP/3 endpoint.
func (t *transport) preferQuic(req *http.Request) bool {
	host := req.URL.Hostname()
	port := req.URL.Port()
	if port == "" {
		port = "443"
	}
	if _, ok := t.cfg.QuicHints[net.JoinHostPort(host, port)]; ok {
		return true
	}
	for _, suffix := range t.cfg.QuicCanonicalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// CloseIdleConnections releases idle connections on all transports.
func (t *transport) CloseIdleConnections() {
	t.tcp.CloseIdleConnections()
	if t.h3 != nil {
		t.h3.Close()
	}
}

// resolverDial returns a dial function that resolves hosts through the
// engine's caching resolver before connecting.
func resolverDial(dialer *net.Dialer, resolver *Resolver) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) != nil {
			return dialer.DialContext(ctx, network, address)
		}
		addrs, err := resolver.Lookup(ctx, host)
		if err != nil {
			return nil, err
		}
		var firstErr error
		for _, addr := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(addr, port))
			if err == nil {
				return conn, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("no addresses resolved for %s", host)
		}
		return nil, firstErr
	}
}
