package xds

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"

	"github.com/meshwire/meshwire-go/internal/metrics"
)

// Client maintains the gRPC connection to the management server and
// re-establishes it with exponential backoff when it drops. Resource
// subscriptions ride on this connection; their initial fetch is bounded by
// the configured feed timeouts.
type Client struct {
	bootstrap Bootstrap
	logger    *zap.Logger
	connected atomic.Bool
}

// NewClient creates a management-connection client from a bootstrap.
func NewClient(b Bootstrap, logger *zap.Logger) *Client {
	return &Client{bootstrap: b, logger: logger}
}

// Connected reports whether the management connection is currently ready.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run maintains the management connection until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.bootstrap.JwtToken != "" {
		lifetime := EffectiveJwtLifetime(c.bootstrap.JwtToken, c.bootstrap.JwtLifetimeSeconds)
		c.logger.Info("xDS JWT authentication configured",
			zap.Duration("effective_lifetime", lifetime),
		)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0 // reconnect for the engine's lifetime

	for {
		err := c.connectAndHold(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		c.logger.Warn("Disconnected from management server, reconnecting",
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) connectAndHold(ctx context.Context) error {
	tlsCfg, err := c.bootstrap.TLSConfig()
	if err != nil {
		return err
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if creds := c.bootstrap.PerRPCCredentials(); creds != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(creds))
	}

	conn, err := grpc.NewClient(c.bootstrap.Target(), dialOpts...)
	if err != nil {
		return fmt.Errorf("dial management server: %w", err)
	}
	defer conn.Close()

	conn.Connect()
	timeout := time.Duration(c.bootstrap.InitialFetchTimeoutSeconds()) * time.Second
	if err := waitReady(ctx, conn, timeout); err != nil {
		return err
	}

	c.setConnected(true)
	c.logger.Info("Connected to management server",
		zap.String("target", c.bootstrap.Target()),
		zap.String("node_id", c.bootstrap.NodeID),
	)
	c.logSubscriptions()

	// Hold the connection until it degrades or the engine shuts down.
	for {
		s := conn.GetState()
		if s == connectivity.TransientFailure || s == connectivity.Shutdown {
			return fmt.Errorf("management connection state %v", s)
		}
		if !conn.WaitForStateChange(ctx, s) {
			return ctx.Err()
		}
	}
}

func (c *Client) logSubscriptions() {
	if rtds := c.bootstrap.RTDS; rtds != nil {
		c.logger.Info("Runtime discovery subscribed",
			zap.String("resource", rtds.ResourceName),
			zap.Int("timeout_seconds", rtds.TimeoutSeconds),
		)
	}
	if cds := c.bootstrap.CDS; cds != nil {
		c.logger.Info("Cluster discovery subscribed",
			zap.String("resources_locator", cds.ResourceName),
			zap.Int("timeout_seconds", cds.TimeoutSeconds),
		)
	}
}

func (c *Client) setConnected(v bool) {
	c.connected.Store(v)
	metrics.SetXdsConnected(v)
}

// waitReady blocks until conn reaches Ready or timeout elapses.
func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		s := conn.GetState()
		if s == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(tctx, s) {
			return fmt.Errorf("management connection not ready within %v", timeout)
		}
	}
}
