package engine

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/meshwire/meshwire-go/internal/config"
)

// EventTracker receives engine lifecycle and diagnostic events.
type EventTracker interface {
	Track(event map[string]string)
}

// Engine is the transport runtime constructed from a frozen configuration.
// Construction consumes the configuration once; the engine never reads from
// the builder that produced it.
type Engine interface {
	// Start brings up the engine's background loops (DNS refresh, stats
	// flush, xDS connection). It blocks until ctx is cancelled or a loop
	// fails.
	Start(ctx context.Context) error
	// Terminate stops background loops and releases connections.
	Terminate() error
	// HTTPClient returns a client backed by the engine's assembled transport.
	HTTPClient() *http.Client
}

// Options carries everything a factory needs to construct an engine. For the
// Custom base-configuration variant both the frozen configuration and the
// raw configuration text are always passed together; the raw text takes
// precedence for any setting it explicitly overrides.
type Options struct {
	Config       *config.EngineConfiguration
	Custom       bool
	RawConfig    string
	Logger       *zap.Logger
	EventTracker EventTracker
}

// Factory constructs an Engine from a frozen configuration. The embedding
// application may substitute its own factory; any error it returns
// propagates unchanged to the Build caller.
type Factory func(opts Options) (Engine, error)

// DefaultFactory constructs the standard runtime implementation.
func DefaultFactory(opts Options) (Engine, error) {
	return newStandardEngine(opts)
}
