// Package engine is the public embedding surface of the Meshwire mobile
// HTTP client: a mutable configuration builder that collects networking,
// caching, TLS, extensibility, and dynamic-configuration parameters and
// freezes them into a single immutable configuration consumed once by the
// transport runtime.
package engine

import (
	"github.com/meshwire/meshwire-go/internal/config"
	ie "github.com/meshwire/meshwire-go/internal/engine"
	"github.com/meshwire/meshwire-go/internal/extension"
)

// Configuration is the frozen, immutable engine configuration produced by
// Builder.Freeze. Once produced it shares no mutable state with the builder.
type Configuration = config.EngineConfiguration

// Engine is the transport runtime constructed from a frozen Configuration.
type Engine = ie.Engine

// Factory constructs an Engine from a frozen Configuration. Applications
// override it via Builder.AddEngineType; tests substitute fakes through the
// same hook.
type Factory = ie.Factory

// EngineOptions is the bundle handed to a Factory.
type EngineOptions = ie.Options

// EventTracker receives engine lifecycle and diagnostic events.
type EventTracker = ie.EventTracker

// TrustChainVerification selects upstream certificate chain handling.
type TrustChainVerification = config.TrustChainVerification

const (
	// VerifyTrustChain validates certificate chains (default).
	VerifyTrustChain = config.VerifyTrustChain
	// AcceptUntrusted disables chain validation.
	AcceptUntrusted = config.AcceptUntrusted
)

// StringAccessor supplies a string value from the application on demand.
type StringAccessor = extension.StringAccessor

// KeyValueStore is a platform-backed persistent string store.
type KeyValueStore = extension.KeyValueStore

// StreamInterceptor decorates the engine's outbound transport.
type StreamInterceptor = extension.StreamInterceptor

// InterceptorFactory creates stream interceptors for a platform filter.
type InterceptorFactory = extension.InterceptorFactory

// InterceptorFunc adapts a function to StreamInterceptor.
type InterceptorFunc = extension.InterceptorFunc

// FactoryFunc adapts a function to InterceptorFactory.
type FactoryFunc = extension.FactoryFunc

// PlatformStoreName is the reserved key-value store consulted by the engine
// for persisted state such as DNS cache snapshots.
const PlatformStoreName = config.PlatformStoreName
