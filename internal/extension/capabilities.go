package extension

import "net/http"

// StringAccessor supplies a string value from the embedding application on
// demand (e.g. a device identifier or session token the engine cannot know).
type StringAccessor interface {
	Get() string
}

// KeyValueStore is a platform-backed persistent string store. The engine
// uses registered stores for features that survive restarts, such as the
// DNS cache snapshot.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// StreamInterceptor decorates the engine's outbound transport. Interceptors
// registered on the platform filter chain wrap the transport in chain order:
// the first appended interceptor is outermost.
type StreamInterceptor interface {
	Intercept(next http.RoundTripper) http.RoundTripper
}

// InterceptorFactory creates stream interceptors. One factory is registered
// per platform filter; the engine invokes it when assembling its transport.
type InterceptorFactory interface {
	NewInterceptor() StreamInterceptor
}

// InterceptorFunc adapts a plain function to the StreamInterceptor interface.
type InterceptorFunc func(next http.RoundTripper) http.RoundTripper

// Intercept implements StreamInterceptor.
func (f InterceptorFunc) Intercept(next http.RoundTripper) http.RoundTripper {
	return f(next)
}

// FactoryFunc adapts a plain function to the InterceptorFactory interface.
type FactoryFunc func() StreamInterceptor

// NewInterceptor implements InterceptorFactory.
func (f FactoryFunc) NewInterceptor() StreamInterceptor {
	return f()
}
