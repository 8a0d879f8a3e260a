package extension

// Registry maps names to typed capabilities. Re-registering a name replaces
// the prior capability silently (last write wins). There is no removal
// operation; consumers take a consistent copy via Snapshot.
type Registry[T any] struct {
	entries map[string]T
}

// Put registers a capability under name, replacing any prior entry.
func (r *Registry[T]) Put(name string, value T) {
	if r.entries == nil {
		r.entries = make(map[string]T)
	}
	r.entries[name] = value
}

// Get returns the capability registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	v, ok := r.entries[name]
	return v, ok
}

// Len returns the number of registered capabilities.
func (r *Registry[T]) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of the registry's current contents. Mutating the
// registry afterwards does not affect the returned map.
func (r *Registry[T]) Snapshot() map[string]T {
	if len(r.entries) == 0 {
		return nil
	}
	out := make(map[string]T, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
