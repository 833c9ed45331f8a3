package auth

import (
	"sort"

	"github.com/sakif/ngo-hub/internal/apperror"
)

// Registry holds the configured federated providers by name.
// It performs no auth logic itself.
type Registry struct {
	providers map[string]FederatedProvider
}

// NewRegistry registers the given providers. Nil entries are skipped so
// callers can pass optional providers unconditionally.
func NewRegistry(list ...FederatedProvider) *Registry {
	m := make(map[string]FederatedProvider, len(list))
	for _, p := range list {
		if p == nil {
			continue
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (FederatedProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperror.NotFound("sign-in provider", name)
	}
	return p, nil
}

// Names lists the registered providers in sorted order, for rendering
// sign-in buttons.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
