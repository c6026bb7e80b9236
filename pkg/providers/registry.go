package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the enabled providers keyed by identifier, in registration order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]NewsProvider
	order []string
}

func NewRegistry(ps ...NewsProvider) *Registry {
	r := &Registry{byID: make(map[string]NewsProvider)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds p; a provider with the same id replaces the previous one in place.
func (r *Registry) Register(p NewsProvider) {
	if p == nil {
		return
	}
	key := normalizeID(p.ID())
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[key]; !exists {
		r.order = append(r.order, key)
	}
	r.byID[key] = p
}

func (r *Registry) Get(id string) (NewsProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[normalizeID(id)]
	return p, ok
}

// All returns providers in registration order.
func (r *Registry) All() []NewsProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NewsProvider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns every provider for an empty id, or the single provider named.
func (r *Registry) Select(id string) ([]NewsProvider, error) {
	if normalizeID(id) == "" {
		return r.All(), nil
	}
	p, ok := r.Get(id)
	if !ok {
		ids := r.IDs()
		sort.Strings(ids)
		return nil, fmt.Errorf("unknown provider %q (available: %s)", id, strings.Join(ids, ", "))
	}
	return []NewsProvider{p}, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Build constructs the enabled built-in providers from settings.
// Entries with unknown ids are rejected.
func Build(settings []Settings, client JSONGetter, log Logger) (*Registry, error) {
	r := NewRegistry()
	for _, s := range settings {
		if !s.IsEnabled() {
			continue
		}
		cfg := s.Config()
		switch normalizeID(s.ID) {
		case NewsAPIID:
			r.Register(NewNewsAPI(cfg, client, log))
		case GuardianID:
			r.Register(NewGuardian(cfg, client, log))
		case NYTimesID:
			r.Register(NewNYTimes(cfg, client, log))
		default:
			return nil, fmt.Errorf("no provider implementation for id %q", s.ID)
		}
	}
	return r, nil
}
