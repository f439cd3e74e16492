// internal/recon/strategy/registry.go
package strategy

import (
	reconerrors "vocab-reconciler/internal/common/errors"
	"vocab-reconciler/internal/models"
)

// Registry holds the registered entity strategies. Register is called during
// startup only; Resolve is safe for concurrent use once registration is done.
type Registry struct {
	strategies map[string]*EntityStrategy
	order      []string
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]*EntityStrategy)}
}

// Register adds a strategy, failing fast on key collisions and invalid
// configuration.
func (r *Registry) Register(s *EntityStrategy) error {
	if err := s.validate(); err != nil {
		return reconerrors.NewInvalidStrategyError(s.Key, err.Error())
	}
	if _, exists := r.strategies[s.Key]; exists {
		return reconerrors.NewDuplicateStrategyError(s.Key)
	}
	r.strategies[s.Key] = s
	r.order = append(r.order, s.Key)
	return nil
}

// Resolve returns the strategy for an entity-type key.
func (r *Registry) Resolve(key string) (*EntityStrategy, error) {
	s, ok := r.strategies[key]
	if !ok {
		return nil, reconerrors.NewUnknownEntityError(key)
	}
	return s, nil
}

// Default returns the fallback strategy for sub-queries carrying no type
// filter: the named default when configured, else the first registered.
func (r *Registry) Default(preferred string) (*EntityStrategy, error) {
	if preferred != "" {
		return r.Resolve(preferred)
	}
	if len(r.order) == 0 {
		return nil, reconerrors.NewUnknownEntityError("")
	}
	return r.strategies[r.order[0]], nil
}

// TypeRefs lists the registered entity types in registration order, for the
// service manifest.
func (r *Registry) TypeRefs() []models.TypeRef {
	refs := make([]models.TypeRef, 0, len(r.order))
	for _, key := range r.order {
		refs = append(refs, r.strategies[key].TypeRef())
	}
	return refs
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.order)
}
