package storage

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/logger"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// EntityStorageFactory constructs an entity storage backend from a
// storage URL.
type EntityStorageFactory func(url string) (EntityStorage, error)

// RelationTypeStorageFactory constructs a relation-type storage backend
// from a storage URL.
type RelationTypeStorageFactory func(url string) (RelationTypeStorage, error)

// EdgeStorageFactory constructs an edge storage backend from a storage
// URL.
type EdgeStorageFactory func(url string) (EdgeStorage, error)

// Registry maps URL schemes to backend factories for the three capability
// sets. The empty scheme and "file" are conventionally registered to the
// filesystem backend; other schemes belong to alternative backends.
type Registry struct {
	mu            sync.RWMutex
	entities      map[string]EntityStorageFactory
	relationTypes map[string]RelationTypeStorageFactory
	edges         map[string]EdgeStorageFactory
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:      make(map[string]EntityStorageFactory),
		relationTypes: make(map[string]RelationTypeStorageFactory),
		edges:         make(map[string]EdgeStorageFactory),
	}
}

// log resolves the registry's logger at call time. Registration happens in
// package init blocks, before the application configures logging, so the
// logger must not be captured at construction.
func (r *Registry) log() *zap.Logger {
	return logger.With(zap.String("component", "storage_registry"))
}

// RegisterEntityStorage registers an entity storage factory for a scheme.
func (r *Registry) RegisterEntityStorage(scheme string, factory EntityStorageFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[scheme]; exists {
		return xerrors.Newf(xerrors.ErrorTypeConfig, "entity storage scheme %q already registered", scheme)
	}
	r.entities[scheme] = factory
	r.log().Debug("entity storage backend registered", zap.String("scheme", scheme))
	return nil
}

// RegisterRelationTypeStorage registers a relation-type storage factory
// for a scheme.
func (r *Registry) RegisterRelationTypeStorage(scheme string, factory RelationTypeStorageFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.relationTypes[scheme]; exists {
		return xerrors.Newf(xerrors.ErrorTypeConfig, "relation type storage scheme %q already registered", scheme)
	}
	r.relationTypes[scheme] = factory
	r.log().Debug("relation type storage backend registered", zap.String("scheme", scheme))
	return nil
}

// RegisterEdgeStorage registers an edge storage factory for a scheme.
func (r *Registry) RegisterEdgeStorage(scheme string, factory EdgeStorageFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.edges[scheme]; exists {
		return xerrors.Newf(xerrors.ErrorTypeConfig, "edge storage scheme %q already registered", scheme)
	}
	r.edges[scheme] = factory
	r.log().Debug("edge storage backend registered", zap.String("scheme", scheme))
	return nil
}

// NewEntityStorage resolves a storage URL to an entity storage backend.
func (r *Registry) NewEntityStorage(url string) (EntityStorage, error) {
	scheme := Scheme(url)
	r.mu.RLock()
	factory, exists := r.entities[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, xerrors.Newf(xerrors.ErrorTypeConfig,
			"no entity storage backend for scheme %q (url %s)", scheme, url)
	}
	return factory(url)
}

// NewRelationTypeStorage resolves a storage URL to a relation-type
// storage backend.
func (r *Registry) NewRelationTypeStorage(url string) (RelationTypeStorage, error) {
	scheme := Scheme(url)
	r.mu.RLock()
	factory, exists := r.relationTypes[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, xerrors.Newf(xerrors.ErrorTypeConfig,
			"no relation type storage backend for scheme %q (url %s)", scheme, url)
	}
	return factory(url)
}

// NewEdgeStorage resolves a storage URL to an edge storage backend.
func (r *Registry) NewEdgeStorage(url string) (EdgeStorage, error) {
	scheme := Scheme(url)
	r.mu.RLock()
	factory, exists := r.edges[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, xerrors.Newf(xerrors.ErrorTypeConfig,
			"no edge storage backend for scheme %q (url %s)", scheme, url)
	}
	return factory(url)
}

// Schemes returns the schemes with at least one registered capability,
// mainly for diagnostics.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for scheme := range r.entities {
		seen[scheme] = struct{}{}
	}
	for scheme := range r.relationTypes {
		seen[scheme] = struct{}{}
	}
	for scheme := range r.edges {
		seen[scheme] = struct{}{}
	}
	schemes := make([]string, 0, len(seen))
	for scheme := range seen {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Scheme extracts the scheme of a storage URL. A URL without "://" has
// the empty scheme, which resolves to the filesystem backend.
func Scheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i]
	}
	return ""
}

// Global registry functions

// RegisterEntityStorage registers an entity storage factory in the global
// registry.
func RegisterEntityStorage(scheme string, factory EntityStorageFactory) error {
	return globalRegistry.RegisterEntityStorage(scheme, factory)
}

// RegisterRelationTypeStorage registers a relation-type storage factory
// in the global registry.
func RegisterRelationTypeStorage(scheme string, factory RelationTypeStorageFactory) error {
	return globalRegistry.RegisterRelationTypeStorage(scheme, factory)
}

// RegisterEdgeStorage registers an edge storage factory in the global
// registry.
func RegisterEdgeStorage(scheme string, factory EdgeStorageFactory) error {
	return globalRegistry.RegisterEdgeStorage(scheme, factory)
}

// NewEntityStorage resolves a URL against the global registry.
func NewEntityStorage(url string) (EntityStorage, error) {
	return globalRegistry.NewEntityStorage(url)
}

// NewRelationTypeStorage resolves a URL against the global registry.
func NewRelationTypeStorage(url string) (RelationTypeStorage, error) {
	return globalRegistry.NewRelationTypeStorage(url)
}

// NewEdgeStorage resolves a URL against the global registry.
func NewEdgeStorage(url string) (EdgeStorage, error) {
	return globalRegistry.NewEdgeStorage(url)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
