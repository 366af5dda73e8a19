// Package fs implements the filesystem storage backend. It is registered
// for the empty scheme and for "file", so bare paths and file:// URLs
// resolve here.
//
// Layout inside the storage directory:
//
//	entity_count_<name>_<partition>.txt
//	entity_names_<name>_<partition>.json
//	dynamic_rel_count.txt
//	dynamic_rel_names.json
//	edges_<lhs>_<rhs>.shard
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

const fileScheme = "file://"

// resolvePath strips an optional file:// prefix and makes the path
// absolute so log lines and error messages are unambiguous.
func resolvePath(url string) string {
	path := strings.TrimPrefix(url, fileScheme)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func init() {
	for _, scheme := range []string{"", "file"} {
		must(storage.RegisterEntityStorage(scheme, func(url string) (storage.EntityStorage, error) {
			return NewEntityStorage(url), nil
		}))
		must(storage.RegisterRelationTypeStorage(scheme, func(url string) (storage.RelationTypeStorage, error) {
			return NewRelationTypeStorage(url), nil
		}))
		must(storage.RegisterEdgeStorage(scheme, func(url string) (storage.EdgeStorage, error) {
			return NewEdgeStorage(url), nil
		}))
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// EntityStorage is the file-backed entity metadata store.
type EntityStorage struct {
	path string
}

// NewEntityStorage creates entity storage rooted at the given path or
// file:// URL.
func NewEntityStorage(url string) *EntityStorage {
	return &EntityStorage{path: resolvePath(url)}
}

func (s *EntityStorage) countFile(entityName string, partition int) string {
	return filepath.Join(s.path, fmt.Sprintf("entity_count_%s_%d.txt", entityName, partition))
}

func (s *EntityStorage) namesFile(entityName string, partition int) string {
	return filepath.Join(s.path, fmt.Sprintf("entity_names_%s_%d.json", entityName, partition))
}

// Prepare creates the storage directory. It is idempotent.
func (s *EntityStorage) Prepare(ctx context.Context) error {
	return mkdirAll(s.path)
}

// HasCount reports whether the count for an entity partition exists.
func (s *EntityStorage) HasCount(ctx context.Context, entityName string, partition int) (bool, error) {
	return fileExists(s.countFile(entityName, partition))
}

// SaveCount persists the item count of an entity partition.
func (s *EntityStorage) SaveCount(ctx context.Context, entityName string, partition int, count int) error {
	return saveCount(s.countFile(entityName, partition), count)
}

// LoadCount reads the item count of an entity partition.
func (s *EntityStorage) LoadCount(ctx context.Context, entityName string, partition int) (int, error) {
	return loadCount(s.countFile(entityName, partition))
}

// HasNames reports whether the name list for an entity partition exists.
func (s *EntityStorage) HasNames(ctx context.Context, entityName string, partition int) (bool, error) {
	return fileExists(s.namesFile(entityName, partition))
}

// SaveNames persists the name list of an entity partition.
func (s *EntityStorage) SaveNames(ctx context.Context, entityName string, partition int, names []string) error {
	return saveNames(s.namesFile(entityName, partition), names)
}

// LoadNames reads the name list of an entity partition.
func (s *EntityStorage) LoadNames(ctx context.Context, entityName string, partition int) ([]string, error) {
	return loadNames(s.namesFile(entityName, partition))
}

// RelationTypeStorage is the file-backed relation-type metadata store.
type RelationTypeStorage struct {
	path string
}

// NewRelationTypeStorage creates relation-type storage rooted at the given
// path or file:// URL.
func NewRelationTypeStorage(url string) *RelationTypeStorage {
	return &RelationTypeStorage{path: resolvePath(url)}
}

func (s *RelationTypeStorage) countFile() string {
	return filepath.Join(s.path, "dynamic_rel_count.txt")
}

func (s *RelationTypeStorage) namesFile() string {
	return filepath.Join(s.path, "dynamic_rel_names.json")
}

// Prepare creates the storage directory. It is idempotent.
func (s *RelationTypeStorage) Prepare(ctx context.Context) error {
	return mkdirAll(s.path)
}

// HasCount reports whether the relation-type count exists.
func (s *RelationTypeStorage) HasCount(ctx context.Context) (bool, error) {
	return fileExists(s.countFile())
}

// SaveCount persists the relation-type count.
func (s *RelationTypeStorage) SaveCount(ctx context.Context, count int) error {
	return saveCount(s.countFile(), count)
}

// LoadCount reads the relation-type count.
func (s *RelationTypeStorage) LoadCount(ctx context.Context) (int, error) {
	return loadCount(s.countFile())
}

// HasNames reports whether the relation-type name list exists.
func (s *RelationTypeStorage) HasNames(ctx context.Context) (bool, error) {
	return fileExists(s.namesFile())
}

// SaveNames persists the relation-type name list.
func (s *RelationTypeStorage) SaveNames(ctx context.Context, names []string) error {
	return saveNames(s.namesFile(), names)
}

// LoadNames reads the relation-type name list.
func (s *RelationTypeStorage) LoadNames(ctx context.Context) ([]string, error) {
	return loadNames(s.namesFile())
}

func mkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to create storage directory %s", path)
	}
	return nil
}
