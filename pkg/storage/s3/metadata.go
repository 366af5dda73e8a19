package s3

import (
	"context"
	"fmt"
)

// EntityStorage is the S3-backed entity metadata store.
type EntityStorage struct {
	bucket *bucket
}

func (s *EntityStorage) countKey(entityName string, partition int) string {
	return s.bucket.key(fmt.Sprintf("entity_count_%s_%d.txt", entityName, partition))
}

func (s *EntityStorage) namesKey(entityName string, partition int) string {
	return s.bucket.key(fmt.Sprintf("entity_names_%s_%d.json", entityName, partition))
}

// Prepare verifies bucket access. It is idempotent.
func (s *EntityStorage) Prepare(ctx context.Context) error {
	return s.bucket.prepare(ctx)
}

// HasCount reports whether the count for an entity partition exists.
func (s *EntityStorage) HasCount(ctx context.Context, entityName string, partition int) (bool, error) {
	return s.bucket.has(ctx, s.countKey(entityName, partition))
}

// SaveCount persists the item count of an entity partition.
func (s *EntityStorage) SaveCount(ctx context.Context, entityName string, partition int, count int) error {
	return s.bucket.saveCount(ctx, s.countKey(entityName, partition), count)
}

// LoadCount reads the item count of an entity partition.
func (s *EntityStorage) LoadCount(ctx context.Context, entityName string, partition int) (int, error) {
	return s.bucket.loadCount(ctx, s.countKey(entityName, partition))
}

// HasNames reports whether the name list for an entity partition exists.
func (s *EntityStorage) HasNames(ctx context.Context, entityName string, partition int) (bool, error) {
	return s.bucket.has(ctx, s.namesKey(entityName, partition))
}

// SaveNames persists the name list of an entity partition.
func (s *EntityStorage) SaveNames(ctx context.Context, entityName string, partition int, names []string) error {
	return s.bucket.saveNames(ctx, s.namesKey(entityName, partition), names)
}

// LoadNames reads the name list of an entity partition.
func (s *EntityStorage) LoadNames(ctx context.Context, entityName string, partition int) ([]string, error) {
	return s.bucket.loadNames(ctx, s.namesKey(entityName, partition))
}

// RelationTypeStorage is the S3-backed relation-type metadata store.
type RelationTypeStorage struct {
	bucket *bucket
}

func (s *RelationTypeStorage) countKey() string {
	return s.bucket.key("dynamic_rel_count.txt")
}

func (s *RelationTypeStorage) namesKey() string {
	return s.bucket.key("dynamic_rel_names.json")
}

// Prepare verifies bucket access. It is idempotent.
func (s *RelationTypeStorage) Prepare(ctx context.Context) error {
	return s.bucket.prepare(ctx)
}

// HasCount reports whether the relation-type count exists.
func (s *RelationTypeStorage) HasCount(ctx context.Context) (bool, error) {
	return s.bucket.has(ctx, s.countKey())
}

// SaveCount persists the relation-type count.
func (s *RelationTypeStorage) SaveCount(ctx context.Context, count int) error {
	return s.bucket.saveCount(ctx, s.countKey(), count)
}

// LoadCount reads the relation-type count.
func (s *RelationTypeStorage) LoadCount(ctx context.Context) (int, error) {
	return s.bucket.loadCount(ctx, s.countKey())
}

// HasNames reports whether the relation-type name list exists.
func (s *RelationTypeStorage) HasNames(ctx context.Context) (bool, error) {
	return s.bucket.has(ctx, s.namesKey())
}

// SaveNames persists the relation-type name list.
func (s *RelationTypeStorage) SaveNames(ctx context.Context, names []string) error {
	return s.bucket.saveNames(ctx, s.namesKey(), names)
}

// LoadNames reads the relation-type name list.
func (s *RelationTypeStorage) LoadNames(ctx context.Context) ([]string, error) {
	return s.bucket.loadNames(ctx, s.namesKey())
}
