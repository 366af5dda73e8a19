// Package edgelist defines the in-memory transfer objects exchanged with
// the storage layer: dense edge batches plus optional ragged per-endpoint
// feature lists.
package edgelist

import (
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// RaggedList holds a variable-length sequence per record, encoded as
// parallel offsets and data arrays. Offsets has one entry per record plus
// one, is non-decreasing, and in normalized form starts at 0. Record i's
// values are Data[Offsets[i]-Offsets[0] : Offsets[i+1]-Offsets[0]].
type RaggedList struct {
	Offsets []int64
	Data    []int64
}

// NewRaggedList builds a ragged list from per-record value slices.
func NewRaggedList(records [][]int64) *RaggedList {
	offsets := make([]int64, len(records)+1)
	var total int64
	for i, rec := range records {
		offsets[i] = total
		total += int64(len(rec))
	}
	offsets[len(records)] = total

	data := make([]int64, 0, total)
	for _, rec := range records {
		data = append(data, rec...)
	}
	return &RaggedList{Offsets: offsets, Data: data}
}

// EmptyRagged returns the canonical zero-record-length representation for
// n records: n+1 zero offsets and no data. This is what reads of a never
// written dynamic column return.
func EmptyRagged(n int) *RaggedList {
	return &RaggedList{Offsets: make([]int64, n+1), Data: nil}
}

// NumRecords returns the number of records in the list.
func (r *RaggedList) NumRecords() int {
	if len(r.Offsets) == 0 {
		return 0
	}
	return len(r.Offsets) - 1
}

// Record returns the values of record i as a sub-slice of Data.
func (r *RaggedList) Record(i int) []int64 {
	base := r.Offsets[0]
	return r.Data[r.Offsets[i]-base : r.Offsets[i+1]-base]
}

// Validate checks the offsets/data invariants.
func (r *RaggedList) Validate() error {
	if len(r.Offsets) == 0 {
		return xerrors.New(xerrors.ErrorTypeData, "ragged list has no offsets")
	}
	for i := 1; i < len(r.Offsets); i++ {
		if r.Offsets[i] < r.Offsets[i-1] {
			return xerrors.Newf(xerrors.ErrorTypeData,
				"ragged offsets decrease at index %d (%d < %d)", i, r.Offsets[i], r.Offsets[i-1])
		}
	}
	want := r.Offsets[len(r.Offsets)-1] - r.Offsets[0]
	if int64(len(r.Data)) != want {
		return xerrors.Newf(xerrors.ErrorTypeData,
			"ragged data length %d does not match offsets span %d", len(r.Data), want)
	}
	return nil
}

// EntityList is one side of an edge batch: a dense ID per edge plus an
// optional ragged feature list parallel to the IDs. Features is nil when
// the endpoints carry no dynamic features.
type EntityList struct {
	IDs      []int64
	Features *RaggedList
}

// HasFeatures reports whether the endpoint carries any dynamic feature
// values. A present but empty ragged list counts as no features, matching
// the writer's rule that empty dynamic columns are never materialized.
func (e *EntityList) HasFeatures() bool {
	return e.Features != nil && len(e.Features.Data) != 0
}

// EdgeList is a batch of edges: two endpoint lists and a relation-type ID
// per edge, all of equal length.
type EdgeList struct {
	LHS EntityList
	RHS EntityList
	Rel []int64
}

// Len returns the number of edges in the batch.
func (e *EdgeList) Len() int {
	return len(e.Rel)
}

// Validate checks that the three parallel sequences agree in length and
// that any ragged features are well formed.
func (e *EdgeList) Validate() error {
	n := len(e.Rel)
	if len(e.LHS.IDs) != n || len(e.RHS.IDs) != n {
		return xerrors.Newf(xerrors.ErrorTypeData,
			"edge list length mismatch: lhs=%d rhs=%d rel=%d", len(e.LHS.IDs), len(e.RHS.IDs), n)
	}
	for _, side := range []*EntityList{&e.LHS, &e.RHS} {
		if side.Features == nil {
			continue
		}
		if err := side.Features.Validate(); err != nil {
			return err
		}
		if side.Features.NumRecords() != n {
			return xerrors.Newf(xerrors.ErrorTypeData,
				"ragged feature records %d do not match edge count %d", side.Features.NumRecords(), n)
		}
	}
	return nil
}
