package edgelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaggedList_FromRecords(t *testing.T) {
	rl := NewRaggedList([][]int64{{1, 2}, {3}, {}, {4, 5, 6}})

	assert.Equal(t, []int64{0, 2, 3, 3, 6}, rl.Offsets)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, rl.Data)
	assert.Equal(t, 4, rl.NumRecords())

	assert.Equal(t, []int64{1, 2}, rl.Record(0))
	assert.Equal(t, []int64{3}, rl.Record(1))
	assert.Empty(t, rl.Record(2))
	assert.Equal(t, []int64{4, 5, 6}, rl.Record(3))

	require.NoError(t, rl.Validate())
}

func TestRaggedList_UnnormalizedBase(t *testing.T) {
	// A list whose offsets start at a non-zero base still addresses its
	// records correctly.
	rl := &RaggedList{
		Offsets: []int64{10, 12, 12},
		Data:    []int64{7, 8},
	}
	require.NoError(t, rl.Validate())
	assert.Equal(t, []int64{7, 8}, rl.Record(0))
	assert.Empty(t, rl.Record(1))
}

func TestRaggedList_Empty(t *testing.T) {
	rl := EmptyRagged(3)

	assert.Equal(t, []int64{0, 0, 0, 0}, rl.Offsets)
	assert.Empty(t, rl.Data)
	assert.Equal(t, 3, rl.NumRecords())
	for i := 0; i < 3; i++ {
		assert.Empty(t, rl.Record(i))
	}
	require.NoError(t, rl.Validate())
}

func TestRaggedList_Validate(t *testing.T) {
	t.Run("decreasing offsets", func(t *testing.T) {
		rl := &RaggedList{Offsets: []int64{0, 2, 1}, Data: []int64{1, 2}}
		assert.Error(t, rl.Validate())
	})

	t.Run("data length mismatch", func(t *testing.T) {
		rl := &RaggedList{Offsets: []int64{0, 3}, Data: []int64{1}}
		assert.Error(t, rl.Validate())
	})

	t.Run("no offsets", func(t *testing.T) {
		rl := &RaggedList{}
		assert.Error(t, rl.Validate())
	})
}

func TestEntityList_HasFeatures(t *testing.T) {
	assert.False(t, (&EntityList{IDs: []int64{1}}).HasFeatures())

	empty := &EntityList{IDs: []int64{1}, Features: EmptyRagged(1)}
	assert.False(t, empty.HasFeatures())

	full := &EntityList{IDs: []int64{1}, Features: NewRaggedList([][]int64{{9}})}
	assert.True(t, full.HasFeatures())
}

func TestEdgeList_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		el := &EdgeList{
			LHS: EntityList{IDs: []int64{1, 2}},
			RHS: EntityList{IDs: []int64{3, 4}},
			Rel: []int64{0, 1},
		}
		require.NoError(t, el.Validate())
		assert.Equal(t, 2, el.Len())
	})

	t.Run("length mismatch", func(t *testing.T) {
		el := &EdgeList{
			LHS: EntityList{IDs: []int64{1}},
			RHS: EntityList{IDs: []int64{3, 4}},
			Rel: []int64{0, 1},
		}
		assert.Error(t, el.Validate())
	})

	t.Run("feature record count mismatch", func(t *testing.T) {
		el := &EdgeList{
			LHS: EntityList{IDs: []int64{1, 2}, Features: NewRaggedList([][]int64{{5}})},
			RHS: EntityList{IDs: []int64{3, 4}},
			Rel: []int64{0, 1},
		}
		assert.Error(t, el.Validate())
	})
}
