// Package testutil provides testing utilities for graphpart
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/graphpart/graphpart/pkg/edgelist"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout. It is
// canceled automatically when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Edges builds a dense edge list without dynamic features from three
// parallel value slices.
func Edges(lhs, rhs, rel []int64) *edgelist.EdgeList {
	return &edgelist.EdgeList{
		LHS: edgelist.EntityList{IDs: lhs},
		RHS: edgelist.EntityList{IDs: rhs},
		Rel: rel,
	}
}

// Sequence returns the int64 values [0, n).
func Sequence(n int) []int64 {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	return values
}
