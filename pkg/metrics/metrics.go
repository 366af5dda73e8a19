// Package metrics provides Prometheus instrumentation for the graphpart
// storage layer. All collectors are registered automatically via promauto;
// exposing them is left to the embedding application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BufferFlushes tracks the number of column buffer flushes.
	// Labels: column (column name), kind (full/final)
	BufferFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphpart_buffer_flushes_total",
			Help: "Total number of column buffer flushes",
		},
		[]string{"column", "kind"},
	)

	// ValuesWritten tracks the number of int64 values written per column.
	ValuesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphpart_values_written_total",
			Help: "Total number of values written to shard columns",
		},
		[]string{"column"},
	)

	// ShardsPublished tracks shards finalized through the atomic rename.
	// Labels: backend (storage scheme)
	ShardsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphpart_shards_published_total",
			Help: "Total number of shards published",
		},
		[]string{"backend"},
	)

	// ChunksRead tracks chunk reads served from finalized shards.
	ChunksRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphpart_chunks_read_total",
			Help: "Total number of edge chunks read",
		},
		[]string{"backend"},
	)

	// EdgesRead tracks edges returned by chunk reads.
	EdgesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphpart_edges_read_total",
			Help: "Total number of edges read from shards",
		},
		[]string{"backend"},
	)

	// ReadLatency tracks the distribution of chunk read latencies in seconds.
	ReadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphpart_chunk_read_latency_seconds",
			Help:    "Chunk read latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 7),
		},
		[]string{"backend"},
	)
)
