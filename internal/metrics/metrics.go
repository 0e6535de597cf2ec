package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsMigrated counts source records successfully converted, by kind.
	RecordsMigrated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_records_total",
		Help: "Source records converted to content versions",
	}, []string{"kind"})

	// ChunksProcessed counts chunk outcomes, by kind and status.
	ChunksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_chunks_total",
		Help: "Chunks processed by the batch runner",
	}, []string{"kind", "status"})

	// GrantsCreated counts sharing grants written to the store.
	GrantsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "migration_sharing_grants_total",
		Help: "Sharing grants created for converted records",
	})

	// SourcesDeleted counts source records purged after conversion, by kind.
	SourcesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_sources_deleted_total",
		Help: "Source records deleted after successful conversion",
	}, []string{"kind"})

	// ChunkDuration observes wall-clock time per chunk, by kind.
	ChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "migration_chunk_duration_seconds",
		Help:    "Time spent converting one chunk",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)
