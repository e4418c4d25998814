package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devguard_extraction_seconds",
		Help:    "Time spent extracting symbols from a source document.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_graph_nodes_total",
		Help: "Number of nodes in the current graph snapshot.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_graph_edges_total",
		Help: "Number of edges in the current graph snapshot.",
	})

	SnapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_snapshot_version",
		Help: "Version number of the currently published graph snapshot.",
	})

	SnapshotsRetained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_snapshots_retained",
		Help: "Snapshots still retained because readers hold references.",
	})

	UnparsedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_unparsed_files_total",
		Help: "Documents in the current batch that failed extraction.",
	})

	UnresolvedReferences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devguard_unresolved_references_total",
		Help: "References dropped during merge because no target matched.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devguard_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	IngestBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devguard_ingest_batches_total",
		Help: "Ingestion batches processed, by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devguard_watcher_events_total",
		Help: "File system events received by the watcher.",
	})
)
