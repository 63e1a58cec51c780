package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AssetsAccepted количество изображений, принятых в очередь загрузки
	AssetsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_assets_accepted_total",
			Help: "Assets accepted into a pending set",
		},
		[]string{"mode"},
	)

	AssetBatchesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_batches_rejected_total",
			Help: "Asset batches rejected by the pipeline",
		},
		[]string{"reason"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_transfers_total",
			Help: "Finished transfers by outcome",
		},
		[]string{"outcome"},
	)

	TransferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestion_transfer_duration_seconds",
			Help:    "Duration of commit transfers",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	CatalogPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_photos",
			Help: "Number of photos in the catalog",
		},
	)
)
