package metrics

import (
	"fmt"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/purge"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 一次运行的 Prometheus 指标
// 运行结束后写成 node-exporter textfile
type Metrics struct {
	registry *prometheus.Registry

	// 盘点
	BlobObjects       prometheus.Gauge     // sweep_inventory_objects
	CatalogRows       *prometheus.GaugeVec // sweep_inventory_catalog_rows{query}
	MalformedPreviews prometheus.Gauge     // sweep_inventory_malformed_previews

	// 分类
	Orphans *prometheus.GaugeVec // sweep_orphans{category}

	// 执行
	Items              *prometheus.CounterVec // sweep_items_total{category,outcome}
	EmptyFoldersPurged prometheus.Gauge       // sweep_empty_folders_deleted
	RunDuration        prometheus.Gauge       // sweep_run_duration_seconds
	LastRun            prometheus.Gauge       // sweep_last_run_timestamp_seconds
}

// New 在独立的 registry 上创建全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BlobObjects: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_inventory_objects",
			Help: "Objects listed in the blob store",
		}),
		CatalogRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sweep_inventory_catalog_rows",
			Help: "Catalog rows returned per inventory query",
		}, []string{"query"}),
		MalformedPreviews: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_inventory_malformed_previews",
			Help: "Preview rows whose path carries no original file id",
		}),

		Orphans: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sweep_orphans",
			Help: "Orphans detected per category",
		}, []string{"category"}),

		Items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_items_total",
			Help: "Processed items by category and outcome",
		}, []string{"category", "outcome"}),
		EmptyFoldersPurged: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_empty_folders_deleted",
			Help: "Empty folder rows removed by the bulk delete",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_run_duration_seconds",
			Help: "Wall time of the purge phase",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry 供测试与自定义导出使用
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSnapshot(s *inventory.Snapshot) {
	m.BlobObjects.Set(float64(s.BlobIDs.Len()))
	m.CatalogRows.WithLabelValues(inventory.QueryAll.String()).Set(float64(s.AllIDs.Len()))
	m.CatalogRows.WithLabelValues(inventory.QueryFiles.String()).Set(float64(s.FileIDs.Len()))
	m.CatalogRows.WithLabelValues(inventory.QueryEmptyFolders.String()).Set(float64(s.EmptyFolderIDs.Len()))
	m.MalformedPreviews.Set(float64(s.MalformedPreviews))
}

func (m *Metrics) ObserveClassification(r *classify.Result) {
	for c, n := range r.Counts() {
		m.Orphans.WithLabelValues(string(c)).Set(float64(n))
	}
}

func (m *Metrics) ObserveSummary(s *purge.Summary) {
	for c, byOutcome := range s.Counts {
		for o, n := range byOutcome {
			m.Items.WithLabelValues(string(c), string(o)).Add(float64(n))
		}
	}
	m.EmptyFoldersPurged.Set(float64(s.Bulk.Deleted))
	m.RunDuration.Set(s.FinishedAt.Sub(s.StartedAt).Seconds())
	m.LastRun.Set(float64(s.FinishedAt.Unix()))
}

// WriteTextfile 原子写入 textfile (node-exporter textfile collector)
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
