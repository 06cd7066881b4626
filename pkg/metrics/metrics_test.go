package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/purge"
	"orphansweep/pkg/types"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()

	snap := &inventory.Snapshot{
		BlobIDs:           types.NewIDSet(1, 2, 3),
		AllIDs:            types.NewIDSet(2, 3, 4),
		FileIDs:           types.NewIDSet(2, 3, 4),
		EmptyFolderIDs:    types.NewIDSet(),
		MalformedPreviews: 2,
	}
	m.ObserveSnapshot(snap)
	m.ObserveClassification(classify.Classify(snap))

	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	m.ObserveSummary(&purge.Summary{
		Counts: map[classify.Category]map[purge.Outcome]int{
			classify.CategoryS3Only: {purge.OutcomePurged: 1},
			classify.CategoryDBOnly: {purge.OutcomeBackupFailed: 1},
		},
		Bulk:       purge.BulkResult{Ran: true, Deleted: 7},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	})

	assert.Equal(t, 3.0, promtest.ToFloat64(m.BlobObjects))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.CatalogRows.WithLabelValues("all")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.MalformedPreviews))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Orphans.WithLabelValues("s3-only")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Orphans.WithLabelValues("db-only")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Items.WithLabelValues("db-only", "backup-failed")))
	assert.Equal(t, 7.0, promtest.ToFloat64(m.EmptyFoldersPurged))
	assert.Equal(t, 90.0, promtest.ToFloat64(m.RunDuration))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.BlobObjects.Set(42)

	path := filepath.Join(t.TempDir(), "sweep.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sweep_inventory_objects 42")
}
