package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"orphansweep/pkg/backup"
	"orphansweep/pkg/catalog"
	"orphansweep/pkg/classify"
	"orphansweep/pkg/confirm"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/metrics"
	"orphansweep/pkg/oid"
	"orphansweep/pkg/purge"
	"orphansweep/pkg/storage/memory"
	"orphansweep/pkg/testutil"
	"orphansweep/pkg/types"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	blobs   *memory.Store
	catalog *catalog.Repository
	backups *backup.Writer
	out     *bytes.Buffer
}

// newHarness 每个类别各放一个孤儿
//
//	1  正常文件 (行 + 对象)
//	2  空目录却有对象
//	3  文件行没有对象
//	6  空目录 (批量删除)
//	7  原图 42 已删除的缩略图 (行 + 对象)
//	99 对象没有目录行
func newHarness(t *testing.T) *harness {
	t.Helper()
	blobs := memory.NewStore()
	for _, id := range []types.FileID{1, 2, 7, 99} {
		blobs.Put(oid.Encode(id), []byte("data"))
	}
	w, err := backup.NewWriter(t.TempDir(), backup.FormatJSON)
	require.NoError(t, err)

	return &harness{
		blobs: blobs,
		catalog: testutil.NewCatalog(t,
			testutil.File(1, "files/a.txt"),
			testutil.Folder(2, "files/empty-a", 0),
			testutil.File(3, "files/b.txt"),
			testutil.Folder(6, "files/empty-b", 0),
			testutil.File(7, "appdata_x/preview/42/64-64.jpg"),
		),
		backups: w,
		out:     &bytes.Buffer{},
	}
}

func (h *harness) engine(c confirm.Confirmer, j *journal.Journal, m *metrics.Metrics) *Engine {
	clock := testutil.TickingClock()
	return New(Options{
		Loader: inventory.NewLoader(h.blobs, h.catalog, clock, nil),
		Purge: purge.Options{
			Blobs:   h.blobs,
			Catalog: h.catalog,
			Backups: h.backups,
			Clock:   clock,
		},
		Confirmer: c,
		Journal:   j,
		Metrics:   m,
		Out:       h.out,
	})
}

func (h *harness) catalogIDs(t *testing.T) []types.FileID {
	t.Helper()
	ids, err := h.catalog.AllIDs(context.Background())
	require.NoError(t, err)
	return ids
}

func TestEngine_Scan(t *testing.T) {
	h := newHarness(t)

	run, err := h.engine(nil, nil, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[classify.Category]int{
		classify.CategoryPreview:         1,
		classify.CategoryEmptyWithObject: 1,
		classify.CategoryS3Only:          1,
		classify.CategoryDBOnly:          1,
	}, run.Result.Counts())
	assert.Equal(t, 2, run.Result.EmptyFolders)
	assert.False(t, run.Confirmed)
	assert.Nil(t, run.Summary)

	assert.Len(t, h.blobs.Keys(), 4)
	assert.Len(t, h.catalogIDs(t), 5)
}

func TestEngine_DryRunChangesNothing(t *testing.T) {
	h := newHarness(t)

	run, err := h.engine(confirm.AlwaysYes{}, nil, nil).Clean(context.Background(), true)
	require.NoError(t, err)

	assert.False(t, run.Confirmed)
	assert.Contains(t, h.out.String(), "Dry run")
	assert.Len(t, h.blobs.Keys(), 4)
	assert.Len(t, h.catalogIDs(t), 5)
}

func TestEngine_DeclinedChangesNothing(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"no", "no\n"},
		{"y", "y\n"},
		{"blank line", "\n"},
		{"eof", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := confirm.LineReader{In: strings.NewReader(tt.answer), Out: h.out}

			run, err := h.engine(c, nil, nil).Clean(context.Background(), false)
			require.NoError(t, err)

			assert.False(t, run.Confirmed)
			assert.Nil(t, run.Summary)
			assert.Contains(t, h.out.String(), "Aborted.")
			assert.Len(t, h.blobs.Keys(), 4)
			assert.Len(t, h.catalogIDs(t), 5)
		})
	}
}

func TestEngine_CleanConverges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	m := metrics.New()

	c := confirm.LineReader{In: strings.NewReader(" YES \n"), Out: h.out}
	run, err := h.engine(c, j, m).Clean(ctx, false)
	require.NoError(t, err)

	// 1. 执行结果
	require.True(t, run.Confirmed)
	require.NotNil(t, run.Summary)
	assert.False(t, run.Failed())
	assert.Equal(t, 4, run.Summary.Total(purge.OutcomePurged))
	assert.True(t, run.Summary.Bulk.Ran)
	assert.Contains(t, h.out.String(), "All done")

	// 2. 两边只剩正常文件
	assert.Equal(t, []string{oid.Encode(1)}, h.blobs.Keys())
	assert.Equal(t, []types.FileID{1}, h.catalogIDs(t))

	// 3. 运行日志
	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].ID)
	assert.NotNil(t, runs[0].FinishedAt)
	items, err := j.Items(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, items, 4)

	// 4. 指标
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Items.WithLabelValues(string(classify.CategoryS3Only), string(purge.OutcomePurged))))

	// 5. 再跑一次：无事可做
	h.out.Reset()
	again, err := h.engine(confirm.AlwaysYes{}, nil, nil).Clean(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, again.Result.Total())
	assert.Zero(t, again.Result.EmptyFolders)
	assert.False(t, again.Confirmed)
	assert.Contains(t, h.out.String(), "Nothing to clean up")
}

func TestEngine_FailedItemsAreReported(t *testing.T) {
	h := newHarness(t)
	h.blobs.FailDelete(oid.Encode(99), assert.AnError)

	run, err := h.engine(confirm.AlwaysYes{}, nil, nil).Clean(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, run.Failed())
	assert.Equal(t, 1, run.Summary.Total(purge.OutcomeDeleteFailed))
	assert.True(t, h.blobs.Has(oid.Encode(99)))
}
