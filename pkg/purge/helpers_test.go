package purge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"orphansweep/pkg/backup"
	"orphansweep/pkg/catalog"
	"orphansweep/pkg/classify"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/oid"
	"orphansweep/pkg/storage/memory"
	"orphansweep/pkg/testutil"
	"orphansweep/pkg/types"

	"github.com/stretchr/testify/require"
)

// fixture 一套完整的测试环境：内存对象存储 + SQLite 目录 + 临时备份目录
type fixture struct {
	blobs   *memory.Store
	catalog *catalog.Repository
	backups *backup.Writer
	clock   *testutil.StubClock
}

func newFixture(t *testing.T, blobIDs []types.FileID, entries ...catalog.Entry) *fixture {
	t.Helper()
	blobs := memory.NewStore()
	for _, id := range blobIDs {
		blobs.Put(oid.Encode(id), []byte(fmt.Sprintf("content-%d", id)))
	}
	w, err := backup.NewWriter(t.TempDir(), backup.FormatJSON)
	require.NoError(t, err)

	return &fixture{
		blobs:   blobs,
		catalog: testutil.NewCatalog(t, entries...),
		backups: w,
		clock:   testutil.TickingClock(),
	}
}

// classify 重新盘点并分类
func (f *fixture) classify(t *testing.T) *classify.Result {
	t.Helper()
	snap, err := inventory.NewLoader(f.blobs, f.catalog, f.clock, nil).Load(context.Background())
	require.NoError(t, err)
	return classify.Classify(snap)
}

func (f *fixture) executor(opts Options) *Executor {
	if opts.Blobs == nil {
		opts.Blobs = f.blobs
	}
	if opts.Catalog == nil {
		opts.Catalog = f.catalog
	}
	if opts.Backups == nil {
		opts.Backups = f.backups
	}
	if opts.Clock == nil {
		opts.Clock = f.clock
	}
	return NewExecutor(opts)
}

func (f *fixture) rowExists(t *testing.T, id types.FileID) bool {
	t.Helper()
	ids, err := f.catalog.AllIDs(context.Background())
	require.NoError(t, err)
	return slices.Contains(ids, id)
}

func resultFor(t *testing.T, results []Result, id types.FileID) Result {
	t.Helper()
	for _, r := range results {
		if r.Item.ID == id {
			return r
		}
	}
	t.Fatalf("no result for %d", id)
	return Result{}
}

// -----------------------------------------------------------------------------
// 事件记录：验证“先备份后删除”
// -----------------------------------------------------------------------------

type event struct {
	op string
	id types.FileID
	at time.Time
}

type eventLog struct {
	mu     sync.Mutex
	clock  types.Clock
	events []event
}

func (l *eventLog) add(op string, id types.FileID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event{op: op, id: id, at: l.clock.Now()})
}

func (l *eventLog) at(t *testing.T, op string, id types.FileID) time.Time {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.op == op && e.id == id {
			return e.at
		}
	}
	t.Fatalf("event %s(%d) not recorded", op, id)
	return time.Time{}
}

type recordingBackups struct {
	Backuper
	log *eventLog
}

func (b recordingBackups) WriteBlob(ctx context.Context, id types.FileID, r io.Reader) (backup.Record, error) {
	rec, err := b.Backuper.WriteBlob(ctx, id, r)
	if err == nil {
		b.log.add("backup-blob", id)
	}
	return rec, err
}

func (b recordingBackups) WriteRow(ctx context.Context, id types.FileID, row map[string]any) (backup.Record, error) {
	rec, err := b.Backuper.WriteRow(ctx, id, row)
	if err == nil {
		b.log.add("backup-row", id)
	}
	return rec, err
}

type recordingCatalog struct {
	Catalog
	log *eventLog
}

func (c recordingCatalog) DeleteRow(ctx context.Context, id types.FileID) error {
	c.log.add("delete-row", id)
	return c.Catalog.DeleteRow(ctx, id)
}

type recordingBlobs struct {
	*memory.Store
	log *eventLog
}

func (s recordingBlobs) Delete(ctx context.Context, keys []string) (map[string]error, error) {
	for _, k := range keys {
		id, _ := oid.Decode(k)
		s.log.add("delete-blob", id)
	}
	return s.Store.Delete(ctx, keys)
}

// failingBackups 对指定 ID 的目录行备份返回错误
type failingBackups struct {
	Backuper
	failRow types.IDSet
}

func (b failingBackups) WriteRow(ctx context.Context, id types.FileID, row map[string]any) (backup.Record, error) {
	if b.failRow.Has(id) {
		return backup.Record{}, fmt.Errorf("disk full")
	}
	return b.Backuper.WriteRow(ctx, id, row)
}

// memRecorder 收集 Recorder 回调
type memRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (m *memRecorder) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

// droppingCatalog 在删除前关闭底层连接，模拟执行中途断线
type droppingCatalog struct {
	Catalog
	db *catalog.DB
}

func (c droppingCatalog) DeleteRow(ctx context.Context, id types.FileID) error {
	_ = c.db.Close()
	return c.Catalog.DeleteRow(ctx, id)
}

// closeFailingBlobs 返回的 reader 在 Close 时报错
type closeFailingBlobs struct {
	*memory.Store
}

type closeFailingReader struct {
	io.Reader
}

func (closeFailingReader) Close() error { return errors.New("connection reset while closing body") }

func (s closeFailingBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return closeFailingReader{Reader: rc}, nil
}
