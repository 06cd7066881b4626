package purge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"orphansweep/pkg/backup"
	"orphansweep/pkg/catalog"
	"orphansweep/pkg/classify"
	"orphansweep/pkg/gate"
	"orphansweep/pkg/oid"
	"orphansweep/pkg/protect"
	"orphansweep/pkg/storage"
	"orphansweep/pkg/types"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 每个类别内并发处理的条目数
const DefaultWorkers = 4

// Catalog 是执行器需要的目录能力
type Catalog interface {
	GetRow(ctx context.Context, id types.FileID) (map[string]any, error)
	DeleteRow(ctx context.Context, id types.FileID) error
	EmptyFolders(ctx context.Context) ([]catalog.Entry, error)
	BulkDeleteEmptyFolders(ctx context.Context, exclude []types.FileID) (int64, error)
	Table() string
}

// Backuper 是本地备份的写入端
type Backuper interface {
	WriteBlob(ctx context.Context, id types.FileID, r io.Reader) (backup.Record, error)
	WriteRow(ctx context.Context, id types.FileID, row map[string]any) (backup.Record, error)
}

// Recorder 接收每个条目的结果 (例如运行日志)
// 必须并发安全
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Options 执行器依赖
type Options struct {
	Blobs     storage.Store
	Catalog   Catalog
	Backups   Backuper
	Protect   *protect.Matcher
	Recorder  Recorder
	Clock     types.Clock
	Logger    *slog.Logger
	Workers   int
	Threshold int
}

// Executor 执行备份-删除
type Executor struct {
	blobs     storage.Store
	catalog   Catalog
	backups   Backuper
	protect   *protect.Matcher
	recorder  Recorder
	clock     types.Clock
	logger    *slog.Logger
	workers   int
	threshold int
}

func NewExecutor(opts Options) *Executor {
	e := &Executor{
		blobs:     opts.Blobs,
		catalog:   opts.Catalog,
		backups:   opts.Backups,
		protect:   opts.Protect,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
		logger:    opts.Logger,
		workers:   opts.Workers,
		threshold: opts.Threshold,
	}
	if e.clock == nil {
		e.clock = types.RealClock{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.threshold <= 0 {
		e.threshold = gate.DefaultThreshold
	}
	return e
}

// Execute 按固定顺序处理全部类别
// ctx 取消后不再开始新条目；已开始的条目会完成自己的备份+删除
func (e *Executor) Execute(ctx context.Context, res *classify.Result) ([]Result, *Summary) {
	summary := newSummary()
	summary.StartedAt = e.clock.Now()

	var all []Result
	for _, c := range classify.Order {
		results := e.runCategory(ctx, res.Items(c))
		for _, r := range results {
			summary.add(r)
		}
		all = append(all, results...)

		// 空目录批量删除紧跟在 empty-with-object 之后
		if c == classify.CategoryEmptyWithObject {
			summary.Bulk = e.bulkEmptyFolders(ctx, res.EmptyFolders, results)
		}
	}

	summary.Aborted = ctx.Err() != nil
	summary.FinishedAt = e.clock.Now()
	return all, summary
}

// runCategory 在有界 worker 池里处理同一类别的条目
func (e *Executor) runCategory(ctx context.Context, items []classify.Item) []Result {
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, item := range items {
		if ctx.Err() != nil {
			results[i] = e.skipped(ctx, item)
			continue
		}
		g.Go(func() error {
			// 等待 worker 期间可能已被取消
			if ctx.Err() != nil {
				results[i] = e.skipped(ctx, item)
				return nil
			}
			// 已开始的条目不受取消影响，保证备份和删除成对完成
			detached := context.WithoutCancel(ctx)
			results[i] = e.runItem(detached, item)
			e.record(detached, results[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) skipped(ctx context.Context, item classify.Item) Result {
	now := e.clock.Now()
	r := Result{Item: item, Outcome: OutcomeSkipped, StartedAt: now, FinishedAt: now}
	e.record(context.WithoutCancel(ctx), r)
	return r
}

func (e *Executor) record(ctx context.Context, r Result) {
	if r.Outcome.Failed() {
		e.logger.Error("item failed",
			"category", r.Item.Category, "fileid", r.Item.ID,
			"outcome", r.Outcome, "transient", r.Transient, "error", r.Err)
	}
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, r); err != nil {
		e.logger.Warn("failed to journal item", "fileid", r.Item.ID, "error", err)
	}
}

// runItem 单个条目的备份-删除协议
// 1. 目录行: 读取 -> 保护检查 -> 备份 -> 删除
// 2. 对象:   读取 -> 备份 -> 删除
// 任何一步备份失败都不会执行对应的删除
func (e *Executor) runItem(ctx context.Context, item classify.Item) Result {
	r := Result{Item: item, StartedAt: e.clock.Now()}
	deleted := false

	finish := func(o Outcome, err error) Result {
		r.Outcome = o
		r.Err = err
		r.Transient = err != nil && storage.IsTransient(err)
		r.FinishedAt = e.clock.Now()
		return r
	}

	// 1. 目录行
	if item.Actions.Has(classify.ActionCatalog) {
		row, err := e.catalog.GetRow(ctx, item.ID)
		switch {
		case errors.Is(err, catalog.ErrAlreadyGone):
			// 行已不存在，继续处理对象
			// 没有路径可供保护规则检查，与 s3-only 对象相同
		case err != nil:
			return finish(OutcomeBackupFailed, err)
		default:
			if path, _ := row["path"].(string); e.protect.Protected(path) {
				return finish(OutcomeProtected, nil)
			}

			rec, err := e.backups.WriteRow(ctx, item.ID, row)
			if err != nil {
				return finish(OutcomeBackupFailed, err)
			}
			r.RowBackup = rec.Path
			r.Row = row

			err = e.catalog.DeleteRow(ctx, item.ID)
			switch {
			case errors.Is(err, catalog.ErrAlreadyGone):
			case err != nil:
				return finish(OutcomeDeleteFailed, err)
			default:
				deleted = true
			}
		}
	}

	// 2. 对象
	if item.Actions.Has(classify.ActionBlob) {
		gone, err := e.purgeBlob(ctx, item.ID, &r)
		if err != nil {
			return finish(r.Outcome, err)
		}
		if !gone {
			deleted = true
		}
	}

	if deleted {
		return finish(OutcomePurged, nil)
	}
	return finish(OutcomeAlreadyGone, nil)
}

// purgeBlob 备份并删除对象；gone 表示对象在备份前就已不存在
// 出错时 r.Outcome 被设置为对应的失败结果
func (e *Executor) purgeBlob(ctx context.Context, id types.FileID, r *Result) (gone bool, err error) {
	key := oid.Encode(id)

	rc, err := e.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		r.Outcome = OutcomeBackupFailed
		return false, err
	}
	rec, err := e.backups.WriteBlob(ctx, id, rc)
	if cerr := rc.Close(); cerr != nil {
		e.logger.Warn("failed to close blob reader", "fileid", id, "key", key, "error", cerr)
	}
	if err != nil {
		r.Outcome = OutcomeBackupFailed
		return false, err
	}
	r.BlobBackup = rec.Path

	failures, err := e.blobs.Delete(ctx, []string{key})
	if err == nil {
		err = failures[key]
	}
	if err != nil {
		r.Outcome = OutcomeDeleteFailed
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return false, nil
}

// bulkEmptyFolders 经过安全闸门后批量删除剩余的空目录行 (不备份)
// empty-with-object 中没有成功处理的行，以及受保护的行，都会被排除
func (e *Executor) bulkEmptyFolders(ctx context.Context, count int, ewo []Result) BulkResult {
	decision, err := gate.Decide(count, e.threshold, e.catalog.Table())
	if err != nil {
		return BulkResult{Err: err}
	}
	br := BulkResult{Decision: decision}

	if decision.Verdict == gate.Refuse {
		e.logger.Warn("too many empty folders for a remote bulk delete",
			"count", count, "threshold", e.threshold, "statement", decision.Statement)
		return br
	}
	if count == 0 || ctx.Err() != nil {
		return br
	}

	// 1. 排除集合
	exclude := types.NewIDSet()
	for _, r := range ewo {
		if r.Outcome != OutcomePurged && r.Outcome != OutcomeAlreadyGone {
			exclude.Add(r.Item.ID)
		}
	}
	if !e.protect.Empty() {
		folders, err := e.catalog.EmptyFolders(ctx)
		if err != nil {
			br.Err = fmt.Errorf("list empty folders: %w", err)
			return br
		}
		for _, f := range folders {
			if e.protect.Protected(f.Path) {
				exclude.Add(types.FileID(f.FileID))
			}
		}
	}

	// 2. 执行
	n, err := e.catalog.BulkDeleteEmptyFolders(ctx, exclude.Sorted())
	br.Ran = true
	br.Excluded = exclude.Len()
	br.Deleted = n
	br.Err = err
	if err != nil {
		e.logger.Error("bulk empty folder delete failed", "error", err)
	} else {
		e.logger.Info("empty folders deleted", "rows", n, "excluded", br.Excluded)
	}
	return br
}
