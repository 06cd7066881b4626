package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/confirm"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/metrics"
	"orphansweep/pkg/purge"
	"orphansweep/pkg/report"
)

// Options 引擎依赖；Journal 与 Metrics 可以为 nil
type Options struct {
	Loader    *inventory.Loader
	Purge     purge.Options
	Confirmer confirm.Confirmer
	Journal   *journal.Journal
	Metrics   *metrics.Metrics
	Out       io.Writer
	Logger    *slog.Logger
}

// Engine 编排一次完整运行
// 盘点 -> 分类 -> 报告 -> 确认 -> 执行 -> 汇总
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Purge.Logger == nil {
		opts.Purge.Logger = opts.Logger
	}
	return &Engine{opts: opts}
}

// Run 一次运行的全部产出
type Run struct {
	Snapshot *inventory.Snapshot
	Result   *classify.Result

	// 以下字段只在确认并执行后有值
	Confirmed bool
	RunID     string
	Results   []purge.Result
	Summary   *purge.Summary
}

// Failed 是否有条目失败
func (r *Run) Failed() bool {
	return r.Summary != nil && r.Summary.Failed() > 0
}

// Scan 只盘点和分类，不做任何修改
func (e *Engine) Scan(ctx context.Context) (*Run, error) {
	// 1. 盘点
	snap, err := e.opts.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 分类
	res := classify.Classify(snap)
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObserveSnapshot(snap)
		e.opts.Metrics.ObserveClassification(res)
	}

	// 3. 报告
	report.PrintInventory(e.opts.Out, snap, res)
	return &Run{Snapshot: snap, Result: res}, nil
}

// Clean 完整运行；dryRun 时在报告后停止
func (e *Engine) Clean(ctx context.Context, dryRun bool) (*Run, error) {
	run, err := e.Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := e.opts.Out

	if dryRun {
		fmt.Fprintln(out, "\n📝 Dry run: nothing was changed.")
		return run, nil
	}
	if run.Result.Total() == 0 && run.Result.EmptyFolders == 0 {
		fmt.Fprintln(out, "\n✨ Nothing to clean up.")
		return run, nil
	}

	// 4. 操作员确认
	fmt.Fprintln(out, "------------------------------------------------------------------")
	ok, err := e.opts.Confirmer.Confirm(confirm.Label)
	if err != nil {
		return run, err
	}
	if !ok {
		fmt.Fprintln(out, "Aborted.")
		return run, nil
	}
	run.Confirmed = true

	// 5. 执行 (运行日志可选)
	popts := e.opts.Purge
	var runLog *journal.RunLog
	if e.opts.Journal != nil {
		runLog, err = e.opts.Journal.StartRun(ctx)
		if err != nil {
			return run, err
		}
		run.RunID = runLog.ID()
		popts.Recorder = runLog
	}

	run.Results, run.Summary = purge.NewExecutor(popts).Execute(ctx, run.Result)

	// 6. 汇总
	if runLog != nil {
		if err := runLog.Finish(context.WithoutCancel(ctx), run.Summary); err != nil {
			e.opts.Logger.Warn("failed to finish journal run", "run", run.RunID, "error", err)
		}
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObserveSummary(run.Summary)
	}

	fmt.Fprintln(out)
	report.PrintSummary(out, run.Summary)
	e.opts.Logger.Info("run finished", "run", run.RunID, "summary", run.Summary.String())
	return run, nil
}
