package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"orphansweep/pkg/purge"
	"orphansweep/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRunNotFound = errors.New("run not found in journal")

// Journal 本地 SQLite 运行日志
type Journal struct {
	db    *gorm.DB
	ids   types.IDGenerator
	clock types.Clock
}

// Open 打开 (必要时创建) 日志文件
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return NewWithConn(db, types.UUIDGenerator{}, types.RealClock{})
}

// NewWithConn 使用现有连接 (单元测试)
func NewWithConn(db *gorm.DB, ids types.IDGenerator, clock types.Clock) (*Journal, error) {
	if err := db.AutoMigrate(&Run{}, &Item{}); err != nil {
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return &Journal{db: db, ids: ids, clock: clock}, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunLog 一次运行的写入句柄，实现 purge.Recorder
type RunLog struct {
	j  *Journal
	id string
	// SQLite 单写者
	mu sync.Mutex
}

// StartRun 创建一条运行记录
func (j *Journal) StartRun(ctx context.Context) (*RunLog, error) {
	run := Run{ID: j.ids.New(), StartedAt: j.clock.Now()}
	if err := j.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return &RunLog{j: j, id: run.ID}, nil
}

// ID 运行 ID
func (l *RunLog) ID() string { return l.id }

// Record 写入一个条目的结果
func (l *RunLog) Record(ctx context.Context, r purge.Result) error {
	item := Item{
		RunID:      l.id,
		Category:   string(r.Item.Category),
		FileID:     uint64(r.Item.ID),
		Outcome:    string(r.Outcome),
		Transient:  r.Transient,
		RowBackup:  r.RowBackup,
		BlobBackup: r.BlobBackup,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		item.Error = r.Err.Error()
	}
	if r.Row != nil {
		data, err := json.Marshal(r.Row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", r.Item.ID, err)
		}
		item.Row = datatypes.JSON(data)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.j.db.WithContext(ctx).Create(&item).Error
}

// Finish 写入汇总
func (l *RunLog) Finish(ctx context.Context, s *purge.Summary) error {
	counts := make(map[string]map[string]int, len(s.Counts))
	for c, byOutcome := range s.Counts {
		m := make(map[string]int, len(byOutcome))
		for o, n := range byOutcome {
			m[string(o)] = n
		}
		counts[string(c)] = m
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}

	// 被拒绝时 Statement 非空
	verdict := "not-run"
	if s.Bulk.Ran || s.Bulk.Decision.Statement != "" {
		verdict = s.Bulk.Decision.Verdict.String()
	}

	finished := l.j.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.j.db.WithContext(ctx).Model(&Run{}).
		Where("id = ?", l.id).
		Updates(map[string]any{
			"finished_at":  finished,
			"aborted":      s.Aborted,
			"counts":       datatypes.JSON(data),
			"bulk_verdict": verdict,
			"bulk_deleted": s.Bulk.Deleted,
			"failed":       s.Failed(),
		}).Error
}

// RecentRuns 最近的 limit 次运行 (新的在前)
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := j.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// Items 某次运行的全部条目
func (j *Journal) Items(ctx context.Context, runID string) ([]Item, error) {
	var n int64
	if err := j.db.WithContext(ctx).Model(&Run{}).Where("id = ?", runID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrRunNotFound
	}

	var items []Item
	err := j.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id").
		Find(&items).Error
	return items, err
}

// DecodeCounts 解析 Run.Counts
func (r Run) DecodeCounts() (map[string]map[string]int, error) {
	counts := map[string]map[string]int{}
	if len(r.Counts) == 0 {
		return counts, nil
	}
	err := json.Unmarshal(r.Counts, &counts)
	return counts, err
}

var _ purge.Recorder = (*RunLog)(nil)
