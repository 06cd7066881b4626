package journal

import (
	"time"

	"gorm.io/datatypes"
)

// Run 一次 sweep clean 的记录
type Run struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
	Aborted    bool

	// Counts: {"preview": {"purged": 3, ...}, ...}
	Counts datatypes.JSON

	// 空目录批量删除
	BulkVerdict string
	BulkDeleted int64
	Failed      int
}

func (Run) TableName() string {
	return "runs"
}

// Item 单个条目的结果
type Item struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index;type:varchar(36);not null"`
	Category string `gorm:"type:varchar(32)"`
	FileID   uint64 `gorm:"index"`
	Outcome  string `gorm:"type:varchar(32)"`

	Transient  bool
	Error      string `gorm:"type:text"`
	RowBackup  string
	BlobBackup string

	// Row 备份时读到的目录行
	Row datatypes.JSON

	StartedAt  time.Time
	FinishedAt time.Time
}

func (Item) TableName() string {
	return "items"
}
