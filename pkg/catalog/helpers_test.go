package catalog

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupTestRepo 构建隔离的内存 SQLite 目录
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := NewWithConn(conn)
	require.NoError(t, db.AutoMigrate(DefaultTable, &Entry{}))
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db, DefaultTable)
}

// mustInsert 写入测试行，失败直接终止
func mustInsert(t *testing.T, repo *Repository, entries ...Entry) {
	t.Helper()
	err := repo.db.GetConn().Table(repo.table).Create(&entries).Error
	require.NoError(t, err)
}

// folder / file 构造测试行
func folder(id uint64, path string, size int64) Entry {
	return Entry{FileID: id, Path: path, MimeType: FolderMimeType, Size: size}
}

func file(id uint64, path string) Entry {
	return Entry{FileID: id, Path: path, MimeType: 7, Size: 100}
}

func mustCount(t *testing.T, repo *Repository) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repo.db.GetConn().WithContext(context.Background()).Table(repo.table).Count(&n).Error)
	return n
}
