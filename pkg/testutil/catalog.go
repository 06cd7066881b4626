package testutil

import (
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"

	"orphansweep/pkg/catalog"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// catalogSeq 保证同名子测试 (如 "#00") 也拿到不同的内存库
var catalogSeq atomic.Int64

// NewCatalog 创建一个隔离的内存 SQLite 目录并灌入 entries
func NewCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Repository {
	t.Helper()
	_, repo := NewCatalogDB(t, entries...)
	return repo
}

// NewCatalogDB 同 NewCatalog，同时返回底层 DB (用于模拟断线)
func NewCatalogDB(t *testing.T, entries ...catalog.Entry) (*catalog.DB, *catalog.Repository) {
	t.Helper()
	// 测试名必须转义："/" 和 "#" 会破坏 URI，丢掉 mode=memory 后会落盘
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared",
		url.PathEscape(t.Name()), catalogSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := catalog.NewWithConn(conn)
	require.NoError(t, db.AutoMigrate(catalog.DefaultTable, &catalog.Entry{}))
	t.Cleanup(func() { _ = db.Close() })

	if len(entries) > 0 {
		require.NoError(t, conn.Table(catalog.DefaultTable).Create(&entries).Error)
	}
	return db, catalog.NewRepository(db, catalog.DefaultTable)
}

// File 构造一个普通文件行
func File(id uint64, path string) catalog.Entry {
	return catalog.Entry{FileID: id, Path: path, MimeType: 7, Size: 100}
}

// Folder 构造一个目录行
func Folder(id uint64, path string, size int64) catalog.Entry {
	return catalog.Entry{FileID: id, Path: path, MimeType: catalog.FolderMimeType, Size: size}
}
