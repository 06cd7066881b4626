package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"orphansweep/pkg/config"
	"orphansweep/pkg/metrics"
	"orphansweep/pkg/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	// 1. JSON + warn 级别：info 被过滤
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "fileid", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"fileid":42`)

	// 2. text + debug
	buf.Reset()
	logger = NewLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}

func TestNewApp_MissingBucket(t *testing.T) {
	cfg := &config.Config{}
	cfg.Blob.Region = "us-east-1"

	a, err := NewApp(context.Background(), cfg, NewLogger(cfg.Log, os.Stderr))
	assert.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "bucket is required")
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	var buf bytes.Buffer
	return &App{
		Config:  cfg,
		Logger:  NewLogger(cfg.Log, &buf),
		Blobs:   memory.NewStore(),
		Metrics: metrics.New(),
	}
}

func TestCachedBlobs_Fallback(t *testing.T) {
	// 未配置 Redis：原样返回
	a := newTestApp(t, &config.Config{})
	assert.Same(t, a.Blobs, a.CachedBlobs())

	// Redis 地址非法：降级为直接列举
	cfg := &config.Config{}
	cfg.Cache.RedisURL = "not-a-url://"
	a = newTestApp(t, cfg)
	assert.Same(t, a.Blobs, a.CachedBlobs())
}

func TestOptionalComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	a := newTestApp(t, cfg)
	defer a.Close()

	// 未配置时是空操作
	j, err := a.OpenJournal()
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, a.WriteMetrics())

	// 配置后生效
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Metrics.Textfile = filepath.Join(dir, "sweep.prom")
	cfg.Backup.Dir = filepath.Join(dir, "backup")
	cfg.Backup.Format = "cbor"

	j, err = a.OpenJournal()
	require.NoError(t, err)
	assert.NotNil(t, j)

	a.Metrics.BlobObjects.Set(1)
	require.NoError(t, a.WriteMetrics())
	_, err = os.Stat(cfg.Metrics.Textfile)
	assert.NoError(t, err)

	w, err := a.OpenBackups()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Backup.Dir, "db", "1.cbor"), w.RowPath(1))
}
