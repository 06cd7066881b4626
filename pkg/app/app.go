package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"orphansweep/pkg/backup"
	"orphansweep/pkg/catalog"
	"orphansweep/pkg/config"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/metrics"
	"orphansweep/pkg/protect"
	"orphansweep/pkg/storage"
	"orphansweep/pkg/storage/cache"
	"orphansweep/pkg/storage/s3"
	"orphansweep/pkg/types"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有两边存储的连接以及各个可选组件
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   types.Clock
	Blobs   storage.Store
	DB      *catalog.DB
	Catalog *catalog.Repository
	Protect *protect.Matcher
	Metrics *metrics.Metrics

	closers []io.Closer
}

// NewLogger 按配置创建 slog Logger
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewApp 是工厂函数，负责组装这一台机器
// 两边存储都在这里做 fail-fast 连通性检查，任何删除动作之前暴露配置错误
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// 1. 保护规则 (纯本地，先做)
	matcher, err := protect.NewMatcher(cfg.Sweep.Protect, cfg.Sweep.ProtectFile)
	if err != nil {
		return nil, err
	}

	// 2. 对象存储
	blobs, err := s3.NewAdapter(ctx, blobConfig(cfg.Blob))
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	// 3. 目录数据库
	db, err := catalog.NewDB(ctx, catalogConfig(cfg.Catalog))
	if err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Clock:   types.RealClock{},
		Blobs:   blobs,
		DB:      db,
		Catalog: catalog.NewRepository(db, cfg.Catalog.Table),
		Protect: matcher,
		Metrics: metrics.New(),
		closers: []io.Closer{db},
	}
	return a, nil
}

func blobConfig(c config.BlobConfig) s3.Config {
	return s3.Config{
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		Bucket:          c.Bucket,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		PathStyle:       c.PathStyle,
	}
}

func catalogConfig(c config.CatalogConfig) catalog.Config {
	return catalog.Config{
		Driver:   c.Driver,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.Name,
		SSLMode:  c.SSLMode,
		Table:    c.Table,
	}
}

// CachedBlobs 为只读盘点返回带 Redis 缓存的对象存储
// 未配置 Redis 或 Redis 不可用时退化为直接列举
func (a *App) CachedBlobs() storage.Store {
	if a.Config.Cache.RedisURL == "" {
		return a.Blobs
	}
	cached, err := cache.NewCachedStore(a.Blobs, cache.Config{
		RedisURL:  a.Config.Cache.RedisURL,
		TTL:       a.Config.Cache.TTL,
		Namespace: a.Config.Blob.Bucket,
	})
	if err != nil {
		a.Logger.Warn("redis cache unavailable, listing the bucket directly", "error", err)
		return a.Blobs
	}
	a.closers = append(a.closers, cached)
	return cached
}

// OpenBackups 创建备份目录
func (a *App) OpenBackups() (*backup.Writer, error) {
	return backup.NewWriter(a.Config.Backup.Dir, backup.Format(a.Config.Backup.Format))
}

// OpenJournal 打开运行日志；未配置时返回 nil
func (a *App) OpenJournal() (*journal.Journal, error) {
	if a.Config.Journal.Path == "" {
		return nil, nil
	}
	j, err := journal.Open(a.Config.Journal.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, j)
	return j, nil
}

// WriteMetrics 按配置写出 textfile
func (a *App) WriteMetrics() error {
	if a.Config.Metrics.Textfile == "" {
		return nil
	}
	return a.Metrics.WriteTextfile(a.Config.Metrics.Textfile)
}

// Close 释放全部连接
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
}
