package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"orphansweep/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("unsupported catalog driver")

// Config 数据库配置
type Config struct {
	Driver   string // mysql | postgres | sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string // sqlite 下为数据库文件路径
	SSLMode  string // postgres: "disable" for local
	Table    string // 默认 oc_filecache
}

// DB 封装了 GORM 实例，作为元数据目录的入口
// 每次查询前通过 Conn 做一次存活检查，断线时自动重连
type DB struct {
	mu   sync.Mutex
	conn *gorm.DB
	open func(ctx context.Context) (*gorm.DB, error) // nil 表示不可重连
}

// NewDB 初始化数据库连接
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	open := func(ctx context.Context) (*gorm.DB, error) {
		return openConn(ctx, cfg)
	}
	conn, err := open(ctx)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, open: open}, nil
}

// NewWithConn 允许使用现有的 GORM 连接初始化 DB (依赖注入 / 单元测试)
// 这种 DB 无法重连
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql", "":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DBName), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func openConn(ctx context.Context, cfg Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(32)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 验证连接是否存活
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("catalog ping failed: %w", err)
	}
	return db, nil
}

// Conn 返回一个经过存活检查的连接
// 1. ping 当前连接
// 2. 失败则重新打开，替换旧连接
func (d *DB) Conn(ctx context.Context) (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sqlDB, err := d.conn.DB()
	if err == nil {
		if err = sqlDB.PingContext(ctx); err == nil {
			return d.conn, nil
		}
	}
	if d.open == nil {
		return nil, classify(fmt.Errorf("catalog connection lost: %w", err))
	}

	slog.Warn("catalog connection lost, reconnecting", "error", err)
	conn, oerr := d.open(ctx)
	if oerr != nil {
		return nil, fmt.Errorf("%w: catalog reconnect failed: %w", storage.ErrTransient, oerr)
	}
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	d.conn = conn
	return conn, nil
}

// AutoMigrate 自动迁移表结构 (仅测试与本地演练使用，生产库的表由上游应用维护)
func (d *DB) AutoMigrate(table string, models ...any) error {
	return d.GetConn().Table(table).AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

func (d *DB) Close() error {
	sqlDB, err := d.GetConn().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
