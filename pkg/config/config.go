package config

import "time"

// Config 是全部配置的类型化视图
type Config struct {
	Blob    BlobConfig    `mapstructure:"blob"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Journal JournalConfig `mapstructure:"journal"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// BlobConfig S3 兼容对象存储
type BlobConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// CatalogConfig 元数据目录 (Nextcloud 数据库)
type CatalogConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=mysql postgres sqlite"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	Table    string `mapstructure:"table" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// SweepConfig 清理行为
type SweepConfig struct {
	EmptyFolderThreshold int      `mapstructure:"empty_folder_threshold" validate:"gt=0"`
	Workers              int      `mapstructure:"workers" validate:"gt=0,lte=64"`
	Protect              []string `mapstructure:"protect"`
	ProtectFile          string   `mapstructure:"protect_file"`
}

// BackupConfig 本地备份
type BackupConfig struct {
	Dir    string `mapstructure:"dir" validate:"required"`
	Format string `mapstructure:"format" validate:"oneof=json cbor"`
}

// JournalConfig 运行日志；Path 为空时不记录
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig Redis 列表缓存 (仅 scan --cached)
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// MetricsConfig Prometheus textfile；为空时不写
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}
