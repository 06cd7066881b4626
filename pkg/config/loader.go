package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀 (SWEEP_CATALOG_PASSWORD 等)
const EnvPrefix = "SWEEP"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .sweep
		viper.AddConfigPath(".sweep")
		// 3. 用户主目录下的 .sweep
		viper.AddConfigPath(filepath.Join(home, ".sweep"))

		// config.toml / config.yaml / config.json 均可
		viper.SetConfigName("config")
	}

	// 3. 读取环境变量 (SWEEP_BLOB_BUCKET 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

// Get 把当前 Viper 状态解码成 Config 并校验
func Get() (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	// 对象存储
	viper.SetDefault("blob.endpoint", "")
	viper.SetDefault("blob.region", "us-east-1")
	viper.SetDefault("blob.bucket", "")
	viper.SetDefault("blob.access_key_id", "")
	viper.SetDefault("blob.secret_access_key", "")
	viper.SetDefault("blob.path_style", false)

	// 目录数据库
	viper.SetDefault("catalog.driver", "mysql")
	viper.SetDefault("catalog.host", "localhost")
	viper.SetDefault("catalog.port", 3306)
	viper.SetDefault("catalog.user", "nextcloud")
	viper.SetDefault("catalog.password", "")
	viper.SetDefault("catalog.name", "nextcloud")
	viper.SetDefault("catalog.table", "oc_filecache")
	viper.SetDefault("catalog.sslmode", "disable")

	// 清理
	viper.SetDefault("sweep.empty_folder_threshold", 200000)
	viper.SetDefault("sweep.workers", 4)
	viper.SetDefault("sweep.protect", []string{})
	viper.SetDefault("sweep.protect_file", "")

	// 备份与运行记录
	viper.SetDefault("backup.dir", "sweep-backup")
	viper.SetDefault("backup.format", "json")
	viper.SetDefault("journal.path", filepath.Join(".sweep", "journal.db"))

	// 可选组件
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
