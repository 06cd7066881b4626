package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var ErrConfigExists = errors.New("config file already exists")

// template 是 sweep config init 写出的初始配置
func template() map[string]any {
	return map[string]any{
		"blob": map[string]any{
			"endpoint":          "",
			"region":            "us-east-1",
			"bucket":            "nextcloud",
			"access_key_id":     "",
			"secret_access_key": "",
			"path_style":        false,
		},
		"catalog": map[string]any{
			"driver":   "mysql",
			"host":     "localhost",
			"port":     3306,
			"user":     "nextcloud",
			"password": "",
			"name":     "nextcloud",
			"table":    "oc_filecache",
		},
		"sweep": map[string]any{
			"empty_folder_threshold": 200000,
			"workers":                4,
			"protect":                []string{},
		},
		"backup": map[string]any{
			"dir":    "sweep-backup",
			"format": "json",
		},
		"journal": map[string]any{
			"path": filepath.Join(".sweep", "journal.db"),
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// WriteTemplate 写出 TOML 配置模板；文件已存在且 force=false 时报错
func WriteTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// 0600：模板里会填密码
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(template()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}
