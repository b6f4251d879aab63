package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Defaults applied before the file and environment are read.
const (
	DefaultKeepLast        = 5
	DefaultStorageTimeout  = 30 * time.Second
	DefaultTelegramTimeout = 30 * time.Second
	DefaultRetryMax        = 2
	DefaultTelegramAPIBase = "https://api.telegram.org"
)

// Config represents the top-level YAML configuration file.
type Config struct {
	Include   []string        `mapstructure:"include"   yaml:"include,omitempty"`
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Telegram  TelegramConfig  `mapstructure:"telegram"  yaml:"telegram"`
}

// BackupConfig describes what to snapshot and where scratch space lives.
type BackupConfig struct {
	SourceDir string `mapstructure:"source_dir" yaml:"source_dir"`
	WorkRoot  string `mapstructure:"work_root"  yaml:"work_root,omitempty"`
}

// StorageConfig holds the WebDAV collection the artifacts are stored in.
// Username and password arrive here already resolved.
type StorageConfig struct {
	URL      string        `mapstructure:"url"       yaml:"url"`
	Username string        `mapstructure:"username"  yaml:"username,omitempty"`
	Password string        `mapstructure:"password"  yaml:"password,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout"   yaml:"timeout"`
	RetryMax int           `mapstructure:"retry_max" yaml:"retry_max"`
}

// RetentionConfig specifies how many remote artifacts to keep.
type RetentionConfig struct {
	KeepLast int `mapstructure:"keep_last" yaml:"keep_last"`
}

// TelegramConfig configures the run notification. Leaving bot_token or
// chat_id empty disables notification entirely.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token" yaml:"bot_token,omitempty"`
	ChatID   string        `mapstructure:"chat_id"   yaml:"chat_id,omitempty"`
	APIBase  string        `mapstructure:"api_base"  yaml:"api_base,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout"   yaml:"timeout"`
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, applies QLBACK_* environment overrides,
// and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("QLBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults register every key, which also keeps env-only overrides
	// visible to Unmarshal.
	v.SetDefault("backup.source_dir", "")
	v.SetDefault("backup.work_root", "")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.username", "")
	v.SetDefault("storage.password", "")
	v.SetDefault("storage.timeout", DefaultStorageTimeout)
	v.SetDefault("storage.retry_max", DefaultRetryMax)
	v.SetDefault("retention.keep_last", DefaultKeepLast)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_base", DefaultTelegramAPIBase)
	v.SetDefault("telegram.timeout", DefaultTelegramTimeout)

	// Read base configuration
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	// Unmarshal into the Config struct
	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return nil
}

// Validate checks for values the pipeline cannot run without. Telegram
// settings are optional; an incomplete pair only disables notification.
func (c *Config) Validate() error {
	if c.Backup.SourceDir == "" {
		return fmt.Errorf("%w: backup.source_dir is required", ErrValidateConfig)
	}
	if c.Storage.URL == "" {
		return fmt.Errorf("%w: storage.url is required", ErrValidateConfig)
	}
	u, err := url.Parse(c.Storage.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: storage.url %q is not an absolute URL", ErrValidateConfig, c.Storage.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: storage.url scheme %q is not http or https", ErrValidateConfig, u.Scheme)
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("%w: storage.timeout must be positive", ErrValidateConfig)
	}
	if c.Storage.RetryMax < 0 {
		return fmt.Errorf("%w: storage.retry_max must not be negative", ErrValidateConfig)
	}
	if c.Retention.KeepLast < 1 {
		return fmt.Errorf("%w: retention.keep_last must be at least 1, got %d", ErrValidateConfig, c.Retention.KeepLast)
	}
	if c.Telegram.Timeout <= 0 {
		return fmt.Errorf("%w: telegram.timeout must be positive", ErrValidateConfig)
	}
	return nil
}
