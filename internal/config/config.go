package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "S3PRESIGN"

// Backends.
const (
	BackendAWS   = "aws"
	BackendMinIO = "minio"
)

// Config is the root configuration.
type Config struct {
	// Env selects the log format: prod or production logs JSON
	Env    string       `mapstructure:"env"`
	Store  StoreConfig  `mapstructure:"store"`
	Upload UploadConfig `mapstructure:"upload"`
	Log    LogConfig    `mapstructure:"log"`
}

// StoreConfig selects and connects to the object store.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=aws minio"`

	// Endpoint is a URL for aws and host[:port] for minio
	Endpoint        string `mapstructure:"endpoint" validate:"required_if=Backend minio"`
	Region          string `mapstructure:"region" validate:"required"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	Secure          bool   `mapstructure:"secure"`
}

// UploadConfig holds transfer defaults.
type UploadConfig struct {
	Concurrency     int           `mapstructure:"concurrency" validate:"min=1"`
	PartSize        int64         `mapstructure:"part_size" validate:"min=1"`
	PartExpiry      time.Duration `mapstructure:"part_expiry" validate:"min=1s,max=168h"`
	MaxPartAttempts int           `mapstructure:"max_part_attempts" validate:"min=1"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// LogConfig holds logging configuration. An empty level picks one from Env.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// IsProd reports whether Env names a production environment.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"backend":       "store.backend",
	"endpoint":      "store.endpoint",
	"region":        "store.region",
	"path-style":    "store.path_style",
	"secure":        "store.secure",
	"concurrency":   "upload.concurrency",
	"part-expiry":   "upload.part_expiry",
	"part-attempts": "upload.max_part_attempts",
	"timeout":       "upload.timeout",
	"log-level":     "log.level",
}

// bindFlags binds explicitly set flags that have a configuration key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}
		if f.Changed && v.IsSet(viperKey) {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no file sets them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("store.backend", BackendAWS)
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("store.path_style", false)
	v.SetDefault("store.access_key_id", "")
	v.SetDefault("store.secret_access_key", "")
	v.SetDefault("store.secure", true)

	v.SetDefault("upload.concurrency", 5)
	v.SetDefault("upload.part_size", 8*1024*1024)
	v.SetDefault("upload.part_expiry", 15*time.Minute)
	v.SetDefault("upload.max_part_attempts", 3)
	v.SetDefault("upload.timeout", 0)

	v.SetDefault("log.level", "")
}

// Load reads configuration and returns a validated Config.
// Later configFiles override earlier ones. When none are given, an optional
// ./s3presign.yaml is read. flags may be nil.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFiles[0], err)
		}
		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merge config %s: %w", cf, err)
			}
		}
	} else {
		v.SetConfigName("s3presign")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
