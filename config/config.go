package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/s3put"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "S3PUT"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for s3put.
type Config struct {
	S3     S3Config     `mapstructure:"s3" yaml:"s3"`
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// S3Config holds the endpoint, bucket and credentials.
// Bucket and keys are checked by s3put.New, not here, so that a partial
// configuration can still be loaded and shown.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint" validate:"required"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	AllowHTTP bool   `mapstructure:"allow_http" yaml:"allow_http,omitempty"`
}

// UploadConfig holds per-object defaults.
type UploadConfig struct {
	ACL         string `mapstructure:"acl" yaml:"acl" validate:"required,oneof=private public-read public-read-write authenticated-read aws-exec-read bucket-owner-read bucket-owner-full-control"`
	ContentType string `mapstructure:"content_type" yaml:"content_type" validate:"required"`
}

// HTTPConfig holds transport settings. A zero timeout disables it.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"endpoint":     "s3.endpoint",
	"region":       "s3.region",
	"bucket":       "s3.bucket",
	"access-key":   "s3.access_key",
	"secret-key":   "s3.secret_key",
	"allow-http":   "s3.allow_http",
	"acl":          "upload.acl",
	"content-type": "upload.content_type",
	"timeout":      "http.timeout",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", s3put.DefaultEndpoint)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.allow_http", false)

	v.SetDefault("upload.acl", string(s3put.DefaultACL))
	v.SetDefault("upload.content_type", s3put.DefaultContentType)

	v.SetDefault("http.timeout", s3put.DefaultTimeout)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFiles[0], err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merge config file %s: %w", cf, err)
			}
		}
	} else {
		v.SetConfigName("config")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Uploader returns the connection settings for s3put.New.
func (c *Config) Uploader() s3put.Config {
	return s3put.Config{
		Endpoint:        c.S3.Endpoint,
		AccessKeyID:     c.S3.AccessKey,
		SecretAccessKey: c.S3.SecretKey,
		Bucket:          c.S3.Bucket,
		Region:          c.S3.Region,
	}
}

// UploaderOptions returns the s3put options implied by the transport settings.
func (c *Config) UploaderOptions() []s3put.Option {
	opts := []s3put.Option{s3put.WithTimeout(c.HTTP.Timeout)}
	if c.S3.AllowHTTP {
		opts = append(opts, s3put.WithInsecureHTTP())
	}
	return opts
}

// Redacted returns a copy of c with the secret key masked.
func (c *Config) Redacted() Config {
	out := *c
	out.S3.SecretKey = MaskSecret(c.S3.SecretKey)
	return out
}

// MaskSecret masks a secret string, showing only the first and last 4 characters.
// Short secrets are fully masked.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// Save writes c as YAML to path, creating the parent directory.
// The file holds credentials, so it is only readable by the owner.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns ~/.s3put/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".s3put", "config.yaml"), nil
}
