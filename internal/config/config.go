package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ATMEEX_DB_PATH.
const EnvPrefix = "ATMEEX"

type Config struct {
	Port     string       `mapstructure:"port"`
	LogLevel string       `mapstructure:"log_level"`
	DB       DBConfig     `mapstructure:"db"`
	Auth     AuthConfig   `mapstructure:"auth"`
	Atmeex   AtmeexConfig `mapstructure:"atmeex"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`
	Blob     BlobConfig   `mapstructure:"blob"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type AtmeexConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// MQTTConfig enables the state publisher when Broker is set.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// BlobConfig enables the credential mirror when Endpoint is set.
type BlobConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("atmeex.base_url", "https://api.iot.atmeex.com")
	v.SetDefault("atmeex.request_timeout", 15*time.Second)
	v.SetDefault("atmeex.poll_interval", 60*time.Second)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "atmeex-cloud")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "atmeex")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.prefix", "atmeex/entries")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.use_ssl", true)
}

// Load reads configs/config.yml (or the file at path, when given) and applies
// ATMEEX_* environment overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
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

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("config: port is required")
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return errors.New("config: db.path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Atmeex.PollInterval < time.Second {
		return fmt.Errorf("config: atmeex.poll_interval must be at least 1s, got %s", c.Atmeex.PollInterval)
	}
	if c.Atmeex.RequestTimeout <= 0 {
		return fmt.Errorf("config: atmeex.request_timeout must be positive, got %s", c.Atmeex.RequestTimeout)
	}
	if c.Blob.Endpoint != "" && c.Blob.Bucket == "" {
		return errors.New("config: blob.bucket is required when blob.endpoint is set")
	}
	return nil
}
