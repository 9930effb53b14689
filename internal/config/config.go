package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"prod"`
	Controller ControllerConfig `yaml:"controller"`
	Store      StoreConfig      `yaml:"store"`
	Collection CollectionConfig `yaml:"collection"`
	Retry      RetryConfig      `yaml:"retry"`
	Buffer     BufferConfig     `yaml:"buffer"`
	Health     HealthConfig     `yaml:"health"`
	Log        LogConfig        `yaml:"log"`
}

type StoreConfig struct {
	URL          string        `yaml:"url" env:"INFLUX_URL" env-required:"true"`
	Org          string        `yaml:"org" env:"INFLUX_ORG" env-required:"true"`
	Bucket       string        `yaml:"bucket" env:"INFLUX_BUCKET" env-required:"true"`
	Token        string        `yaml:"token" env:"INFLUX_TOKEN" env-required:"true"`
	Timeout      time.Duration `yaml:"timeout" env-default:"30s"`
	BatchSize    int           `yaml:"batch_size" env-default:"5000"`
	CreateBucket bool          `yaml:"create_bucket" env-default:"false"`
	VerifySSL    bool          `yaml:"verify_ssl" env-default:"true"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"1s"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"30s"`
	Multiplier   float64       `yaml:"multiplier" env-default:"2"`
}

type BufferConfig struct {
	Enabled bool          `yaml:"enabled" env-default:"false"`
	Path    string        `yaml:"path" env-default:"/var/lib/wificonnector/spool.db"`
	MaxAge  time.Duration `yaml:"max_age" env-default:"24h"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"true"`
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Controller.PageSize <= 0 {
		errs = append(errs, errors.New("controller.page_size must be positive"))
	}
	if c.Controller.MaxPages <= 0 {
		errs = append(errs, errors.New("controller.max_pages must be positive"))
	}
	switch c.Controller.QueryMethod {
	case "GET", "POST":
	default:
		errs = append(errs, fmt.Errorf("controller.query_method must be GET or POST, got %q", c.Controller.QueryMethod))
	}
	if c.Collection.Interval <= 0 {
		errs = append(errs, errors.New("collection.interval must be positive"))
	}
	if c.Collection.TopHosts < 0 {
		errs = append(errs, errors.New("collection.top_hosts must not be negative"))
	}
	if c.Store.BatchSize <= 0 {
		errs = append(errs, errors.New("store.batch_size must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}

	return errors.Join(errs...)
}

func (c *ControllerConfig) LoginVersion() string {
	if c.LoginAPIVersion != "" {
		return c.LoginAPIVersion
	}
	return c.APIVersion
}
