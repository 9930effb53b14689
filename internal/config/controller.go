package config

import "time"

type ControllerConfig struct {
	BaseURL         string        `yaml:"base_url" env:"CONTROLLER_URL" env-required:"true"`
	Username        string        `yaml:"username" env:"CONTROLLER_USERNAME" env-required:"true"`
	Password        string        `yaml:"password" env:"CONTROLLER_PASSWORD" env-required:"true"`
	APIVersion      string        `yaml:"api_version" env-default:"v9_1"`
	LoginAPIVersion string        `yaml:"login_api_version"`
	QueryMethod     string        `yaml:"query_method" env-default:"GET"`
	PageSize        int           `yaml:"page_size" env-default:"100"`
	MaxPages        int           `yaml:"max_pages" env-default:"1000"`
	Timeout         time.Duration `yaml:"timeout" env-default:"30s"`
	VerifySSL       bool          `yaml:"verify_ssl" env:"CONTROLLER_VERIFY_SSL" env-default:"false"`
}

type CollectionConfig struct {
	Interval     time.Duration `yaml:"interval" env-default:"60s"`
	RunOnce      bool          `yaml:"run_once" env-default:"false"`
	TopHosts     int           `yaml:"top_hosts" env-default:"10"`
	SLAThreshold float64       `yaml:"sla_threshold" env-default:"80"`
}
