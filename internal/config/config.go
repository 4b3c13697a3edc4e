package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Company struct {
	Slug string `yaml:"slug" json:"slug"` // board identifier (google: careers site key, lever: postings slug, workday: full board URL)
	Name string `yaml:"name" json:"name"` // display name; doubles as the company tag in the store
}

type SourceCfg struct {
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	Companies []Company `yaml:"companies" json:"companies"`
}

type GoogleCfg struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	Queries       []string `yaml:"queries" json:"queries"`
	Location      string   `yaml:"location" json:"location"`
	MaxPages      int      `yaml:"max_pages" json:"max_pages"`
	IncludeTitles []string `yaml:"include_titles" json:"include_titles"`
	ExcludeTitles []string `yaml:"exclude_titles" json:"exclude_titles"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Database struct {
		// DSN: postgres://... for lib/pq, otherwise a sqlite file path.
		// A literal ${password} is expanded from the OS keyring.
		DSN string `yaml:"dsn" json:"dsn"`
	} `yaml:"database" json:"database"`

	Scrape struct {
		Schedule       string  `yaml:"schedule" json:"schedule"` // cron spec; empty disables the scheduler
		Mode           string  `yaml:"mode" json:"mode"`         // incremental | full
		DetailWorkers  int     `yaml:"detail_workers" json:"detail_workers"`
		DelayMinMS     int     `yaml:"delay_min_ms" json:"delay_min_ms"`
		DelayMaxMS     int     `yaml:"delay_max_ms" json:"delay_max_ms"`
		MaxRetries     int     `yaml:"max_retries" json:"max_retries"`
		RetryMinWaitS  int     `yaml:"retry_min_wait_s" json:"retry_min_wait_s"`
		RetryMaxWaitS  int     `yaml:"retry_max_wait_s" json:"retry_max_wait_s"`
		RunTimeoutMin  int     `yaml:"run_timeout_min" json:"run_timeout_min"`
		MissThreshold  int     `yaml:"miss_threshold" json:"miss_threshold"`
		BatchSize      int     `yaml:"batch_size" json:"batch_size"`
		HostReqPerSec  float64 `yaml:"host_req_per_sec" json:"host_req_per_sec"`
		HostBurst      int     `yaml:"host_burst" json:"host_burst"`
	} `yaml:"scrape" json:"scrape"`

	Sources struct {
		Google     GoogleCfg `yaml:"google" json:"google"`
		Greenhouse SourceCfg `yaml:"greenhouse" json:"greenhouse"`
		Lever      SourceCfg `yaml:"lever" json:"lever"`
		Ashby      SourceCfg `yaml:"ashby" json:"ashby"`
		Workday    SourceCfg `yaml:"workday" json:"workday"`
	} `yaml:"sources" json:"sources"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38472
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "joblens.db"
	}
	s := &cfg.Scrape
	if s.Mode == "" {
		s.Mode = "incremental"
	}
	if s.DetailWorkers <= 0 {
		s.DetailWorkers = 4
	}
	if s.DelayMinMS <= 0 {
		s.DelayMinMS = 2000
	}
	if s.DelayMaxMS <= 0 {
		s.DelayMaxMS = 5000
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 3
	}
	if s.RetryMinWaitS <= 0 {
		s.RetryMinWaitS = 4
	}
	if s.RetryMaxWaitS <= 0 {
		s.RetryMaxWaitS = 60
	}
	if s.RunTimeoutMin <= 0 {
		s.RunTimeoutMin = 30
	}
	if s.MissThreshold <= 0 {
		s.MissThreshold = 2
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 50
	}
	if s.HostReqPerSec <= 0 {
		s.HostReqPerSec = 1.0
	}
	if s.HostBurst <= 0 {
		s.HostBurst = 2
	}
	if cfg.Sources.Google.MaxPages <= 0 {
		cfg.Sources.Google.MaxPages = 50
	}
}

// applyEnv lets deployments override the DSN without editing the yaml.
// A .env next to the working directory is honored the same way.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()
	if v := os.Getenv("JOBLENS_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("JOBLENS_DATA_DIR"); v != "" {
		cfg.App.DataDir = v
	}
}
