package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Storage struct {
		// Root contains the uploads/ and exports/ subdirectories,
		// created on startup if absent.
		Root string `yaml:"root"`
		// InboxDir, when set, is watched for dropped files which are
		// submitted as conversion tasks with the default output format.
		InboxDir string `yaml:"inbox_dir"`
	} `yaml:"storage"`

	Logging struct {
		Dir    string `yaml:"dir"`
		AppLog string `yaml:"app_log"`
	} `yaml:"logging"`

	Converter struct {
		// PandocBin is the pandoc binary or wrapper command.
		PandocBin string        `yaml:"pandoc_bin"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"converter"`

	Scheduler struct {
		MaxRunning   int           `yaml:"max_running"`
		ScanInterval time.Duration `yaml:"scan_interval"`
	} `yaml:"scheduler"`
}

// Load loads configuration from a YAML file. A missing file yields a
// default configuration rather than an error, so the server is runnable
// without any config on disk.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Set defaults if not specified
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/docconvert.db"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./data/media"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "./data/logs"
	}
	if cfg.Logging.AppLog == "" {
		cfg.Logging.AppLog = cfg.Logging.Dir + "/app.log"
	}
	if cfg.Converter.PandocBin == "" {
		cfg.Converter.PandocBin = "pandoc"
	}
	if cfg.Converter.Timeout == 0 {
		cfg.Converter.Timeout = 60 * time.Second
	}
	if cfg.Scheduler.MaxRunning == 0 {
		cfg.Scheduler.MaxRunning = 4
	}
	if cfg.Scheduler.ScanInterval == 0 {
		cfg.Scheduler.ScanInterval = 5 * time.Second
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides
func LoadFromEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if set
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if root := os.Getenv("STORAGE_ROOT"); root != "" {
		cfg.Storage.Root = root
	}
	if inbox := os.Getenv("INBOX_DIR"); inbox != "" {
		cfg.Storage.InboxDir = inbox
	}
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		cfg.Logging.Dir = logDir
		cfg.Logging.AppLog = logDir + "/app.log"
	}
	if bin := os.Getenv("PANDOC_BIN"); bin != "" {
		cfg.Converter.PandocBin = bin
	}
	if maxRunning := os.Getenv("MAX_RUNNING"); maxRunning != "" {
		if val, err := strconv.Atoi(maxRunning); err == nil && val > 0 {
			cfg.Scheduler.MaxRunning = val
		}
	}

	return cfg, nil
}
