package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Printer  PrinterConfig  `yaml:"printer"`
	Label    LabelConfig    `yaml:"label"`
	Queue    QueueConfig    `yaml:"queue"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path       string `yaml:"path"`
	DishesPath string `yaml:"dishes_path"`
}

// PrinterConfig selects the delivery transport. Mode "raw" sends a TSPL
// command stream to IPAddress:Port, mode "spooler" hands a PNG to the host
// print queue named SpoolerName.
type PrinterConfig struct {
	Mode        string        `yaml:"mode"`
	IPAddress   string        `yaml:"ip_address"`
	Port        int           `yaml:"port"`
	SpoolerName string        `yaml:"spooler_name"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type LabelConfig struct {
	WidthMM         float64 `yaml:"width_mm"`
	HeightMM        float64 `yaml:"height_mm"`
	GapMM           float64 `yaml:"gap_mm"`
	DPI             int     `yaml:"dpi"`
	ShelfLifeHours  int     `yaml:"shelf_life_hours"`
	RasterWidthHint int     `yaml:"raster_width_hint"`
	PayloadCapBytes int     `yaml:"payload_cap_bytes"`
}

type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type WebhookConfig struct {
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	WorkerCount int           `yaml:"worker_count"`
	QueueSize   int           `yaml:"queue_size"`
}

// ArchiveConfig controls the retention sweep that moves finished jobs
// out of the live queue into monthly archive databases.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	RetentionDays int           `yaml:"retention_days"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:       "./data/labels.db",
			DishesPath: "./data/dishes_with_extras.sqlite",
		},
		Printer: PrinterConfig{
			Mode:        "raw",
			Port:        9100,
			SpoolerName: "XPrinter",
			SendTimeout: 5 * time.Second,
		},
		Label: LabelConfig{
			WidthMM:         58,
			HeightMM:        60,
			GapMM:           2,
			DPI:             203,
			ShelfLifeHours:  6,
			PayloadCapBytes: 5 * 1024,
		},
		Queue: QueueConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    10,
			MaxRetries:   3,
			RetryDelay:   5 * time.Second,
		},
		Webhooks: WebhookConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
			QueueSize:   100,
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			Path:          "./data/archive",
			RetentionDays: 30,
			SweepInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("LABELS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("LABELS_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("LABELS_DISHES_PATH"); v != "" {
		c.Database.DishesPath = v
	}

	if v := os.Getenv("LABELS_PRINTER_MODE"); v != "" {
		c.Printer.Mode = v
	}

	if v := os.Getenv("LABELS_PRINTER_IP"); v != "" {
		c.Printer.IPAddress = v
	}

	if v := os.Getenv("LABELS_PRINTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Printer.Port = port
		}
	}

	if v := os.Getenv("LABELS_SPOOLER_NAME"); v != "" {
		c.Printer.SpoolerName = v
	}

	if v := os.Getenv("LABELS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	switch c.Printer.Mode {
	case "raw":
		if c.Printer.IPAddress == "" {
			return fmt.Errorf("printer ip_address is required in raw mode")
		}
		if c.Printer.Port < 1 || c.Printer.Port > 65535 {
			return fmt.Errorf("printer port must be between 1 and 65535, got %d", c.Printer.Port)
		}
	case "spooler":
		if c.Printer.SpoolerName == "" {
			return fmt.Errorf("printer spooler_name is required in spooler mode")
		}
	default:
		return fmt.Errorf("invalid printer mode: %s (valid: raw, spooler)", c.Printer.Mode)
	}

	if c.Printer.SendTimeout <= 0 {
		return fmt.Errorf("printer send timeout must be positive")
	}

	if c.Label.WidthMM <= 0 || c.Label.HeightMM <= 0 {
		return fmt.Errorf("label dimensions must be positive, got %.1fx%.1f mm", c.Label.WidthMM, c.Label.HeightMM)
	}

	if c.Label.DPI != 203 && c.Label.DPI != 300 && c.Label.DPI != 600 {
		return fmt.Errorf("unsupported label DPI: %d (supported: 203, 300, 600)", c.Label.DPI)
	}

	if c.Label.ShelfLifeHours < 0 {
		return fmt.Errorf("shelf life hours must be non-negative")
	}

	if c.Label.PayloadCapBytes < 0 {
		return fmt.Errorf("payload cap must be non-negative")
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue poll interval must be positive")
	}

	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("queue batch size must be at least 1")
	}

	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Queue.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative")
	}

	if c.Archive.Enabled {
		if c.Archive.Path == "" {
			return fmt.Errorf("archive path is required when archiving is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			return fmt.Errorf("archive retention days must be at least 1, got %d", c.Archive.RetentionDays)
		}
		if c.Archive.SweepInterval <= 0 {
			return fmt.Errorf("archive sweep interval must be positive")
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
