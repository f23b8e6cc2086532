package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Accounts   []AccountConfig  `mapstructure:"accounts"`
	AI         AIConfig         `mapstructure:"ai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Email      EmailConfig      `mapstructure:"email"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type AccountConfig struct {
	ID            string `mapstructure:"id"`
	Token         string `mapstructure:"token"`
	MonitorActive bool   `mapstructure:"monitor_active"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	// VisionModel handles image-button analysis; falls back to Model.
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	File  FileStorage `mapstructure:"file"`
	Redis RedisConfig `mapstructure:"redis"`
}

type FileStorage struct {
	MonitorsPath  string `mapstructure:"monitors_path"`
	ScheduledPath string `mapstructure:"scheduled_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	From     string   `mapstructure:"from"`
	Password string   `mapstructure:"password"`
	To       []string `mapstructure:"to"`
}

type DispatchConfig struct {
	// DedupLimit caps the processed-message set before eviction kicks in.
	DedupLimit     int    `mapstructure:"dedup_limit"`
	DownloadFolder string `mapstructure:"download_folder"`
	WorkerPoolSize int    `mapstructure:"worker_pool_size"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MessagesPerMinute int  `mapstructure:"messages_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.SetEnvPrefix("")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("storage.redis.addr", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")
	viper.BindEnv("email.smtp_host", "SMTP_HOST")
	viper.BindEnv("email.smtp_port", "SMTP_PORT")
	viper.BindEnv("email.from", "EMAIL_FROM")
	viper.BindEnv("email.password", "EMAIL_PASSWORD")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Dispatch.DedupLimit == 0 {
		cfg.Dispatch.DedupLimit = 10000
	}
	if cfg.Dispatch.DownloadFolder == "" {
		cfg.Dispatch.DownloadFolder = "downloads"
	}
	if cfg.Dispatch.WorkerPoolSize == 0 {
		cfg.Dispatch.WorkerPoolSize = 8
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 2 * time.Minute
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "file"
	}
	if cfg.Storage.File.MonitorsPath == "" {
		cfg.Storage.File.MonitorsPath = "data/monitor_configs.json"
	}
	if cfg.Storage.File.ScheduledPath == "" {
		cfg.Storage.File.ScheduledPath = "data/scheduled_messages.json"
	}
	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = "en"
	}
	if len(cfg.I18n.Languages) == 0 {
		cfg.I18n.Languages = []string{"en"}
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for i, acct := range cfg.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("account %d: id is required", i)
		}
		if acct.Token == "" {
			return fmt.Errorf("account %q: token is required", acct.ID)
		}
	}
	if cfg.Email.Enabled && (cfg.Email.From == "" || cfg.Email.SMTPHost == "") {
		return fmt.Errorf("email notification enabled but smtp_host/from missing")
	}
	return nil
}
