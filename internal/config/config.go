package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Tapd    TapdConfig    `mapstructure:"tapd"`
	Feishu  FeishuConfig  `mapstructure:"feishu"`
	SMTP    SMTPConfig    `mapstructure:"smtp"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TapdConfig holds TAPD API configuration
type TapdConfig struct {
	WorkspaceID string        `mapstructure:"workspace_id"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FeishuConfig holds Feishu Open API configuration
type FeishuConfig struct {
	AppID     string        `mapstructure:"app_id"`
	AppSecret string        `mapstructure:"app_secret"`
	BaseToken string        `mapstructure:"base_token"`
	TableID   string        `mapstructure:"table_id"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SMTPConfig holds the outbound mail transport configuration
type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Secure    bool   `mapstructure:"secure"`
	User      string `mapstructure:"user"`
	Pass      string `mapstructure:"pass"`
	FromEmail string `mapstructure:"from_email"`
}

// WebhookConfig holds inbound webhook configuration
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// EmailConfig holds the per-workspace email routing table
type EmailConfig struct {
	Projects map[string]ProjectEmail `mapstructure:"projects"`
}

// ProjectEmail describes where notifications for one workspace go
type ProjectEmail struct {
	ProjectName      string `mapstructure:"project_name" json:"projectName"`
	ResponsibleEmail string `mapstructure:"responsible_email" json:"responsibleEmail"`
	ResponsibleName  string `mapstructure:"responsible_name" json:"responsibleName,omitempty"`
	EmailEnabled     bool   `mapstructure:"email_enabled" json:"emailEnabled"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error; credentials normally arrive
// through the environment (optionally via a .env file).
func Load(configPath string) (*Config, error) {
	// Populate the environment from .env before viper reads it
	_ = gotenv.Load()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// TAPD defaults
	viper.SetDefault("tapd.base_url", "https://api.tapd.cn")
	viper.SetDefault("tapd.timeout", 30*time.Second)

	// Feishu defaults
	viper.SetDefault("feishu.base_url", "https://open.feishu.cn/open-apis")
	viper.SetDefault("feishu.timeout", 30*time.Second)

	// SMTP defaults
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.secure", false)

	// Webhook defaults
	viper.SetDefault("webhook.secret", "default-secret")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("tapd.workspace_id", "TAPD_WORKSPACE_ID")
	viper.BindEnv("tapd.api_key", "TAPD_API_KEY")
	viper.BindEnv("feishu.app_id", "FEISHU_APP_ID")
	viper.BindEnv("feishu.app_secret", "FEISHU_APP_SECRET")
	viper.BindEnv("feishu.base_token", "FEISHU_BASE_TOKEN")
	viper.BindEnv("feishu.table_id", "FEISHU_TABLE_ID")
	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.secure", "SMTP_SECURE")
	viper.BindEnv("smtp.user", "SMTP_USER")
	viper.BindEnv("smtp.pass", "SMTP_PASS")
	viper.BindEnv("smtp.from_email", "SMTP_FROM_EMAIL")
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.output_path", "LOG_FILE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// TAPD credentials
	if c.Tapd.WorkspaceID == "" {
		return fmt.Errorf("tapd.workspace_id is required")
	}
	if c.Tapd.APIKey == "" {
		return fmt.Errorf("tapd.api_key is required")
	}

	// Feishu credentials
	if c.Feishu.AppID == "" {
		return fmt.Errorf("feishu.app_id is required")
	}
	if c.Feishu.AppSecret == "" {
		return fmt.Errorf("feishu.app_secret is required")
	}
	if c.Feishu.BaseToken == "" {
		return fmt.Errorf("feishu.base_token is required")
	}
	if c.Feishu.TableID == "" {
		return fmt.Errorf("feishu.table_id is required")
	}

	// SMTP transport
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.User == "" {
		return fmt.Errorf("smtp.user is required")
	}
	if c.SMTP.Pass == "" {
		return fmt.Errorf("smtp.pass is required")
	}
	if c.SMTP.FromEmail == "" {
		return fmt.Errorf("smtp.from_email is required")
	}

	return nil
}
