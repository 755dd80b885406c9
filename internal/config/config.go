package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds backing store configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds channel credentials
type LarkConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	VerifyToken string `mapstructure:"verify_token"`
	EncryptKey  string `mapstructure:"encrypt_key"`
	WebhookPath string `mapstructure:"webhook_path"`
}

// LedgerConfig identifies the ledger workbook and tab
type LedgerConfig struct {
	WorkbookPath string `mapstructure:"workbook_path"`
	Tab          string `mapstructure:"tab"`
}

// WorkflowConfig holds the business-rule knobs
type WorkflowConfig struct {
	// ApprovalThreshold is the local-equivalent value at which an
	// outflow requires admin sign-off
	ApprovalThreshold float64       `mapstructure:"approval_threshold"`
	ApprovalTTL       time.Duration `mapstructure:"approval_ttl"`
	SuppressionWindow time.Duration `mapstructure:"suppression_window"`
	RetentionWindow   time.Duration `mapstructure:"retention_window"`
	SessionMaxIdle    time.Duration `mapstructure:"session_max_idle"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SeedAdminIDs      []int64       `mapstructure:"seed_admin_ids"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A local .env feeds the env overrides below; absence is fine.
	_ = gotenv.Load()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
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
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/intakebot.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Channel defaults
	viper.SetDefault("lark.webhook_path", "/webhook/events")

	// Ledger defaults
	viper.SetDefault("ledger.workbook_path", "data/ledger.xlsx")
	viper.SetDefault("ledger.tab", "КиримЧиким")

	// Workflow defaults
	viper.SetDefault("workflow.approval_threshold", 10_000_000.0)
	viper.SetDefault("workflow.approval_ttl", 24*time.Hour)
	viper.SetDefault("workflow.suppression_window", 30*time.Second)
	viper.SetDefault("workflow.retention_window", 300*time.Second)
	viper.SetDefault("workflow.session_max_idle", 12*time.Hour)
	viper.SetDefault("workflow.sweep_interval", 10*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("lark.app_id", "LARK_APP_ID")
	viper.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	viper.BindEnv("lark.verify_token", "LARK_VERIFY_TOKEN")
	viper.BindEnv("lark.encrypt_key", "LARK_ENCRYPT_KEY")
	viper.BindEnv("ledger.workbook_path", "LEDGER_WORKBOOK_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	if c.Ledger.WorkbookPath == "" {
		return fmt.Errorf("ledger.workbook_path is required")
	}
	if c.Ledger.Tab == "" {
		return fmt.Errorf("ledger.tab is required")
	}
	if c.Workflow.ApprovalThreshold <= 0 {
		return fmt.Errorf("workflow.approval_threshold must be positive")
	}
	if c.Workflow.SuppressionWindow >= c.Workflow.RetentionWindow {
		return fmt.Errorf("workflow.retention_window must exceed the suppression window")
	}
	return nil
}
