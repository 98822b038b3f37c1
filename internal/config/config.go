package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. set_config on the API
// replaces the whole document, so every field lives here.
type Config struct {
	Horizon       Horizon       `mapstructure:"horizon" yaml:"horizon" json:"horizon"`
	Harvest       Harvest       `mapstructure:"harvest" yaml:"harvest" json:"harvest"`
	Notifications Notifications `mapstructure:"notifications" yaml:"notifications" json:"notifications"`
	Logger        Logger        `mapstructure:"logger" yaml:"logger" json:"logger"`
	Server        Server        `mapstructure:"server" yaml:"server" json:"server"`
	Database      Database      `mapstructure:"database" yaml:"database" json:"database"`
}

// Horizon holds the configuration for the chain API client.
type Horizon struct {
	Network        string  `mapstructure:"network" yaml:"network" json:"network"` // "testnet" or "public"
	URL            string  `mapstructure:"url" yaml:"url" json:"url"`
	FriendbotURL   string  `mapstructure:"friendbot_url" yaml:"friendbot_url" json:"friendbot_url"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// Asset is the per-asset harvest configuration.
type Asset struct {
	Name           string  `mapstructure:"name" yaml:"name" json:"name"`
	ContractID     string  `mapstructure:"contract_id" yaml:"contract_id" json:"contract_id"`
	ThresholdPrice float64 `mapstructure:"threshold_price" yaml:"threshold_price" json:"threshold_price"`
	Strategy       string  `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	Allocation     float64 `mapstructure:"allocation" yaml:"allocation" json:"allocation"`
	MaxVolatility  float64 `mapstructure:"max_volatility" yaml:"max_volatility,omitempty" json:"max_volatility,omitempty"`
}

// MaxVolatilityOrDefault returns the volatility ceiling for the asset,
// defaulting to 0.5 (50% annualized) when unset.
func (a Asset) MaxVolatilityOrDefault() float64 {
	if a.MaxVolatility > 0 {
		return a.MaxVolatility
	}
	return 0.5
}

// Harvest holds the configuration for the harvest control loop.
type Harvest struct {
	Assets              []Asset `mapstructure:"assets" yaml:"assets" json:"assets"`
	ScheduleInterval    int     `mapstructure:"schedule_interval" yaml:"schedule_interval" json:"schedule_interval"`          // seconds
	PortfolioInterval   int     `mapstructure:"portfolio_interval" yaml:"portfolio_interval" json:"portfolio_interval"`       // seconds
	HealthCheckInterval int     `mapstructure:"health_check_interval" yaml:"health_check_interval" json:"health_check_interval"` // seconds
	MinBalance          float64 `mapstructure:"min_balance" yaml:"min_balance" json:"min_balance"`
	SlippageTolerance   float64 `mapstructure:"slippage_tolerance" yaml:"slippage_tolerance" json:"slippage_tolerance"`
	MaxRetries          int     `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	MaxVolatility       float64 `mapstructure:"max_volatility" yaml:"max_volatility" json:"max_volatility"`
	EncryptedPrivateKey string  `mapstructure:"encrypted_private_key" yaml:"encrypted_private_key" json:"encrypted_private_key"`
}

// Notifications holds delivery-channel toggles and their credentials.
type Notifications struct {
	Email          bool   `mapstructure:"email" yaml:"email" json:"email"`
	Telegram       bool   `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
	TelegramToken  string `mapstructure:"telegram_token" yaml:"telegram_token" json:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id" yaml:"telegram_chat_id" json:"telegram_chat_id"`
	SMTPHost       string `mapstructure:"smtp_host" yaml:"smtp_host" json:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port" yaml:"smtp_port" json:"smtp_port"`
	EmailFrom      string `mapstructure:"email_from" yaml:"email_from" json:"email_from"`
	EmailTo        string `mapstructure:"email_to" yaml:"email_to" json:"email_to"`
}

// Server holds the configuration for the dashboard API server.
type Server struct {
	Port int `mapstructure:"port" yaml:"port" json:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Default returns the configuration the bot regenerates when the persisted
// file is absent or malformed.
func Default() Config {
	return Config{
		Horizon: Horizon{
			Network:        "testnet",
			URL:            "https://horizon-testnet.stellar.org",
			FriendbotURL:   "https://friendbot.stellar.org",
			RateLimit:      20,
			RateLimitBurst: 5,
		},
		Harvest: Harvest{
			Assets: []Asset{
				{
					Name:           "KALE",
					ContractID:     "CA3D5KRYM6CB7OWQ6TWYRR3Z4T7GNZLKERYNZGGA5SOAOPIFY6YQGAXE",
					ThresholdPrice: 1.05,
					Strategy:       "simple_threshold",
					Allocation:     0.5,
				},
			},
			ScheduleInterval:    30,
			PortfolioInterval:   300,
			HealthCheckInterval: 300,
			MinBalance:          2.0,
			SlippageTolerance:   0.01,
			MaxRetries:          3,
			MaxVolatility:       0.5,
		},
		Notifications: Notifications{},
		Logger:        Logger{Level: "info", Format: "console"},
		Server:        Server{Port: 5000},
		Database:      Database{DSN: "harvest_bot.db"},
	}
}

// LoadConfig reads configuration from path/config.yml, with environment
// variable overrides. A missing or malformed file is replaced by the defaults
// and the regenerated document is written back to disk.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		cfg := Default()
		if saveErr := SaveConfig(cfg, path); saveErr != nil {
			return cfg, fmt.Errorf("failed to regenerate default config: %w", saveErr)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		cfg = Default()
		if saveErr := SaveConfig(cfg, path); saveErr != nil {
			return cfg, fmt.Errorf("failed to regenerate default config: %w", saveErr)
		}
		return cfg, nil
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("horizon.network", def.Horizon.Network)
	v.SetDefault("horizon.url", def.Horizon.URL)
	v.SetDefault("horizon.friendbot_url", def.Horizon.FriendbotURL)
	v.SetDefault("horizon.rate_limit", def.Horizon.RateLimit)
	v.SetDefault("horizon.rate_limit_burst", def.Horizon.RateLimitBurst)
	v.SetDefault("harvest.schedule_interval", def.Harvest.ScheduleInterval)
	v.SetDefault("harvest.portfolio_interval", def.Harvest.PortfolioInterval)
	v.SetDefault("harvest.health_check_interval", def.Harvest.HealthCheckInterval)
	v.SetDefault("harvest.min_balance", def.Harvest.MinBalance)
	v.SetDefault("harvest.slippage_tolerance", def.Harvest.SlippageTolerance)
	v.SetDefault("harvest.max_retries", def.Harvest.MaxRetries)
	v.SetDefault("harvest.max_volatility", def.Harvest.MaxVolatility)
	v.SetDefault("logger.level", def.Logger.Level)
	v.SetDefault("logger.format", def.Logger.Format)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("database.dsn", def.Database.DSN)
}

// SaveConfig writes the full configuration document to path/config.yml.
func SaveConfig(cfg Config, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	file := filepath.Join(path, "config.yml")
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsComplete reports whether the fields required to start the bot are present:
// a contract identifier and an encrypted private key.
func (c Config) IsComplete() bool {
	if c.Harvest.EncryptedPrivateKey == "" {
		return false
	}
	for _, a := range c.Harvest.Assets {
		if a.ContractID != "" {
			return true
		}
	}
	return false
}

// AssetByName looks up an asset configuration by its name.
func (c Config) AssetByName(name string) (Asset, bool) {
	for _, a := range c.Harvest.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}
