package utils

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Crypto   CryptoConfig
	JWT      JWTConfig
	Stripe   StripeConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	FrontendURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

// CryptoConfig feeds the PII envelope. Secret and Salt are mandatory;
// startup must fail without them.
type CryptoConfig struct {
	Secret     string
	Salt       string
	Iterations int
}

type JWTConfig struct {
	Secret string
}

type StripeConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	TimeoutSecs   int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("PII_KDF_ITERATIONS", 100000)
	viper.SetDefault("STRIPE_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("STRIPE_TIMEOUT_SECS", 10)
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:        viper.GetString("APP_NAME"),
			Port:        viper.GetString("PORT"),
			Debug:       viper.GetBool("DEBUG"),
			LogPath:     viper.GetString("LOG_PATH"),
			FrontendURL: viper.GetString("FRONTEND_URL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Crypto: CryptoConfig{
			Secret:     viper.GetString("PII_SECRET"),
			Salt:       viper.GetString("PII_SALT"),
			Iterations: viper.GetInt("PII_KDF_ITERATIONS"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Stripe: StripeConfig{
			BaseURL:       viper.GetString("STRIPE_BASE_URL"),
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			TimeoutSecs:   viper.GetInt("STRIPE_TIMEOUT_SECS"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate refuses to start without the secrets the core depends on.
func (c *Config) validate() error {
	if c.Crypto.Secret == "" {
		return fmt.Errorf("PII_SECRET is required")
	}
	if c.Crypto.Salt == "" {
		return fmt.Errorf("PII_SALT is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	return nil
}
