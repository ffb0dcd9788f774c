package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Kitty"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"kitty"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Redis struct {
		Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
		Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
		Password string `envconfig:"REDIS_PASSWORD" default:""`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
		Stream   string `envconfig:"REDIS_STREAM" default:"kitty:notifications"`
		MaxLen   int64  `envconfig:"REDIS_STREAM_MAXLEN" default:"10000"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	Ledger struct {
		DebtDueDays         int `envconfig:"DEBT_DUE_DAYS" default:"7"`
		CriticalDebtAgeDays int `envconfig:"CRITICAL_DEBT_AGE_DAYS" default:"30"`
	}

	Sweep struct {
		Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	}

	Notify struct {
		BufferSize int `envconfig:"NOTIFY_BUFFER_SIZE" default:"256"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// DebtDueIn is how long a debtor has before a debt is overdue.
func (c *Config) DebtDueIn() time.Duration {
	return time.Duration(c.Ledger.DebtDueDays) * 24 * time.Hour
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
