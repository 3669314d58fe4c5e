// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/order"
)

type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"./data/tableside.db"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	TaxRate           decimal.Decimal `envconfig:"TAX_RATE" default:"0"`
	ServiceChargeRate decimal.Decimal `envconfig:"SERVICE_CHARGE_RATE" default:"0"`

	// CurrencyScale is the number of decimal places of the smallest
	// currency unit; 0 for currencies without minor units.
	CurrencyScale int32 `envconfig:"CURRENCY_SCALE" default:"0"`

	TrainingMode bool `envconfig:"TRAINING_MODE" default:"false"`

	LowStockInterval  time.Duration `envconfig:"LOW_STOCK_INTERVAL" default:"5m"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TaxRate.IsNegative() || c.ServiceChargeRate.IsNegative() {
		return fmt.Errorf("tax and service charge rates cannot be negative")
	}
	if c.CurrencyScale < 0 || c.CurrencyScale > 8 {
		return fmt.Errorf("currency scale must be between 0 and 8, got %d", c.CurrencyScale)
	}
	if c.LowStockInterval <= 0 || c.ReconcileInterval <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}
	return nil
}

// Pricing returns the order pricing rules.
func (c *Config) Pricing() order.Pricing {
	return order.Pricing{
		TaxRate:           c.TaxRate,
		ServiceChargeRate: c.ServiceChargeRate,
		Scale:             c.CurrencyScale,
	}
}
