package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	SlippageVolumeShare = "volume_share"
	SlippageFixed       = "fixed"

	CommissionPerShare  = "per_share"
	CommissionPerTrade  = "per_trade"
	CommissionPerDollar = "per_dollar"
	CommissionFree      = "free"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Blotter    BlotterConfig    `mapstructure:"blotter"`
	Slippage   SlippageConfig   `mapstructure:"slippage"`
	Commission CommissionConfig `mapstructure:"commission"`
	Bundle     BundleConfig     `mapstructure:"bundle"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// BlotterConfig 控制订单簿行为。
type BlotterConfig struct {
	DataFrequency  string `mapstructure:"data_frequency"`
	HeldFillPolicy string `mapstructure:"held_fill_policy"`
}

// SlippageConfig 选择滑点模型及其参数。
type SlippageConfig struct {
	Model       string  `mapstructure:"model"`
	VolumeLimit float64 `mapstructure:"volume_limit"`
	PriceImpact float64 `mapstructure:"price_impact"`
	Spread      float64 `mapstructure:"spread"`
}

// CommissionConfig 选择手续费模型及其参数。
type CommissionConfig struct {
	Model        string  `mapstructure:"model"`
	Cost         float64 `mapstructure:"cost"`
	MinTradeCost float64 `mapstructure:"min_trade_cost"`
}

// BundleConfig 控制数据包的默认名称与导入并发。
type BundleConfig struct {
	Default       string `mapstructure:"default"`
	IngestWorkers int    `mapstructure:"ingest_workers"`
}

// ExchangeConfig 描述交易所连接信息，用于拉取历史K线。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Timeframe  string      `mapstructure:"timeframe"`
	Limit      int64       `mapstructure:"limit"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	APIPass    string      `mapstructure:"api_password"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	switch strings.ToLower(c.Blotter.DataFrequency) {
	case "daily", "minute":
	default:
		err = multierr.Append(err, fmt.Errorf("blotter.data_frequency 仅支持 daily 或 minute, got %q", c.Blotter.DataFrequency))
	}
	switch strings.ToLower(strings.TrimSpace(c.Blotter.HeldFillPolicy)) {
	case "", "reopen_on_fill", "keep_held":
	default:
		err = multierr.Append(err, fmt.Errorf("blotter.held_fill_policy 仅支持 reopen_on_fill 或 keep_held, got %q", c.Blotter.HeldFillPolicy))
	}

	switch c.Slippage.Model {
	case SlippageVolumeShare:
		if c.Slippage.VolumeLimit <= 0 || c.Slippage.VolumeLimit > 1 {
			err = multierr.Append(err, errors.New("slippage.volume_limit 必须位于(0,1]"))
		}
		if c.Slippage.PriceImpact < 0 {
			err = multierr.Append(err, errors.New("slippage.price_impact 不能为负"))
		}
	case SlippageFixed:
		if c.Slippage.Spread < 0 {
			err = multierr.Append(err, errors.New("slippage.spread 不能为负"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("slippage.model 不支持 %q", c.Slippage.Model))
	}

	switch c.Commission.Model {
	case CommissionPerShare, CommissionPerTrade, CommissionPerDollar, CommissionFree:
	default:
		err = multierr.Append(err, fmt.Errorf("commission.model 不支持 %q", c.Commission.Model))
	}
	if c.Commission.Cost < 0 {
		err = multierr.Append(err, errors.New("commission.cost 不能为负"))
	}
	if c.Commission.MinTradeCost < 0 {
		err = multierr.Append(err, errors.New("commission.min_trade_cost 不能为负"))
	}

	if c.Bundle.Default == "" {
		err = multierr.Append(err, errors.New("bundle.default 不能为空"))
	}
	if c.Bundle.IngestWorkers <= 0 {
		err = multierr.Append(err, errors.New("bundle.ingest_workers 必须大于0"))
	}

	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Timeframe == "" {
		err = multierr.Append(err, errors.New("exchange.timeframe 不能为空"))
	}
	if c.Exchange.Limit <= 0 {
		err = multierr.Append(err, errors.New("exchange.limit 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
