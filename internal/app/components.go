package app

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/blotter"
	"backtest-blotter/internal/commission"
	"backtest-blotter/internal/config"
	"backtest-blotter/internal/order"
	"backtest-blotter/internal/slippage"
)

func newSlippage(cfg config.SlippageConfig) (slippage.Model, error) {
	switch cfg.Model {
	case config.SlippageVolumeShare, "":
		return slippage.NewVolumeShare(decimal.NewFromFloat(cfg.VolumeLimit), decimal.NewFromFloat(cfg.PriceImpact))
	case config.SlippageFixed:
		return slippage.NewFixed(decimal.NewFromFloat(cfg.Spread))
	default:
		return nil, fmt.Errorf("app: unsupported slippage model %q", cfg.Model)
	}
}

func newCommission(cfg config.CommissionConfig) (commission.Model, error) {
	cost := decimal.NewFromFloat(cfg.Cost)
	switch cfg.Model {
	case config.CommissionPerShare, "":
		return commission.NewPerShare(cost, decimal.NewFromFloat(cfg.MinTradeCost))
	case config.CommissionPerTrade:
		return commission.PerTrade{Cost: cost}, nil
	case config.CommissionPerDollar:
		return commission.PerDollar{Cost: cost}, nil
	case config.CommissionFree:
		return commission.Free{}, nil
	default:
		return nil, fmt.Errorf("app: unsupported commission model %q", cfg.Model)
	}
}

// newBlotter 按配置组装滑点、手续费与挂起成交策略。
func newBlotter(cfg *config.Config, freq bars.Frequency, logger *zap.Logger) (*blotter.Blotter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	slip, err := newSlippage(cfg.Slippage)
	if err != nil {
		return nil, fmt.Errorf("app: 初始化滑点模型失败: %w", err)
	}
	comm, err := newCommission(cfg.Commission)
	if err != nil {
		return nil, fmt.Errorf("app: 初始化手续费模型失败: %w", err)
	}
	policy, err := order.ParseHeldFillPolicy(cfg.Blotter.HeldFillPolicy)
	if err != nil {
		return nil, err
	}

	return blotter.New(freq, blotter.Options{
		Slippage:       slip,
		Commission:     comm,
		HeldFillPolicy: policy,
	}, logger.Named("blotter")), nil
}
