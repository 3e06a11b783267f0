package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtest-blotter/internal/order"
)

var (
	// DefaultPerShareCost 为默认每股手续费。
	DefaultPerShareCost = decimal.RequireFromString("0.0075")
	// DefaultMinTradeCost 为单笔订单最低手续费。
	DefaultMinTradeCost = decimal.RequireFromString("1")
)

// Model 计算一次成交的手续费。o 为记入本次成交之前的订单状态。
type Model interface {
	Calculate(o order.Order, price decimal.Decimal, amount int64) decimal.Decimal
}

// ModelFunc 允许使用函数作为手续费模型。
type ModelFunc func(o order.Order, price decimal.Decimal, amount int64) decimal.Decimal

func (f ModelFunc) Calculate(o order.Order, price decimal.Decimal, amount int64) decimal.Decimal {
	return f(o, price, amount)
}

// PerShare 按成交股数计费，每笔订单累计不足最低费用时补足。
type PerShare struct {
	Cost         decimal.Decimal
	MinTradeCost decimal.Decimal
}

// NewPerShare 创建按股计费模型。
func NewPerShare(cost, minTradeCost decimal.Decimal) (PerShare, error) {
	if cost.IsNegative() || minTradeCost.IsNegative() {
		return PerShare{}, fmt.Errorf("commission: cost 与 min_trade_cost 不能为负")
	}
	return PerShare{Cost: cost, MinTradeCost: minTradeCost}, nil
}

// DefaultPerShare 返回默认参数的按股计费模型。
func DefaultPerShare() PerShare {
	return PerShare{Cost: DefaultPerShareCost, MinTradeCost: DefaultMinTradeCost}
}

// Calculate 实现 Model。
func (p PerShare) Calculate(o order.Order, _ decimal.Decimal, amount int64) decimal.Decimal {
	additional := p.Cost.Mul(decimal.NewFromInt(amount)).Abs()
	if o.Commission().IsZero() {
		return decimal.Max(p.MinTradeCost, additional)
	}

	total := p.Cost.Mul(decimal.NewFromInt(o.Filled())).Abs().Add(additional)
	if total.LessThan(p.MinTradeCost) {
		return decimal.Zero
	}
	return total.Sub(o.Commission())
}

// PerTrade 每笔订单只在首次成交时收取固定费用。
type PerTrade struct {
	Cost decimal.Decimal
}

// Calculate 实现 Model。
func (p PerTrade) Calculate(o order.Order, _ decimal.Decimal, _ int64) decimal.Decimal {
	if o.Filled() != 0 || !o.Commission().IsZero() {
		return decimal.Zero
	}
	return p.Cost
}

// PerDollar 按成交金额比例计费。
type PerDollar struct {
	Cost decimal.Decimal
}

// Calculate 实现 Model。
func (p PerDollar) Calculate(_ order.Order, price decimal.Decimal, amount int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(amount)).Abs().Mul(p.Cost)
}

// Free 不收取手续费。
type Free struct{}

// Calculate 实现 Model。
func (Free) Calculate(order.Order, decimal.Decimal, int64) decimal.Decimal {
	return decimal.Zero
}

var (
	_ Model = PerShare{}
	_ Model = PerTrade{}
	_ Model = PerDollar{}
	_ Model = Free{}
)
