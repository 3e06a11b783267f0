package slippage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/order"
)

var two = decimal.NewFromInt(2)

// Fixed 一次性成交全部剩余数量，成交价为收盘价加减半个价差。
type Fixed struct {
	Spread decimal.Decimal
}

// NewFixed 创建固定价差滑点模型。
func NewFixed(spread decimal.Decimal) (Fixed, error) {
	if spread.IsNegative() {
		return Fixed{}, fmt.Errorf("slippage: spread 不能为负, got %s", spread)
	}
	return Fixed{Spread: spread}, nil
}

// Simulate 实现 Model。
func (f Fixed) Simulate(o order.Order, bar bars.Bar, _ int64) Fill {
	if bar.Volume <= 0 || !bar.Close.IsPositive() {
		return Fill{}
	}

	triggered, eligible := CheckTriggers(o, bar)
	fill := Fill{StopTriggered: triggered}
	if !eligible || o.OpenAmount() == 0 {
		return fill
	}

	half := f.Spread.Div(two)
	price := bar.Close
	if o.IsBuy() {
		price = price.Add(half)
	} else {
		price = price.Sub(half)
	}

	fill.Price = ClampToLimit(o, price)
	fill.Amount = o.OpenAmount()
	return fill
}

var _ Model = Fixed{}
