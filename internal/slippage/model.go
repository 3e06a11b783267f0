package slippage

import (
	"github.com/shopspring/decimal"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/order"
)

// DefaultVolumeLimit 为单根K线最多可成交的成交量占比。
var DefaultVolumeLimit = decimal.RequireFromString("0.25")

// Fill 为滑点模型给出的成交结果，Amount 为 0 表示本周期不成交。
type Fill struct {
	Price         decimal.Decimal
	Amount        int64
	StopTriggered bool
}

// IsZero 判断是否无成交。
func (f Fill) IsZero() bool {
	return f.Amount == 0
}

// Model 将K线流动性转换为可实现的成交。
// consumed 为同一资产在本周期内已被先前订单占用的成交量。实现必须是纯函数。
type Model interface {
	Simulate(o order.Order, bar bars.Bar, consumed int64) Fill
}

// ModelFunc 允许使用函数作为滑点模型。
type ModelFunc func(o order.Order, bar bars.Bar, consumed int64) Fill

func (f ModelFunc) Simulate(o order.Order, bar bars.Bar, consumed int64) Fill {
	return f(o, bar, consumed)
}

// CheckTriggers 判断止损是否触发以及限价是否可成交。
// triggered 表示止损在本根K线首次触发；eligible 为 false 时本周期不能成交。
func CheckTriggers(o order.Order, bar bars.Bar) (triggered bool, eligible bool) {
	if stop, ok := o.Stop(); ok && !o.StopReached() {
		if o.IsBuy() {
			triggered = bar.High.GreaterThanOrEqual(stop)
		} else {
			triggered = bar.Low.LessThanOrEqual(stop)
		}
		if !triggered {
			return false, false
		}
	}

	if limit, ok := o.Limit(); ok {
		if o.IsBuy() && bar.Low.GreaterThan(limit) {
			return triggered, false
		}
		if !o.IsBuy() && bar.High.LessThan(limit) {
			return triggered, false
		}
	}
	return triggered, true
}

// ClampToLimit 保证成交价不劣于限价。
func ClampToLimit(o order.Order, price decimal.Decimal) decimal.Decimal {
	limit, ok := o.Limit()
	if !ok {
		return price
	}
	if o.IsBuy() {
		return decimal.Min(price, limit)
	}
	return decimal.Max(price, limit)
}

// WorseThanLimit 判断价格是否劣于订单限价。
func WorseThanLimit(o order.Order, price decimal.Decimal) bool {
	limit, ok := o.Limit()
	if !ok {
		return false
	}
	if o.IsBuy() {
		return price.GreaterThan(limit)
	}
	return price.LessThan(limit)
}

func signed(o order.Order, qty int64) int64 {
	if o.IsBuy() {
		return qty
	}
	return -qty
}
