package slippage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/order"
)

const pricePlaces = 8

// VolumeShare 按K线成交量的固定比例限制成交数量，同一资产的订单按先后共享额度。
type VolumeShare struct {
	VolumeLimit decimal.Decimal
	PriceImpact decimal.Decimal
}

// NewVolumeShare 创建成交量比例滑点模型。
func NewVolumeShare(volumeLimit, priceImpact decimal.Decimal) (VolumeShare, error) {
	if !volumeLimit.IsPositive() || volumeLimit.GreaterThan(decimal.NewFromInt(1)) {
		return VolumeShare{}, fmt.Errorf("slippage: volume_limit 必须位于(0,1], got %s", volumeLimit)
	}
	if priceImpact.IsNegative() {
		return VolumeShare{}, fmt.Errorf("slippage: price_impact 不能为负, got %s", priceImpact)
	}
	return VolumeShare{VolumeLimit: volumeLimit, PriceImpact: priceImpact}, nil
}

// DefaultVolumeShare 返回默认参数的模型：25% 成交量占比，成交价为收盘价。
func DefaultVolumeShare() VolumeShare {
	return VolumeShare{VolumeLimit: DefaultVolumeLimit, PriceImpact: decimal.Zero}
}

// Simulate 实现 Model。
func (v VolumeShare) Simulate(o order.Order, bar bars.Bar, consumed int64) Fill {
	if bar.Volume <= 0 || !bar.Close.IsPositive() {
		return Fill{}
	}

	triggered, eligible := CheckTriggers(o, bar)
	fill := Fill{StopTriggered: triggered}
	if !eligible {
		return fill
	}

	volume := decimal.NewFromInt(bar.Volume)
	capacity := volume.Mul(v.VolumeLimit).Floor().IntPart() - consumed
	if capacity < 1 {
		return fill
	}

	qty := order.Abs(o.OpenAmount())
	if qty > capacity {
		qty = capacity
	}
	if qty == 0 {
		return fill
	}

	share := decimal.NewFromInt(consumed + qty).Div(volume)
	if share.GreaterThan(v.VolumeLimit) {
		share = v.VolumeLimit
	}
	impact := bar.Close.Mul(v.PriceImpact).Mul(share).Mul(share)

	price := bar.Close
	if o.IsBuy() {
		price = price.Add(impact)
	} else {
		price = price.Sub(impact)
	}

	fill.Price = ClampToLimit(o, price.Round(pricePlaces))
	fill.Amount = signed(o, qty)
	return fill
}

var _ Model = VolumeShare{}
