package blotter

import (
	"sort"

	"backtest-blotter/internal/order"
)

// GetOrder 按订单号返回订单快照。
func (b *Blotter) GetOrder(id string) (order.Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return order.Order{}, false
	}
	return o.Snapshot(), true
}

// Orders 按创建顺序返回全部订单快照，包括已终结订单。
func (b *Blotter) Orders() []order.Order {
	out := make([]order.Order, 0, len(b.sequence))
	for _, id := range b.sequence {
		out = append(out, b.orders[id].Snapshot())
	}
	return out
}

// OpenOrders 按 FIFO 顺序返回资产上状态为 OPEN 的订单。
func (b *Blotter) OpenOrders(asset string) []order.Order {
	queue := b.queues[asset]
	out := make([]order.Order, 0, len(queue))
	for _, id := range queue {
		o := b.orders[id]
		if o.Status() == order.StatusOpen {
			out = append(out, o.Snapshot())
		}
	}
	return out
}

// HeldOrders 按 FIFO 顺序返回资产上被挂起的订单。
func (b *Blotter) HeldOrders(asset string) []order.Order {
	queue := b.queues[asset]
	out := make([]order.Order, 0)
	for _, id := range queue {
		o := b.orders[id]
		if o.Status() == order.StatusHeld {
			out = append(out, o.Snapshot())
		}
	}
	return out
}

// OpenAssets 返回至少有一笔 OPEN 订单的资产，按字典序排列。
func (b *Blotter) OpenAssets() []string {
	assets := make([]string, 0, len(b.queues))
	for asset := range b.queues {
		if len(b.OpenOrders(asset)) > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}

// NewOrders 返回自上次清空以来被变更过的订单，按最后一次变更排序。
func (b *Blotter) NewOrders() []order.Order {
	out := make([]order.Order, 0, len(b.newOrders))
	for _, id := range b.newOrders {
		out = append(out, b.orders[id].Snapshot())
	}
	return out
}

// DrainNewOrders 返回并清空变更列表，供外层驱动在每根K线之后调用。
func (b *Blotter) DrainNewOrders() []order.Order {
	out := b.NewOrders()
	b.ClearNewOrders()
	return out
}

// ClearNewOrders 清空变更列表。
func (b *Blotter) ClearNewOrders() {
	b.newOrders = b.newOrders[:0]
}

// PendingOrders 按 FIFO 顺序返回资产上仍可成交的订单，包括 OPEN 与 HELD。
func (b *Blotter) PendingOrders(asset string) []order.Order {
	queue := b.queues[asset]
	out := make([]order.Order, 0, len(queue))
	for _, id := range queue {
		out = append(out, b.orders[id].Snapshot())
	}
	return out
}
