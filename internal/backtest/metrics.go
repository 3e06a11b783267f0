package backtest

import (
	"github.com/shopspring/decimal"

	"backtest-blotter/internal/order"
)

// Stats 记录回测中订单与成交的统计。
type Stats struct {
	Sessions        int             `json:"sessions"`
	OrdersPlaced    int             `json:"orders_placed"`
	OrdersFilled    int             `json:"orders_filled"`
	OrdersCancelled int             `json:"orders_cancelled"`
	OrdersRejected  int             `json:"orders_rejected"`
	OrdersOpen      int             `json:"orders_open"`
	OrdersHeld      int             `json:"orders_held"`
	Ignored         int             `json:"ignored_instructions"`
	Transactions    int             `json:"transactions"`
	SharesTraded    int64           `json:"shares_traded"`
	Notional        decimal.Decimal `json:"notional"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	FillRatio       float64         `json:"fill_ratio"`
}

// OrderSummary 为输出用的订单终态。
type OrderSummary struct {
	ID         string          `json:"id"`
	Asset      string          `json:"asset"`
	Amount     int64           `json:"amount"`
	Filled     int64           `json:"filled"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Commission decimal.Decimal `json:"commission"`
}

func calculateStats(orders []order.Order, txns []order.Transaction, sessions, ignored int) Stats {
	stats := Stats{
		Sessions:        sessions,
		OrdersPlaced:    len(orders),
		Ignored:         ignored,
		Transactions:    len(txns),
		Notional:        decimal.Zero,
		TotalCommission: decimal.Zero,
	}

	var requested, filled int64
	for _, o := range orders {
		switch o.Status() {
		case order.StatusFilled:
			stats.OrdersFilled++
		case order.StatusCancelled:
			stats.OrdersCancelled++
		case order.StatusRejected:
			stats.OrdersRejected++
		case order.StatusOpen:
			stats.OrdersOpen++
		case order.StatusHeld:
			stats.OrdersHeld++
		}
		requested += order.Abs(o.Amount())
		filled += order.Abs(o.Filled())
	}

	for _, txn := range txns {
		stats.SharesTraded += order.Abs(txn.Amount)
		stats.Notional = stats.Notional.Add(txn.Notional().Abs())
		stats.TotalCommission = stats.TotalCommission.Add(txn.Commission)
	}

	if requested > 0 {
		stats.FillRatio = float64(filled) / float64(requested)
	}
	return stats
}

func summarize(orders []order.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderSummary{
			ID:         o.ID(),
			Asset:      o.Asset(),
			Amount:     o.Amount(),
			Filled:     o.Filled(),
			Status:     o.Status().String(),
			Reason:     o.Reason(),
			Commission: o.Commission(),
		})
	}
	return out
}
