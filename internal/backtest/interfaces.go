package backtest

import (
	"context"

	"backtest-blotter/internal/order"
)

// Recorder 持久化每根K线之后的订单变更与成交，便于在回测中注入不同实现。
type Recorder interface {
	RecordOrders(ctx context.Context, runID string, orders []order.Order) error
	RecordTransactions(ctx context.Context, runID string, txns []order.Transaction) error
}
