package backtest

import (
	"context"

	"backtest-blotter/internal/order"
)

// NopRecorder 丢弃所有记录。
type NopRecorder struct{}

func (NopRecorder) RecordOrders(context.Context, string, []order.Order) error { return nil }

func (NopRecorder) RecordTransactions(context.Context, string, []order.Transaction) error {
	return nil
}

// MemoryRecorder 在内存中保存记录，按写入顺序排列。
type MemoryRecorder struct {
	Orders       []order.Order
	Transactions []order.Transaction
}

func (m *MemoryRecorder) RecordOrders(_ context.Context, _ string, orders []order.Order) error {
	m.Orders = append(m.Orders, orders...)
	return nil
}

func (m *MemoryRecorder) RecordTransactions(_ context.Context, _ string, txns []order.Transaction) error {
	m.Transactions = append(m.Transactions, txns...)
	return nil
}

var (
	_ Recorder = NopRecorder{}
	_ Recorder = (*MemoryRecorder)(nil)
)
