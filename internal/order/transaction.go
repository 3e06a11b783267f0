package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 为一次成交的不可变记录。
type Transaction struct {
	OrderID    string          `json:"order_id"`
	Asset      string          `json:"asset"`
	Amount     int64           `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Dt         time.Time       `json:"dt"`
	Commission decimal.Decimal `json:"commission"`
}

// Notional 返回成交金额（带方向）。
func (t Transaction) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Amount))
}

// CommissionLine 为单笔成交对应的手续费明细。
type CommissionLine struct {
	OrderID string          `json:"order_id"`
	Asset   string          `json:"asset"`
	Cost    decimal.Decimal `json:"cost"`
	Dt      time.Time       `json:"dt"`
}
