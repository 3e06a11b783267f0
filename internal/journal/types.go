package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent 记录一次订单状态变更后的快照。
type OrderEvent struct {
	RunID   string          `json:"run_id"`
	OrderID string          `json:"order_id"`
	Asset   string          `json:"asset"`
	Status  string          `json:"status"`
	Amount  int64           `json:"amount"`
	Filled  int64           `json:"filled"`
	Reason  string          `json:"reason,omitempty"`
	Cost    decimal.Decimal `json:"commission"`
	Dt      time.Time       `json:"dt"`
}

// TransactionRecord 为持久化的成交记录。
type TransactionRecord struct {
	RunID      string          `json:"run_id"`
	OrderID    string          `json:"order_id"`
	Asset      string          `json:"asset"`
	Amount     int64           `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Dt         time.Time       `json:"dt"`
}
