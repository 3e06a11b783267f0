package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"backtest-blotter/internal/order"
	"backtest-blotter/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Service 负责持久化订单事件与成交。
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService 初始化日志服务，创建所需表结构。
func NewService(st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  st,
		logger: logger,
	}

	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema(ctx context.Context) error {
	err := s.store.Migrate(ctx,
		`CREATE TABLE IF NOT EXISTS order_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	asset TEXT NOT NULL,
	status TEXT NOT NULL,
	amount INTEGER NOT NULL,
	filled INTEGER NOT NULL,
	reason TEXT NOT NULL,
	commission TEXT NOT NULL,
	dt TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_run ON order_events(run_id, order_id)`,
		`CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	asset TEXT NOT NULL,
	amount INTEGER NOT NULL,
	price TEXT NOT NULL,
	commission TEXT NOT NULL,
	dt TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id)`,
	)
	if err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// RecordOrders 在一个事务中写入一批订单快照。
func (s *Service) RecordOrders(ctx context.Context, runID string, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO order_events (run_id, order_id, asset, status, amount, filled, reason, commission, dt) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("journal: 准备写入语句失败: %w", err)
		}
		defer stmt.Close()

		for _, o := range orders {
			if _, err := stmt.ExecContext(ctx,
				runID, o.ID(), o.Asset(), o.Status().String(), o.Amount(), o.Filled(),
				o.Reason(), o.Commission().String(), formatTime(o.Dt()),
			); err != nil {
				return fmt.Errorf("journal: 写入订单事件失败: %w", err)
			}
		}
		return nil
	})
}

// RecordTransactions 在一个事务中写入一批成交。
func (s *Service) RecordTransactions(ctx context.Context, runID string, txns []order.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO transactions (run_id, order_id, asset, amount, price, commission, dt) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("journal: 准备写入语句失败: %w", err)
		}
		defer stmt.Close()

		for _, txn := range txns {
			if _, err := stmt.ExecContext(ctx,
				runID, txn.OrderID, txn.Asset, txn.Amount,
				txn.Price.String(), txn.Commission.String(), formatTime(txn.Dt),
			); err != nil {
				return fmt.Errorf("journal: 写入成交失败: %w", err)
			}
		}
		return nil
	})
}

// ListOrderEvents 按写入顺序返回某次运行的订单事件；orderID 为空时返回全部订单。
func (s *Service) ListOrderEvents(ctx context.Context, runID, orderID string) ([]OrderEvent, error) {
	query := `SELECT run_id, order_id, asset, status, amount, filled, reason, commission, dt FROM order_events WHERE run_id = ?`
	args := []interface{}{runID}
	if orderID != "" {
		query += ` AND order_id = ?`
		args = append(args, orderID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询订单事件失败: %w", err)
	}
	defer rows.Close()

	var events []OrderEvent
	for rows.Next() {
		var (
			ev       OrderEvent
			cost, dt string
			costErr  error
		)
		if err := rows.Scan(&ev.RunID, &ev.OrderID, &ev.Asset, &ev.Status, &ev.Amount, &ev.Filled, &ev.Reason, &cost, &dt); err != nil {
			return nil, fmt.Errorf("journal: 解析订单事件失败: %w", err)
		}
		ev.Cost, costErr = decimal.NewFromString(cost)
		ts, tsErr := time.Parse(time.RFC3339Nano, dt)
		if combined := multierr.Combine(costErr, tsErr); combined != nil {
			return nil, fmt.Errorf("journal: 解析订单事件失败: %w", combined)
		}
		ev.Dt = ts
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取订单事件失败: %w", err)
	}

	return events, nil
}

// ListTransactions 按写入顺序返回某次运行的成交。
func (s *Service) ListTransactions(ctx context.Context, runID string) ([]TransactionRecord, error) {
	rows, err := s.store.DB().QueryContext(ctx,
		`SELECT run_id, order_id, asset, amount, price, commission, dt FROM transactions WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询成交失败: %w", err)
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var (
			rec               TransactionRecord
			price, cost, dt   string
			priceErr, costErr error
		)
		if err := rows.Scan(&rec.RunID, &rec.OrderID, &rec.Asset, &rec.Amount, &price, &cost, &dt); err != nil {
			return nil, fmt.Errorf("journal: 解析成交失败: %w", err)
		}
		rec.Price, priceErr = decimal.NewFromString(price)
		rec.Commission, costErr = decimal.NewFromString(cost)
		ts, tsErr := time.Parse(time.RFC3339Nano, dt)
		if combined := multierr.Combine(priceErr, costErr, tsErr); combined != nil {
			return nil, fmt.Errorf("journal: 解析成交失败: %w", combined)
		}
		rec.Dt = ts
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取成交失败: %w", err)
	}

	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
