package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/blotter"
	"backtest-blotter/internal/order"
)

// ErrEmptyRange 表示区间内没有任何交易时段。
var ErrEmptyRange = errors.New("backtest: no sessions in range")

// Result 汇总回测结果。
type Result struct {
	RunID        string              `json:"run_id"`
	Start        time.Time           `json:"start"`
	End          time.Time           `json:"end"`
	Stats        Stats               `json:"stats"`
	Orders       []OrderSummary      `json:"orders"`
	Transactions []order.Transaction `json:"transactions"`
}

// Engine 按交易时段驱动 Blotter：先撮合已有订单，再执行当期指令，最后落盘变更。
type Engine struct {
	cfg      Config
	blotter  *blotter.Blotter
	reader   bars.Reader
	plan     Plan
	recorder Recorder
	logger   *zap.Logger

	ignored int
}

// NewEngine 构建回测引擎。recorder 为空时不落盘。
func NewEngine(cfg Config, b *blotter.Blotter, reader bars.Reader, plan Plan, recorder Recorder, logger *zap.Logger) (*Engine, error) {
	if b == nil {
		return nil, fmt.Errorf("backtest: blotter 不能为空")
	}
	if reader == nil {
		return nil, fmt.Errorf("backtest: reader 不能为空")
	}
	if cfg.Start.IsZero() || cfg.End.IsZero() {
		return nil, fmt.Errorf("backtest: start 与 end 必须设置")
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("backtest: end %s 早于 start %s", cfg.End.Format("2006-01-02"), cfg.Start.Format("2006-01-02"))
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:      cfg.normalize(),
		blotter:  b,
		reader:   reader,
		plan:     plan,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Run 执行完整回测流程。忽略计数按每次运行重新统计。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	e.ignored = 0
	sessions := e.sessions()
	if len(sessions) == 0 {
		return Result{}, fmt.Errorf("%w: %s..%s", ErrEmptyRange, e.cfg.Start.Format("2006-01-02"), e.cfg.End.Format("2006-01-02"))
	}

	next := e.skipBefore(sessions[0])
	var txns []order.Transaction
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		e.blotter.SetCurrentDt(session)
		report, err := e.blotter.GetTransactions(e.reader)
		if err != nil {
			return Result{}, err
		}
		txns = append(txns, report.Transactions...)

		for ; next < len(e.plan) && !e.plan[next].Dt.After(session); next++ {
			if err := e.apply(e.plan[next]); err != nil {
				return Result{}, err
			}
		}

		changed := e.blotter.DrainNewOrders()
		if err := e.recorder.RecordOrders(ctx, e.cfg.RunID, changed); err != nil {
			return Result{}, fmt.Errorf("backtest: 记录订单失败: %w", err)
		}
		if err := e.recorder.RecordTransactions(ctx, e.cfg.RunID, report.Transactions); err != nil {
			return Result{}, fmt.Errorf("backtest: 记录成交失败: %w", err)
		}

		if len(report.Transactions) > 0 || len(changed) > 0 {
			e.logger.Debug("交易时段处理完成",
				zap.Time("session", session),
				zap.Int("transactions", len(report.Transactions)),
				zap.Int("changed_orders", len(changed)),
			)
		}
	}

	if next < len(e.plan) {
		e.logger.Warn("部分指令晚于回测区间，未执行", zap.Int("remaining", len(e.plan)-next))
	}

	orders := e.blotter.Orders()
	stats := calculateStats(orders, txns, len(sessions), e.ignored)
	e.logger.Info("回测完成",
		zap.String("run_id", e.cfg.RunID),
		zap.Int("sessions", stats.Sessions),
		zap.Int("orders", stats.OrdersPlaced),
		zap.Int("transactions", stats.Transactions),
		zap.String("commission", stats.TotalCommission.String()),
	)

	return Result{
		RunID:        e.cfg.RunID,
		Start:        e.cfg.Start,
		End:          e.cfg.End,
		Stats:        stats,
		Orders:       summarize(orders),
		Transactions: txns,
	}, nil
}

func (e *Engine) sessions() []time.Time {
	all := e.reader.Sessions()
	out := make([]time.Time, 0, len(all))
	for _, s := range all {
		if e.cfg.contains(s) {
			out = append(out, s)
		}
	}
	return out
}

// 早于首个交易时段所在日期的指令不会执行。
func (e *Engine) skipBefore(first time.Time) int {
	idx := 0
	for idx < len(e.plan) && e.plan[idx].Dt.Before(day(first)) {
		e.logger.Warn("指令早于回测区间，已跳过", zap.Int("line", e.plan[idx].Line), zap.Stringer("instruction", e.plan[idx]))
		e.ignored++
		idx++
	}
	return idx
}

func (e *Engine) apply(inst Instruction) error {
	switch inst.Action {
	case ActionOrder:
		id, err := e.blotter.Order(inst.Asset, inst.Amount, inst.Style)
		if err != nil {
			return fmt.Errorf("backtest: line %d: %w", inst.Line, err)
		}
		if id == "" {
			e.ignored++
		}
		return nil
	case ActionCancel, ActionReject:
		return e.mutate(inst, e.blotter.PendingOrders(inst.Asset))
	case ActionHold:
		return e.mutate(inst, e.blotter.OpenOrders(inst.Asset))
	default:
		return fmt.Errorf("backtest: line %d: unknown action %q", inst.Line, inst.Action)
	}
}

func (e *Engine) mutate(inst Instruction, candidates []order.Order) error {
	if len(candidates) == 0 {
		e.logger.Warn("没有可操作的订单，指令已忽略", zap.Int("line", inst.Line), zap.Stringer("instruction", inst))
		e.ignored++
		return nil
	}

	id := candidates[0].ID()
	var outcome order.Outcome
	switch inst.Action {
	case ActionCancel:
		outcome = e.blotter.Cancel(id, inst.Reason)
	case ActionReject:
		outcome = e.blotter.Reject(id, inst.Reason)
	case ActionHold:
		outcome = e.blotter.Hold(id, inst.Reason)
	}
	if outcome != order.Applied {
		e.ignored++
	}
	return nil
}
