package blotter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/commission"
	"backtest-blotter/internal/execution"
	"backtest-blotter/internal/order"
	"backtest-blotter/internal/slippage"
)

var (
	// ErrFrequencyMismatch 表示读取器周期与 Blotter 周期不一致。
	ErrFrequencyMismatch = errors.New("blotter: reader frequency mismatch")
	// ErrInvalidAsset 表示资产标识为空。
	ErrInvalidAsset = errors.New("blotter: asset must not be empty")
)

// Options 控制 Blotter 的可插拔组件，零值字段使用默认实现。
type Options struct {
	Slippage       slippage.Model
	Commission     commission.Model
	HeldFillPolicy order.HeldFillPolicy
	IDGenerator    func() string
}

// FillReport 汇总一次撮合产生的成交与手续费。
type FillReport struct {
	Transactions []order.Transaction
	Commissions  []order.CommissionLine
}

// TotalCommission 返回本次撮合的手续费合计。
func (r FillReport) TotalCommission() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Commissions {
		total = total.Add(line.Cost)
	}
	return total
}

// Blotter 持有全部订单，并在每根K线上将其转换为成交。
// 非并发安全：由外层驱动按时间顺序单线程调用。
type Blotter struct {
	freq       bars.Frequency
	slippage   slippage.Model
	commission commission.Model
	policy     order.HeldFillPolicy
	newID      func() string
	logger     *zap.Logger

	orders    map[string]*order.Order
	sequence  []string
	queues    map[string][]string
	newOrders []string
	currentDt time.Time
}

// New 创建 Blotter，周期在其生命周期内固定。
func New(freq bars.Frequency, opts Options, logger *zap.Logger) *Blotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Slippage == nil {
		opts.Slippage = slippage.DefaultVolumeShare()
	}
	if opts.Commission == nil {
		opts.Commission = commission.DefaultPerShare()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = newOrderID
	}

	return &Blotter{
		freq:       freq,
		slippage:   opts.Slippage,
		commission: opts.Commission,
		policy:     opts.HeldFillPolicy,
		newID:      opts.IDGenerator,
		logger:     logger,
		orders:     make(map[string]*order.Order),
		queues:     make(map[string][]string),
	}
}

func newOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Frequency 返回数据周期。
func (b *Blotter) Frequency() bars.Frequency {
	return b.freq
}

// HeldFillPolicy 返回挂起订单的成交策略。
func (b *Blotter) HeldFillPolicy() order.HeldFillPolicy {
	return b.policy
}

// SetCurrentDt 设置下一次撮合使用的时间戳。
func (b *Blotter) SetCurrentDt(dt time.Time) {
	b.currentDt = dt
}

// CurrentDt 返回当前模拟时间。
func (b *Blotter) CurrentDt() time.Time {
	return b.currentDt
}

// Order 创建新订单并返回订单号。数量为 0 时静默忽略，返回空订单号。
func (b *Blotter) Order(asset string, amount int64, style execution.Style) (string, error) {
	if amount == 0 {
		b.logger.Debug("忽略数量为0的下单请求", zap.String("asset", asset))
		return "", nil
	}
	if strings.TrimSpace(asset) == "" {
		return "", ErrInvalidAsset
	}
	if err := order.CheckAmount(amount); err != nil {
		return "", err
	}
	if style == nil {
		return "", fmt.Errorf("%w: style is nil", execution.ErrInvalidStyle)
	}
	if err := style.Validate(); err != nil {
		return "", err
	}

	id := b.newID()
	if _, exists := b.orders[id]; exists {
		panic(fmt.Sprintf("blotter: duplicate order id %s", id))
	}

	o := order.New(id, asset, amount, style, b.currentDt)
	b.orders[id] = o
	b.sequence = append(b.sequence, id)
	b.queues[asset] = append(b.queues[asset], id)
	b.touch(id)

	b.logger.Debug("订单已创建",
		zap.String("order_id", id),
		zap.String("asset", asset),
		zap.Int64("amount", amount),
		zap.Stringer("order", o),
	)
	return id, nil
}

// Cancel 撤销订单；未知或已终结的订单静默忽略。
func (b *Blotter) Cancel(id string, reason string) order.Outcome {
	return b.mutate(id, "cancel", true, func(o *order.Order) order.Outcome {
		return o.Cancel(reason, b.currentDt)
	})
}

// Reject 拒绝订单；未知或已终结的订单静默忽略。
func (b *Blotter) Reject(id string, reason string) order.Outcome {
	return b.mutate(id, "reject", true, func(o *order.Order) order.Outcome {
		return o.Reject(reason, b.currentDt)
	})
}

// Hold 挂起订单；挂起的订单从 OpenOrders 中消失，但仍参与后续撮合。
func (b *Blotter) Hold(id string, reason string) order.Outcome {
	return b.mutate(id, "hold", false, func(o *order.Order) order.Outcome {
		return o.Hold(reason, b.currentDt)
	})
}

func (b *Blotter) mutate(id, action string, dequeue bool, fn func(*order.Order) order.Outcome) order.Outcome {
	o, ok := b.orders[id]
	if !ok {
		b.logger.Debug("忽略未知订单", zap.String("action", action), zap.String("order_id", id))
		return order.IgnoredUnknown
	}

	outcome := fn(o)
	if outcome != order.Applied {
		b.logger.Debug("忽略已终结订单",
			zap.String("action", action),
			zap.String("order_id", id),
			zap.Stringer("status", o.Status()),
		)
		return outcome
	}

	if dequeue {
		b.dequeue(o.Asset(), id)
	}
	b.touch(id)
	b.logger.Debug("订单状态已变更",
		zap.String("action", action),
		zap.String("order_id", id),
		zap.Stringer("status", o.Status()),
		zap.String("reason", o.Reason()),
	)
	return outcome
}

// GetTransactions 用当前时间的K线撮合所有待成交订单。
// 无数据的资产本周期跳过；滑点模型违反约束时 panic。
func (b *Blotter) GetTransactions(reader bars.Reader) (FillReport, error) {
	var report FillReport
	if reader == nil {
		return report, errors.New("blotter: reader 不能为空")
	}
	if reader.Frequency() != b.freq {
		return report, fmt.Errorf("%w: blotter=%s reader=%s", ErrFrequencyMismatch, b.freq, reader.Frequency())
	}

	for _, asset := range b.queuedAssets() {
		bar, err := reader.GetBar(asset, b.currentDt)
		if err != nil {
			if bars.IsNoData(err) {
				b.logger.Debug("本周期无K线数据，跳过撮合",
					zap.String("asset", asset),
					zap.Time("dt", b.currentDt),
					zap.Error(err),
				)
				continue
			}
			return report, fmt.Errorf("blotter: 读取 %s K线失败: %w", asset, err)
		}
		b.fillAsset(asset, bar, &report)
	}

	if len(report.Transactions) > 0 {
		b.logger.Debug("撮合完成",
			zap.Time("dt", b.currentDt),
			zap.Int("transactions", len(report.Transactions)),
			zap.String("commission", report.TotalCommission().String()),
		)
	}
	return report, nil
}

func (b *Blotter) fillAsset(asset string, bar bars.Bar, report *FillReport) {
	queue := b.queues[asset]
	remaining := make([]string, 0, len(queue))
	var consumed int64

	for _, id := range queue {
		o := b.orders[id]
		fill := b.slippage.Simulate(o.Snapshot(), bar, consumed)
		if fill.StopTriggered {
			o.MarkStopReached()
		}
		if fill.IsZero() {
			remaining = append(remaining, id)
			continue
		}
		b.checkFill(o, fill)

		cost := b.commission.Calculate(o.Snapshot(), fill.Price, fill.Amount)
		o.ApplyFill(fill.Amount, cost, b.currentDt, b.policy)
		consumed += order.Abs(fill.Amount)

		report.Transactions = append(report.Transactions, order.Transaction{
			OrderID:    id,
			Asset:      asset,
			Amount:     fill.Amount,
			Price:      fill.Price,
			Dt:         b.currentDt,
			Commission: cost,
		})
		if !cost.IsZero() {
			report.Commissions = append(report.Commissions, order.CommissionLine{
				OrderID: id,
				Asset:   asset,
				Cost:    cost,
				Dt:      b.currentDt,
			})
		}
		b.touch(id)

		if o.Status() != order.StatusFilled {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) == 0 {
		delete(b.queues, asset)
		return
	}
	b.queues[asset] = remaining
}

func (b *Blotter) checkFill(o *order.Order, fill slippage.Fill) {
	if err := order.CheckFillAmount(o.OpenAmount(), fill.Amount); err != nil {
		panic(fmt.Sprintf("blotter: slippage model returned invalid fill for %s: %v", o.ID(), err))
	}
	if !fill.Price.IsPositive() {
		panic(fmt.Sprintf("blotter: slippage model returned non-positive price %s for %s", fill.Price, o.ID()))
	}
	if slippage.WorseThanLimit(o.Snapshot(), fill.Price) {
		limit, _ := o.Limit()
		panic(fmt.Sprintf("blotter: slippage model price %s breaches limit %s for %s", fill.Price, limit, o.ID()))
	}
}

func (b *Blotter) touch(id string) {
	for i, existing := range b.newOrders {
		if existing == id {
			b.newOrders = append(b.newOrders[:i], b.newOrders[i+1:]...)
			break
		}
	}
	b.newOrders = append(b.newOrders, id)
}

func (b *Blotter) dequeue(asset, id string) {
	queue := b.queues[asset]
	for i, existing := range queue {
		if existing == id {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(b.queues, asset)
		return
	}
	b.queues[asset] = queue
}

func (b *Blotter) queuedAssets() []string {
	assets := make([]string, 0, len(b.queues))
	for asset, queue := range b.queues {
		if len(queue) > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}
