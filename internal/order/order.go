package order

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backtest-blotter/internal/execution"
)

// ErrAmountOutOfRange 表示委托数量的绝对值无法用 int64 表示。
var ErrAmountOutOfRange = errors.New("order: amount out of range")

// Order 记录一笔模拟委托。只有 Blotter 会修改它，其余调用方拿到的是值拷贝。
type Order struct {
	id          string
	asset       string
	amount      int64
	filled      int64
	limit       *decimal.Decimal
	stop        *decimal.Decimal
	stopReached bool
	status      Status
	reason      string
	created     time.Time
	dt          time.Time
	commission  decimal.Decimal
}

// New 创建 OPEN 状态的订单，限价与止损价由执行方式决定。
func New(id, asset string, amount int64, style execution.Style, dt time.Time) *Order {
	isBuy := amount > 0
	return &Order{
		id:      id,
		asset:   asset,
		amount:  amount,
		limit:   style.LimitPrice(isBuy),
		stop:    style.StopPrice(isBuy),
		status:  StatusOpen,
		created: dt,
		dt:      dt,
	}
}

func (o Order) ID() string                  { return o.id }
func (o Order) Asset() string               { return o.asset }
func (o Order) Amount() int64               { return o.amount }
func (o Order) Filled() int64               { return o.filled }
func (o Order) OpenAmount() int64           { return o.amount - o.filled }
func (o Order) Status() Status              { return o.status }
func (o Order) Reason() string              { return o.reason }
func (o Order) Created() time.Time          { return o.created }
func (o Order) Dt() time.Time               { return o.dt }
func (o Order) StopReached() bool           { return o.stopReached }
func (o Order) Commission() decimal.Decimal { return o.commission }
func (o Order) IsBuy() bool                 { return o.amount > 0 }

// Limit 返回限价，未设置时 ok 为 false。
func (o Order) Limit() (decimal.Decimal, bool) {
	if o.limit == nil {
		return decimal.Decimal{}, false
	}
	return *o.limit, true
}

// Stop 返回止损价，未设置时 ok 为 false。
func (o Order) Stop() (decimal.Decimal, bool) {
	if o.stop == nil {
		return decimal.Decimal{}, false
	}
	return *o.stop, true
}

// Snapshot 返回订单的值拷贝。
func (o *Order) Snapshot() Order {
	return *o
}

// Hold 将订单挂起。
func (o *Order) Hold(reason string, dt time.Time) Outcome {
	if o.status.IsTerminal() {
		return IgnoredTerminal
	}
	o.status = StatusHeld
	o.reason = reason
	o.dt = dt
	return Applied
}

// Cancel 撤销订单。与 Reject 一致，原因原样覆盖挂起时记录的原因。
func (o *Order) Cancel(reason string, dt time.Time) Outcome {
	if o.status.IsTerminal() {
		return IgnoredTerminal
	}
	o.status = StatusCancelled
	o.reason = reason
	o.dt = dt
	return Applied
}

// Reject 拒绝订单。
func (o *Order) Reject(reason string, dt time.Time) Outcome {
	if o.status.IsTerminal() {
		return IgnoredTerminal
	}
	o.status = StatusRejected
	o.reason = reason
	o.dt = dt
	return Applied
}

// MarkStopReached 记录止损已被触发，此后按市价或限价单处理。
func (o *Order) MarkStopReached() {
	if o.stop != nil {
		o.stopReached = true
	}
}

// ApplyFill 记入一次成交。成交方向或数量违反约束时 panic。
func (o *Order) ApplyFill(amount int64, commission decimal.Decimal, dt time.Time, policy HeldFillPolicy) {
	if o.status.IsTerminal() {
		panic(fmt.Sprintf("order: fill on terminal order %s (%s)", o.id, o.status))
	}
	if err := CheckFillAmount(o.OpenAmount(), amount); err != nil {
		panic(fmt.Sprintf("order: %s: %v", o.id, err))
	}

	o.filled += amount
	o.commission = o.commission.Add(commission)
	o.dt = dt

	switch {
	case o.OpenAmount() == 0:
		o.status = StatusFilled
	case o.status == StatusHeld && policy == ReopenOnFill:
		o.status = StatusOpen
		o.reason = ""
	}
}

// CheckFillAmount 校验成交量：非零、与剩余量同向且不超过剩余量。
func CheckFillAmount(open, amount int64) error {
	switch {
	case amount == 0:
		return fmt.Errorf("zero fill amount")
	case open == 0:
		return fmt.Errorf("fill %d on order with no open amount", amount)
	case (open > 0) != (amount > 0):
		return fmt.Errorf("fill %d has opposite sign to open amount %d", amount, open)
	case magnitude(amount) > magnitude(open):
		return fmt.Errorf("fill %d exceeds open amount %d", amount, open)
	}
	return nil
}

func (o Order) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order(id=%s asset=%s amount=%d filled=%d status=%s", o.id, o.asset, o.amount, o.filled, o.status)
	if o.limit != nil {
		fmt.Fprintf(&b, " limit=%s", o.limit.String())
	}
	if o.stop != nil {
		fmt.Fprintf(&b, " stop=%s", o.stop.String())
	}
	b.WriteString(")")
	return b.String()
}

// ParseHeldFillPolicy 解析配置中的挂起成交策略。
func ParseHeldFillPolicy(s string) (HeldFillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reopen_on_fill":
		return ReopenOnFill, nil
	case "keep_held":
		return KeepHeld, nil
	default:
		return ReopenOnFill, fmt.Errorf("order: unknown held fill policy %q", s)
	}
}

// CheckAmount 校验委托数量，math.MinInt64 没有对应的正数绝对值。
func CheckAmount(amount int64) error {
	if amount == math.MinInt64 {
		return fmt.Errorf("%w: %d", ErrAmountOutOfRange, amount)
	}
	return nil
}

// Abs 返回数量的绝对值，调用方需保证数量已通过 CheckAmount。
func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
