package blotter

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/commission"
	"backtest-blotter/internal/execution"
	"backtest-blotter/internal/order"
	"backtest-blotter/internal/slippage"
)

const testAsset = "24"

var (
	day1 = time.Date(2006, 1, 5, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2006, 1, 6, 0, 0, 0, 0, time.UTC)
)

func newTestReader(t *testing.T) *bars.MemoryReader {
	t.Helper()
	reader := bars.NewMemoryReader(bars.Daily)
	if err := reader.Add(testAsset, flatBar(day1, 50, 100), flatBar(day2, 50, 400)); err != nil {
		t.Fatalf("add bars: %v", err)
	}
	return reader
}

func flatBar(dt time.Time, price int64, volume int64) bars.Bar {
	p := decimal.NewFromInt(price)
	return bars.Bar{Dt: dt, Open: p, High: p, Low: p, Close: p, Volume: volume}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("order-%d", n)
	}
}

func newTestBlotter(opts Options) *Blotter {
	if opts.IDGenerator == nil {
		opts.IDGenerator = sequentialIDs()
	}
	return New(bars.Daily, opts, nil)
}

func mustOrder(t *testing.T, b *Blotter, asset string, amount int64, style execution.Style) string {
	t.Helper()
	id, err := b.Order(asset, amount, style)
	if err != nil {
		t.Fatalf("order returned error: %v", err)
	}
	if id == "" {
		t.Fatalf("order returned empty id")
	}
	return id
}

func mustGet(t *testing.T, b *Blotter, id string) order.Order {
	t.Helper()
	o, ok := b.GetOrder(id)
	if !ok {
		t.Fatalf("order %s not found", id)
	}
	return o
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestBlotterOrderTypes(t *testing.T) {
	cases := []struct {
		name      string
		style     execution.Style
		wantLimit *decimal.Decimal
		wantStop  *decimal.Decimal
	}{
		{"market", execution.MarketOrder{}, nil, nil},
		{"limit", execution.NewLimitOrder(dec(10)), ptr(dec(10)), nil},
		{"stop", execution.NewStopOrder(dec(10)), nil, ptr(dec(10))},
		{"stop_limit", execution.NewStopLimitOrder(dec(10), dec(20)), ptr(dec(10)), ptr(dec(20))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBlotter(Options{})
			mustOrder(t, b, testAsset, 100, tc.style)

			open := b.OpenOrders(testAsset)
			if len(open) != 1 {
				t.Fatalf("expected 1 open order, got %d", len(open))
			}
			assertPrice(t, "limit", open[0].Limit, tc.wantLimit)
			assertPrice(t, "stop", open[0].Stop, tc.wantStop)
		})
	}
}

func assertPrice(t *testing.T, name string, get func() (decimal.Decimal, bool), want *decimal.Decimal) {
	t.Helper()
	got, ok := get()
	if want == nil {
		if ok {
			t.Errorf("expected no %s, got %s", name, got)
		}
		return
	}
	if !ok || !got.Equal(*want) {
		t.Errorf("expected %s=%s, got %s (set=%v)", name, want, got, ok)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestOrderRejection(t *testing.T) {
	b := newTestBlotter(Options{})

	if outcome := b.Reject("56", ""); outcome != order.IgnoredUnknown {
		t.Fatalf("expected ignored_unknown, got %s", outcome)
	}
	if n := len(b.NewOrders()); n != 0 {
		t.Fatalf("expected no new orders, got %d", n)
	}

	firstID := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	secondID := mustOrder(t, b, testAsset, 50, execution.MarketOrder{})
	open := b.OpenOrders(testAsset)
	if len(open) != 2 {
		t.Fatalf("expected 2 open orders, got %d", len(open))
	}
	if open[0].ID() != firstID || open[0].Status() != order.StatusOpen {
		t.Fatalf("unexpected head of queue: %s", open[0])
	}

	if outcome := b.Reject(firstID, ""); outcome != order.Applied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	newOrders := b.NewOrders()
	if len(newOrders) != 2 {
		t.Fatalf("expected 2 new orders, got %d", len(newOrders))
	}
	if n := len(b.OpenOrders(testAsset)); n != 1 {
		t.Fatalf("expected 1 open order, got %d", n)
	}
	if newOrders[0].ID() != secondID || newOrders[0].Status() != order.StatusOpen {
		t.Errorf("expected second order still open at head, got %s", newOrders[0])
	}
	if newOrders[1].ID() != firstID || newOrders[1].Status() != order.StatusRejected {
		t.Errorf("expected rejected order at tail, got %s", newOrders[1])
	}
	if newOrders[1].Reason() != "" {
		t.Errorf("expected empty reason, got %q", newOrders[1].Reason())
	}
}

func TestOrderRejectionAfterDrain(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 10, execution.MarketOrder{})
	b.ClearNewOrders()

	const reason = "Not enough cash on hand."
	b.Reject(id, reason)

	newOrders := b.NewOrders()
	if len(newOrders) != 1 {
		t.Fatalf("expected 1 new order, got %d", len(newOrders))
	}
	if newOrders[0].ID() != id || newOrders[0].Status() != order.StatusRejected {
		t.Fatalf("unexpected order %s", newOrders[0])
	}
	if newOrders[0].Reason() != reason {
		t.Errorf("expected reason %q, got %q", reason, newOrders[0].Reason())
	}
}

func TestFilledOrderCannotBeRejected(t *testing.T) {
	fixed, err := slippage.NewFixed(decimal.Zero)
	if err != nil {
		t.Fatalf("new fixed: %v", err)
	}
	b := newTestBlotter(Options{Slippage: fixed})
	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})

	b.SetCurrentDt(day2)
	report, err := b.GetTransactions(newTestReader(t))
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if len(report.Transactions) != 1 || report.Transactions[0].OrderID != id {
		t.Fatalf("expected a single transaction for %s, got %+v", id, report.Transactions)
	}

	filled := mustGet(t, b, id)
	if filled.Status() != order.StatusFilled {
		t.Fatalf("expected FILLED, got %s", filled.Status())
	}
	if !containsOrder(b.NewOrders(), id) {
		t.Errorf("expected filled order in new orders")
	}
	if containsOrder(b.OpenOrders(testAsset), id) {
		t.Errorf("filled order still open")
	}

	if outcome := b.Reject(id, ""); outcome != order.IgnoredTerminal {
		t.Errorf("expected ignored_terminal, got %s", outcome)
	}
	if got := mustGet(t, b, id).Status(); got != order.StatusFilled {
		t.Errorf("expected FILLED after reject, got %s", got)
	}
}

func containsOrder(orders []order.Order, id string) bool {
	for _, o := range orders {
		if o.ID() == id {
			return true
		}
	}
	return false
}

func TestOrderHold(t *testing.T) {
	b := newTestBlotter(Options{})

	if outcome := b.Hold("56", ""); outcome != order.IgnoredUnknown {
		t.Fatalf("expected ignored_unknown, got %s", outcome)
	}
	if n := len(b.NewOrders()); n != 0 {
		t.Fatalf("expected no new orders, got %d", n)
	}

	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	b.Hold(id, "")

	newOrders := b.NewOrders()
	if len(newOrders) != 1 {
		t.Fatalf("expected 1 new order, got %d", len(newOrders))
	}
	if n := len(b.OpenOrders(testAsset)); n != 0 {
		t.Fatalf("expected held order out of open orders, got %d", n)
	}
	if newOrders[0].Status() != order.StatusHeld || newOrders[0].Reason() != "" {
		t.Fatalf("expected HELD with empty reason, got %s reason=%q", newOrders[0].Status(), newOrders[0].Reason())
	}
	if held := b.HeldOrders(testAsset); len(held) != 1 || held[0].ID() != id {
		t.Fatalf("expected order in held list, got %v", held)
	}

	b.Cancel(id, "")
	newOrders = b.NewOrders()
	if len(newOrders) != 1 || newOrders[0].ID() != id {
		t.Fatalf("expected the cancelled order as sole new order, got %v", newOrders)
	}
	if newOrders[0].Status() != order.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", newOrders[0].Status())
	}
	if n := len(b.HeldOrders(testAsset)); n != 0 {
		t.Fatalf("cancelled order still held")
	}
}

func TestHeldOrderFill(t *testing.T) {
	cases := []struct {
		volume int64
		dt     time.Time
		policy order.HeldFillPolicy
		status order.Status
	}{
		{100, day1, order.ReopenOnFill, order.StatusOpen},
		{400, day2, order.ReopenOnFill, order.StatusFilled},
		{100, day1, order.KeepHeld, order.StatusHeld},
		{400, day2, order.KeepHeld, order.StatusFilled},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%s", tc.volume, tc.policy), func(t *testing.T) {
			const orderSize = int64(100)
			expectedFilled := decimal.NewFromInt(tc.volume).Mul(slippage.DefaultVolumeLimit).Floor().IntPart()
			expectedOpen := orderSize - expectedFilled

			b := newTestBlotter(Options{HeldFillPolicy: tc.policy})
			id := mustOrder(t, b, testAsset, orderSize, execution.MarketOrder{})
			b.Hold(id, "")

			b.SetCurrentDt(tc.dt)
			report, err := b.GetTransactions(newTestReader(t))
			if err != nil {
				t.Fatalf("get transactions: %v", err)
			}
			if len(report.Transactions) != 1 {
				t.Fatalf("expected 1 transaction, got %d", len(report.Transactions))
			}

			filled := mustGet(t, b, report.Transactions[0].OrderID)
			if filled.ID() != id {
				t.Fatalf("transaction for unexpected order %s", filled.ID())
			}
			if filled.Status() != tc.status {
				t.Errorf("expected status %s, got %s", tc.status, filled.Status())
			}
			if filled.Filled() != expectedFilled {
				t.Errorf("expected filled %d, got %d", expectedFilled, filled.Filled())
			}
			if filled.OpenAmount() != expectedOpen {
				t.Errorf("expected open %d, got %d", expectedOpen, filled.OpenAmount())
			}
		})
	}
}

func TestHeldOrderReopensIntoOpenOrders(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	b.Hold(id, "waiting")

	b.SetCurrentDt(day1)
	if _, err := b.GetTransactions(newTestReader(t)); err != nil {
		t.Fatalf("get transactions: %v", err)
	}

	open := b.OpenOrders(testAsset)
	if len(open) != 1 || open[0].ID() != id {
		t.Fatalf("expected reopened order in open orders, got %v", open)
	}
	if open[0].Reason() != "" {
		t.Errorf("expected hold reason cleared on reopen, got %q", open[0].Reason())
	}
}

func TestVolumeIsSharedFIFO(t *testing.T) {
	b := newTestBlotter(Options{Commission: commission.Free{}})
	first := mustOrder(t, b, testAsset, 20, execution.MarketOrder{})
	second := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	third := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})

	b.SetCurrentDt(day2)
	report, err := b.GetTransactions(newTestReader(t))
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}

	if len(report.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(report.Transactions))
	}
	if tx := report.Transactions[0]; tx.OrderID != first || tx.Amount != 20 {
		t.Errorf("unexpected first transaction %+v", tx)
	}
	if tx := report.Transactions[1]; tx.OrderID != second || tx.Amount != 80 {
		t.Errorf("unexpected second transaction %+v", tx)
	}
	if got := mustGet(t, b, third).Filled(); got != 0 {
		t.Errorf("expected third order unfilled, got %d", got)
	}

	open := b.OpenOrders(testAsset)
	if len(open) != 2 || open[0].ID() != second || open[1].ID() != third {
		t.Errorf("unexpected open orders after fill: %v", open)
	}
	if len(report.Commissions) != 0 {
		t.Errorf("expected no commission lines, got %d", len(report.Commissions))
	}
}

func TestSellOrderFillsNegativeAmount(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, -60, execution.MarketOrder{})

	b.SetCurrentDt(day1)
	report, err := b.GetTransactions(newTestReader(t))
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if len(report.Transactions) != 1 || report.Transactions[0].Amount != -25 {
		t.Fatalf("expected single -25 transaction, got %+v", report.Transactions)
	}
	o := mustGet(t, b, id)
	if o.Filled() != -25 || o.OpenAmount() != -35 {
		t.Errorf("expected filled=-25 open=-35, got filled=%d open=%d", o.Filled(), o.OpenAmount())
	}
}

func TestFillsAcrossBarsPreserveAmounts(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 120, execution.MarketOrder{})
	reader := newTestReader(t)

	var total int64
	for _, dt := range []time.Time{day1, day2} {
		b.SetCurrentDt(dt)
		report, err := b.GetTransactions(reader)
		if err != nil {
			t.Fatalf("get transactions: %v", err)
		}
		for _, tx := range report.Transactions {
			total += tx.Amount
		}
		o := mustGet(t, b, id)
		if o.Filled() != total {
			t.Errorf("filled %d differs from sum of transactions %d", o.Filled(), total)
		}
		if o.Filled()+o.OpenAmount() != o.Amount() {
			t.Errorf("filled + open != amount at %s", dt)
		}
		b.ClearNewOrders()
	}

	o := mustGet(t, b, id)
	if o.Status() != order.StatusFilled || o.Filled() != 120 {
		t.Fatalf("expected FILLED 120, got %s %d", o.Status(), o.Filled())
	}
	if !o.Dt().Equal(day2) {
		t.Errorf("expected dt %s, got %s", day2, o.Dt())
	}
}

func TestCommissionLines(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})

	b.SetCurrentDt(day1)
	report, err := b.GetTransactions(newTestReader(t))
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if len(report.Commissions) != 1 {
		t.Fatalf("expected one commission line, got %d", len(report.Commissions))
	}
	line := report.Commissions[0]
	if line.OrderID != id || !line.Cost.Equal(commission.DefaultMinTradeCost) {
		t.Errorf("unexpected commission line %+v", line)
	}
	if !report.TotalCommission().Equal(commission.DefaultMinTradeCost) {
		t.Errorf("unexpected total commission %s", report.TotalCommission())
	}
	if !mustGet(t, b, id).Commission().Equal(commission.DefaultMinTradeCost) {
		t.Errorf("order commission not accumulated")
	}
}

func TestNoDataIsNotFatal(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	other := mustOrder(t, b, "unknown", 100, execution.MarketOrder{})
	reader := newTestReader(t)

	for _, dt := range []time.Time{day1.AddDate(0, 0, -3), day2.AddDate(0, 0, 3)} {
		b.SetCurrentDt(dt)
		report, err := b.GetTransactions(reader)
		if err != nil {
			t.Fatalf("expected no error at %s, got %v", dt, err)
		}
		if len(report.Transactions) != 0 {
			t.Fatalf("expected no transactions at %s", dt)
		}
	}

	for _, check := range []string{id, other} {
		if o := mustGet(t, b, check); o.Status() != order.StatusOpen || o.Filled() != 0 {
			t.Errorf("order %s changed without data: %s", check, o)
		}
	}
}

type failingReader struct {
	*bars.MemoryReader
}

func (failingReader) GetBar(string, time.Time) (bars.Bar, error) {
	return bars.Bar{}, errors.New("disk on fire")
}

func TestReaderFailureIsReturned(t *testing.T) {
	b := newTestBlotter(Options{})
	mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	b.SetCurrentDt(day1)

	_, err := b.GetTransactions(failingReader{bars.NewMemoryReader(bars.Daily)})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestFrequencyMismatch(t *testing.T) {
	b := New(bars.Minute, Options{}, nil)
	_, err := b.GetTransactions(newTestReader(t))
	if !errors.Is(err, ErrFrequencyMismatch) {
		t.Fatalf("expected ErrFrequencyMismatch, got %v", err)
	}
}

func TestZeroAmountOrderIsIgnored(t *testing.T) {
	b := newTestBlotter(Options{})
	id, err := b.Order(testAsset, 0, execution.MarketOrder{})
	if err != nil || id != "" {
		t.Fatalf("expected silent no-op, got id=%q err=%v", id, err)
	}
	if len(b.Orders()) != 0 || len(b.NewOrders()) != 0 {
		t.Fatalf("zero amount order was recorded")
	}
}

func TestInvalidStyleIsRejected(t *testing.T) {
	b := newTestBlotter(Options{})
	_, err := b.Order(testAsset, 10, execution.NewLimitOrder(dec(-1)))
	if !errors.Is(err, execution.ErrInvalidStyle) {
		t.Fatalf("expected ErrInvalidStyle, got %v", err)
	}
	_, err = b.Order(testAsset, 10, nil)
	if !errors.Is(err, execution.ErrInvalidStyle) {
		t.Fatalf("expected ErrInvalidStyle for nil style, got %v", err)
	}
	if _, err = b.Order(" ", 10, execution.MarketOrder{}); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestTerminalOrdersIgnoreMutations(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 10, execution.MarketOrder{})
	b.Cancel(id, "")
	b.ClearNewOrders()

	for name, fn := range map[string]func(string, string) order.Outcome{
		"cancel": b.Cancel,
		"reject": b.Reject,
		"hold":   b.Hold,
	} {
		if outcome := fn(id, "late"); outcome != order.IgnoredTerminal {
			t.Errorf("%s: expected ignored_terminal, got %s", name, outcome)
		}
	}
	if n := len(b.NewOrders()); n != 0 {
		t.Errorf("ignored mutations touched new orders: %d", n)
	}
	if got := mustGet(t, b, id); got.Status() != order.StatusCancelled || got.Reason() != "" {
		t.Errorf("terminal order changed: %s reason=%q", got.Status(), got.Reason())
	}
}

func TestSlippageContractViolationPanics(t *testing.T) {
	greedy := slippage.ModelFunc(func(o order.Order, bar bars.Bar, _ int64) slippage.Fill {
		return slippage.Fill{Price: bar.Close, Amount: o.OpenAmount() + 1}
	})
	b := newTestBlotter(Options{Slippage: greedy})
	mustOrder(t, b, testAsset, 10, execution.MarketOrder{})
	b.SetCurrentDt(day1)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for oversized fill")
		}
	}()
	_, _ = b.GetTransactions(newTestReader(t))
}

func TestSlippageLimitViolationPanics(t *testing.T) {
	careless := slippage.ModelFunc(func(o order.Order, bar bars.Bar, _ int64) slippage.Fill {
		return slippage.Fill{Price: bar.Close, Amount: o.OpenAmount()}
	})
	b := newTestBlotter(Options{Slippage: careless})
	mustOrder(t, b, testAsset, 10, execution.NewLimitOrder(dec(40)))
	b.SetCurrentDt(day1)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for fill above limit")
		}
	}()
	_, _ = b.GetTransactions(newTestReader(t))
}

func TestStopOrderStaysTriggered(t *testing.T) {
	reader := bars.NewMemoryReader(bars.Daily)
	d1, d2, d3 := day1, day2, day2.AddDate(0, 0, 1)
	err := reader.Add("AAPL",
		bars.Bar{Dt: d1, Open: dec(9), High: dec(9), Low: dec(8), Close: dec(9), Volume: 0},
		bars.Bar{Dt: d2, Open: dec(9), High: dec(12), Low: dec(9), Close: dec(11), Volume: 0},
		bars.Bar{Dt: d3, Open: dec(9), High: dec(9), Low: dec(8), Close: dec(9), Volume: 1000},
	)
	if err != nil {
		t.Fatalf("add bars: %v", err)
	}

	trigger := slippage.ModelFunc(func(o order.Order, bar bars.Bar, consumed int64) slippage.Fill {
		triggered, eligible := slippage.CheckTriggers(o, bar)
		fill := slippage.Fill{StopTriggered: triggered}
		if eligible && bar.Volume > 0 {
			fill.Price = bar.Close
			fill.Amount = o.OpenAmount()
		}
		return fill
	})

	b := newTestBlotter(Options{Slippage: trigger})
	id := mustOrder(t, b, "AAPL", 10, execution.NewStopOrder(dec(10)))

	for _, dt := range []time.Time{d1, d2} {
		b.SetCurrentDt(dt)
		if _, err := b.GetTransactions(reader); err != nil {
			t.Fatalf("get transactions: %v", err)
		}
	}
	if !mustGet(t, b, id).StopReached() {
		t.Fatalf("expected stop reached after day 2")
	}

	b.SetCurrentDt(d3)
	report, err := b.GetTransactions(reader)
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if len(report.Transactions) != 1 || !report.Transactions[0].Price.Equal(dec(9)) {
		t.Fatalf("expected fill at 9 once stop reached, got %+v", report.Transactions)
	}
}

func TestCrossAssetOrderIsDeterministic(t *testing.T) {
	reader := bars.NewMemoryReader(bars.Daily)
	for _, asset := range []string{"MSFT", "AAPL", "GOOG"} {
		if err := reader.Add(asset, flatBar(day1, 10, 1000)); err != nil {
			t.Fatalf("add bars: %v", err)
		}
	}

	b := newTestBlotter(Options{})
	for _, asset := range []string{"MSFT", "AAPL", "GOOG"} {
		mustOrder(t, b, asset, 10, execution.MarketOrder{})
	}
	b.SetCurrentDt(day1)
	report, err := b.GetTransactions(reader)
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}

	var got []string
	for _, tx := range report.Transactions {
		got = append(got, tx.Asset)
	}
	if strings.Join(got, ",") != "AAPL,GOOG,MSFT" {
		t.Errorf("unexpected asset order %v", got)
	}
	if assets := b.OpenAssets(); len(assets) != 0 {
		t.Errorf("expected no open assets, got %v", assets)
	}
}

func TestDrainNewOrders(t *testing.T) {
	b := newTestBlotter(Options{})
	first := mustOrder(t, b, testAsset, 10, execution.MarketOrder{})
	mustOrder(t, b, testAsset, 10, execution.MarketOrder{})
	b.Hold(first, "")

	drained := b.DrainNewOrders()
	if len(drained) != 2 || drained[1].ID() != first {
		t.Fatalf("unexpected drain result %v", drained)
	}
	if n := len(b.NewOrders()); n != 0 {
		t.Fatalf("expected empty new orders after drain, got %d", n)
	}
	if n := len(b.Orders()); n != 2 {
		t.Fatalf("expected all orders retained, got %d", n)
	}
}

func TestOrderAmountOutOfRange(t *testing.T) {
	b := newTestBlotter(Options{})
	b.SetCurrentDt(day1)

	id, err := b.Order(testAsset, math.MinInt64, execution.MarketOrder{})
	if !errors.Is(err, order.ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got id=%q err=%v", id, err)
	}
	if len(b.Orders()) != 0 || len(b.NewOrders()) != 0 {
		t.Fatalf("rejected amount must not create an order")
	}

	sell := mustOrder(t, b, testAsset, math.MinInt64+1, execution.MarketOrder{})
	report, err := b.GetTransactions(newTestReader(t))
	if err != nil {
		t.Fatalf("GetTransactions returned error: %v", err)
	}
	if len(report.Transactions) != 1 || report.Transactions[0].Amount != -25 {
		t.Fatalf("expected a single -25 fill, got %+v", report.Transactions)
	}
	if o := mustGet(t, b, sell); o.Filled() != -25 || o.Status() != order.StatusOpen {
		t.Fatalf("unexpected order after fill: %s", o)
	}
}

func TestCancelOverwritesHoldReason(t *testing.T) {
	b := newTestBlotter(Options{})
	id := mustOrder(t, b, testAsset, 100, execution.MarketOrder{})
	b.Hold(id, "waiting")
	b.Cancel(id, "")

	o := mustGet(t, b, id)
	if o.Status() != order.StatusCancelled || o.Reason() != "" {
		t.Fatalf("expected CANCELLED with empty reason, got %s reason=%q", o.Status(), o.Reason())
	}
}
