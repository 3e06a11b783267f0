package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidStyle 表示执行方式参数非法。
var ErrInvalidStyle = errors.New("execution: invalid execution style")

// Style 将下单请求转换为限价与止损价。
type Style interface {
	// LimitPrice 返回限价，未设置时为 nil。
	LimitPrice(isBuy bool) *decimal.Decimal
	// StopPrice 返回止损触发价，未设置时为 nil。
	StopPrice(isBuy bool) *decimal.Decimal
	// Validate 校验参数是否合法。
	Validate() error
}

// MarketOrder 以当前价格成交，不设限价和止损价。
type MarketOrder struct{}

func (MarketOrder) LimitPrice(bool) *decimal.Decimal { return nil }
func (MarketOrder) StopPrice(bool) *decimal.Decimal  { return nil }
func (MarketOrder) Validate() error                  { return nil }

// LimitOrder 买单不高于、卖单不低于限价成交。
type LimitOrder struct {
	Limit decimal.Decimal
}

// NewLimitOrder 创建限价单执行方式。
func NewLimitOrder(limit decimal.Decimal) LimitOrder {
	return LimitOrder{Limit: limit}
}

func (s LimitOrder) LimitPrice(bool) *decimal.Decimal { return ptr(s.Limit) }
func (LimitOrder) StopPrice(bool) *decimal.Decimal    { return nil }
func (s LimitOrder) Validate() error                  { return checkPrice("limit", s.Limit) }

// StopOrder 价格穿越止损价后转为市价单。
type StopOrder struct {
	Stop decimal.Decimal
}

// NewStopOrder 创建止损单执行方式。
func NewStopOrder(stop decimal.Decimal) StopOrder {
	return StopOrder{Stop: stop}
}

func (StopOrder) LimitPrice(bool) *decimal.Decimal  { return nil }
func (s StopOrder) StopPrice(bool) *decimal.Decimal { return ptr(s.Stop) }
func (s StopOrder) Validate() error                 { return checkPrice("stop", s.Stop) }

// StopLimitOrder 价格穿越止损价后转为限价单。
type StopLimitOrder struct {
	Limit decimal.Decimal
	Stop  decimal.Decimal
}

// NewStopLimitOrder 创建止损限价单执行方式。
func NewStopLimitOrder(limit, stop decimal.Decimal) StopLimitOrder {
	return StopLimitOrder{Limit: limit, Stop: stop}
}

func (s StopLimitOrder) LimitPrice(bool) *decimal.Decimal { return ptr(s.Limit) }
func (s StopLimitOrder) StopPrice(bool) *decimal.Decimal  { return ptr(s.Stop) }

func (s StopLimitOrder) Validate() error {
	if err := checkPrice("limit", s.Limit); err != nil {
		return err
	}
	return checkPrice("stop", s.Stop)
}

// Parse 根据文本描述构建执行方式，如 "limit 10" 或 "stoplimit 10 20"。
func Parse(kind string, prices ...decimal.Decimal) (Style, error) {
	normalized := strings.ToLower(strings.TrimSpace(kind))
	want := 0
	var style Style
	switch normalized {
	case "", "market":
		style = MarketOrder{}
	case "limit":
		want = 1
	case "stop":
		want = 1
	case "stoplimit", "stop_limit":
		want = 2
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidStyle, kind)
	}
	if len(prices) != want {
		return nil, fmt.Errorf("%w: %s expects %d price(s), got %d", ErrInvalidStyle, kind, want, len(prices))
	}

	switch want {
	case 1:
		if normalized == "limit" {
			style = NewLimitOrder(prices[0])
		} else {
			style = NewStopOrder(prices[0])
		}
	case 2:
		style = NewStopLimitOrder(prices[0], prices[1])
	}

	if err := style.Validate(); err != nil {
		return nil, err
	}
	return style, nil
}

func checkPrice(name string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: %s price must be positive, got %s", ErrInvalidStyle, name, price.String())
	}
	return nil
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
