package bars

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency 表示K线采样周期。
type Frequency string

const (
	Daily  Frequency = "daily"
	Minute Frequency = "minute"
)

// ParseFrequency 解析周期字符串。
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Minute:
		return Minute, nil
	default:
		return "", fmt.Errorf("bars: unsupported frequency %q", s)
	}
}

// Normalize 将时间戳对齐到周期标签：日线取 UTC 零点，分钟线截断到分钟。
func (f Frequency) Normalize(t time.Time) time.Time {
	t = t.UTC()
	if f == Daily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Minute)
}

// Bar 为单个资产在一个采样周期内的 OHLCV 数据。
type Bar struct {
	Dt     time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Validate 检查价格区间与成交量是否自洽。
func (b Bar) Validate() error {
	if b.Dt.IsZero() {
		return errors.New("bars: bar timestamp is zero")
	}
	if b.Volume < 0 {
		return fmt.Errorf("bars: negative volume %d at %s", b.Volume, b.Dt.Format(time.RFC3339))
	}
	if b.Low.IsNegative() {
		return fmt.Errorf("bars: negative low %s at %s", b.Low, b.Dt.Format(time.RFC3339))
	}
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("bars: high %s below low %s at %s", b.High, b.Low, b.Dt.Format(time.RFC3339))
	}
	return nil
}

// Reader 按资产与时间戳提供 K 线。
type Reader interface {
	// Frequency 返回读取器服务的周期。
	Frequency() Frequency
	// Sessions 返回可查询的有序交易时段。
	Sessions() []time.Time
	// GetBar 返回资产在指定时段的K线；无数据时返回 *NoDataError 或 ErrUnknownAsset。
	GetBar(asset string, dt time.Time) (Bar, error)
}
