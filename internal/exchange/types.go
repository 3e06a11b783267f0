package exchange

import (
	"context"
	"time"
)

// TimeframeDaily 为日线周期。
const TimeframeDaily = "1d"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CandleFetcher 拉取指定交易对的历史K线。
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int64) ([]Candle, error)
}
