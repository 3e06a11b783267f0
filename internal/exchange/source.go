package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backtest-blotter/internal/bars"
)

// Source 将多个交易对的K线作为数据包导入源，满足 bundle.Source。
type Source struct {
	fetcher   CandleFetcher
	markets   []string
	timeframe string
	limit     int64
	logger    *zap.Logger
}

// NewSource 创建交易所K线导入源。
func NewSource(fetcher CandleFetcher, markets []string, timeframe string, limit int64, logger *zap.Logger) (*Source, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("exchange: fetcher 不能为空")
	}
	cleaned := make([]string, 0, len(markets))
	for _, m := range markets {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("exchange: 至少需要一个交易对")
	}
	if timeframe == "" {
		timeframe = TimeframeDaily
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		fetcher:   fetcher,
		markets:   cleaned,
		timeframe: timeframe,
		limit:     limit,
		logger:    logger,
	}, nil
}

// Name 返回数据来源描述。
func (s *Source) Name() string {
	return fmt.Sprintf("exchange:%s:%s", s.timeframe, strings.Join(s.markets, ","))
}

// Load 并发拉取全部交易对的K线。
func (s *Source) Load(ctx context.Context) (map[string][]bars.Bar, error) {
	var (
		mu  sync.Mutex
		out = make(map[string][]bars.Bar, len(s.markets))
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, market := range s.markets {
		group.Go(func() error {
			candles, err := s.fetcher.FetchCandles(groupCtx, market, s.timeframe, s.limit)
			if err != nil {
				return fmt.Errorf("exchange: 拉取 %s K线失败: %w", market, err)
			}
			converted := ToBars(candles)

			mu.Lock()
			out[market] = converted
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("交易所K线拉取完成",
		zap.Strings("markets", s.markets),
		zap.String("timeframe", s.timeframe),
	)
	return out, nil
}

// ToBars 将交易所K线转换为 bars.Bar，成交量向下取整。
func ToBars(candles []Candle) []bars.Bar {
	out := make([]bars.Bar, 0, len(candles))
	for _, c := range candles {
		out = append(out, bars.Bar{
			Dt:     c.Timestamp,
			Open:   decimal.NewFromFloat(c.Open),
			High:   decimal.NewFromFloat(c.High),
			Low:    decimal.NewFromFloat(c.Low),
			Close:  decimal.NewFromFloat(c.Close),
			Volume: decimal.NewFromFloat(c.Volume).Floor().IntPart(),
		})
	}
	return out
}
