package bundle

import (
	"context"
	"errors"
	"time"

	"backtest-blotter/internal/bars"
)

var (
	// ErrNoIngestions 表示数据包没有可用的导入记录。
	ErrNoIngestions = errors.New("bundle: no ingestions")
	// ErrBadClean 表示清理参数组合不合法。
	ErrBadClean = errors.New("bundle: keep_last cannot be combined with before/after, and one of them is required")
)

// Source 提供一次导入所需的多资产K线。
type Source interface {
	// Name 返回数据来源描述，写入导入记录。
	Name() string
	// Load 返回按资产分组的K线。
	Load(ctx context.Context) (map[string][]bars.Bar, error)
}

// Ingestion 描述一次导入。
type Ingestion struct {
	ID         int64          `json:"id"`
	Bundle     string         `json:"bundle"`
	Frequency  bars.Frequency `json:"frequency"`
	Source     string         `json:"source"`
	IngestedAt time.Time      `json:"ingested_at"`
	Assets     int            `json:"assets"`
	Bars       int            `json:"bars"`
}

// CleanOptions 控制需要清理的导入记录。
// KeepLast 为 nil 时按 Before/After 清理，二者不能同时使用。
type CleanOptions struct {
	Before   *time.Time
	After    *time.Time
	KeepLast *int
}

func (o CleanOptions) validate() error {
	hasRange := o.Before != nil || o.After != nil
	if o.KeepLast != nil {
		if hasRange || *o.KeepLast < 0 {
			return ErrBadClean
		}
		return nil
	}
	if !hasRange {
		return ErrBadClean
	}
	return nil
}
