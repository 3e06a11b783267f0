package bars

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
)

type series struct {
	bars  []Bar
	index map[int64]int
}

// MemoryReader 在内存中保存多资产K线，满足 Reader 接口。
type MemoryReader struct {
	freq     Frequency
	assets   map[string]*series
	sessions []time.Time
}

// NewMemoryReader 创建指定周期的内存读取器。
func NewMemoryReader(freq Frequency) *MemoryReader {
	return &MemoryReader{
		freq:   freq,
		assets: make(map[string]*series),
	}
}

// Add 追加资产K线，时间戳按周期归一化；重复时段以后写入者为准。
func (r *MemoryReader) Add(asset string, bars ...Bar) error {
	if asset == "" {
		return fmt.Errorf("bars: asset 不能为空")
	}

	var errs error
	normalized := make([]Bar, 0, len(bars))
	for _, b := range bars {
		b.Dt = r.freq.Normalize(b.Dt)
		if err := b.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", asset, err))
			continue
		}
		normalized = append(normalized, b)
	}
	if errs != nil {
		return errs
	}

	s, ok := r.assets[asset]
	if !ok {
		s = &series{index: make(map[int64]int)}
	}
	for _, b := range normalized {
		key := b.Dt.UnixNano()
		if idx, exists := s.index[key]; exists {
			s.bars[idx] = b
			continue
		}
		s.index[key] = len(s.bars)
		s.bars = append(s.bars, b)
	}

	sort.Slice(s.bars, func(i, j int) bool { return s.bars[i].Dt.Before(s.bars[j].Dt) })
	for i, b := range s.bars {
		s.index[b.Dt.UnixNano()] = i
	}
	r.assets[asset] = s
	r.rebuildSessions()
	return nil
}

func (r *MemoryReader) rebuildSessions() {
	seen := make(map[int64]struct{})
	sessions := make([]time.Time, 0, len(r.sessions))
	for _, s := range r.assets {
		for _, b := range s.bars {
			key := b.Dt.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			sessions = append(sessions, b.Dt)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Before(sessions[j]) })
	r.sessions = sessions
}

// Frequency 实现 Reader。
func (r *MemoryReader) Frequency() Frequency {
	return r.freq
}

// Sessions 返回所有资产时段的并集。
func (r *MemoryReader) Sessions() []time.Time {
	return append([]time.Time(nil), r.sessions...)
}

// Assets 返回已加载资产，按字典序排列。
func (r *MemoryReader) Assets() []string {
	out := make([]string, 0, len(r.assets))
	for asset := range r.assets {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Range 返回资产首末时段。
func (r *MemoryReader) Range(asset string) (time.Time, time.Time, bool) {
	s, ok := r.assets[asset]
	if !ok || len(s.bars) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.bars[0].Dt, s.bars[len(s.bars)-1].Dt, true
}

// GetBar 实现 Reader。
func (r *MemoryReader) GetBar(asset string, dt time.Time) (Bar, error) {
	s, ok := r.assets[asset]
	if !ok || len(s.bars) == 0 {
		return Bar{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	dt = r.freq.Normalize(dt)
	first, last := s.bars[0].Dt, s.bars[len(s.bars)-1].Dt
	switch {
	case dt.Before(first):
		return Bar{}, &NoDataError{Asset: asset, Dt: dt, Kind: ErrNoDataBeforeDate}
	case dt.After(last):
		return Bar{}, &NoDataError{Asset: asset, Dt: dt, Kind: ErrNoDataAfterDate}
	}

	idx, ok := s.index[dt.UnixNano()]
	if !ok {
		return Bar{}, &NoDataError{Asset: asset, Dt: dt, Kind: ErrNoDataOnDate}
	}
	return s.bars[idx], nil
}

var _ Reader = (*MemoryReader)(nil)
