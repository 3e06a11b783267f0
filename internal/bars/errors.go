package bars

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDataBeforeDate 表示时间早于资产首个交易时段。
	ErrNoDataBeforeDate = errors.New("bars: no data before asset start date")
	// ErrNoDataAfterDate 表示时间晚于资产最后交易时段。
	ErrNoDataAfterDate = errors.New("bars: no data after asset end date")
	// ErrNoDataOnDate 表示该时段在资产存续期内但没有K线。
	ErrNoDataOnDate = errors.New("bars: no data on date")
	// ErrUnknownAsset 表示读取器不认识该资产。
	ErrUnknownAsset = errors.New("bars: unknown asset")
)

// NoDataError 描述一次无数据查询。
type NoDataError struct {
	Asset string
	Dt    time.Time
	Kind  error
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%s: asset=%s dt=%s", e.Kind.Error(), e.Asset, e.Dt.Format(time.RFC3339))
}

func (e *NoDataError) Unwrap() error {
	return e.Kind
}

// IsNoData 判断错误是否表示"本周期无数据"，这类错误只意味着不成交。
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoDataBeforeDate) ||
		errors.Is(err, ErrNoDataAfterDate) ||
		errors.Is(err, ErrNoDataOnDate) ||
		errors.Is(err, ErrUnknownAsset)
}
