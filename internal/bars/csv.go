package bars

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV 解析 date,open,high,low,close,volume 格式的K线文件，首行为表头。
// 日期支持 2006-01-02、RFC3339 与 Unix 秒。
func ReadCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("bars: csv is empty")
		}
		return nil, fmt.Errorf("bars: read csv header: %w", err)
	}

	positions, err := columnPositions(header)
	if err != nil {
		return nil, err
	}

	var out []Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("bars: read csv line %d: %w", line, err)
		}

		bar, err := parseRecord(record, positions)
		if err != nil {
			return nil, fmt.Errorf("bars: csv line %d: %w", line, err)
		}
		out = append(out, bar)
	}
	return out, nil
}

func columnPositions(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := positions["date"]; !ok {
		if idx, ok := positions["day"]; ok {
			positions["date"] = idx
		}
	}
	for _, col := range csvColumns {
		if _, ok := positions[col]; !ok {
			return nil, fmt.Errorf("bars: csv header missing column %q", col)
		}
	}
	return positions, nil
}

func parseRecord(record []string, positions map[string]int) (Bar, error) {
	field := func(name string) (string, error) {
		idx := positions[name]
		if idx >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[idx]), nil
	}

	raw, err := field("date")
	if err != nil {
		return Bar{}, err
	}
	dt, err := parseTime(raw)
	if err != nil {
		return Bar{}, err
	}

	var prices [4]decimal.Decimal
	for i, name := range csvColumns[1:5] {
		v, err := field(name)
		if err != nil {
			return Bar{}, err
		}
		prices[i], err = decimal.NewFromString(v)
		if err != nil {
			return Bar{}, fmt.Errorf("parse %s %q: %w", name, v, err)
		}
	}

	rawVolume, err := field("volume")
	if err != nil {
		return Bar{}, err
	}
	volume, err := parseVolume(rawVolume)
	if err != nil {
		return Bar{}, err
	}

	return Bar{
		Dt:     dt,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse date %q", raw)
}

// 成交量允许带小数，向下取整。
func parseVolume(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", raw, err)
	}
	return d.Floor().IntPart(), nil
}
