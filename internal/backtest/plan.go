package backtest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"backtest-blotter/internal/execution"
)

// Action 为下单计划中的指令类型。
type Action string

const (
	ActionOrder  Action = "order"
	ActionCancel Action = "cancel"
	ActionHold   Action = "hold"
	ActionReject Action = "reject"
)

// Instruction 为下单计划中的一行。
type Instruction struct {
	Line   int
	Dt     time.Time
	Action Action
	Asset  string
	Amount int64
	Style  execution.Style
	Reason string
}

func (i Instruction) String() string {
	switch i.Action {
	case ActionOrder:
		return fmt.Sprintf("%s order %s %d %s", i.Dt.Format(time.RFC3339), i.Asset, i.Amount, styleName(i.Style))
	default:
		return strings.TrimSpace(fmt.Sprintf("%s %s %s %s", i.Dt.Format(time.RFC3339), i.Action, i.Asset, i.Reason))
	}
}

// Plan 为按时间排序的指令序列；同一时间的指令保持书写顺序。
type Plan []Instruction

// ParsePlan 解析下单计划文本，每行一条指令，# 之后为注释：
//
//	2006-01-05 order AAPL 100 limit 50.5
//	2006-01-06 cancel AAPL stale
//
// 所有行的错误一并返回。
func ParsePlan(r io.Reader) (Plan, error) {
	scanner := bufio.NewScanner(r)
	var (
		plan Plan
		errs error
		line int
	)
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if idx := strings.Index(text, "#"); idx >= 0 {
			text = text[:idx]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		inst, err := parseInstruction(fields)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		inst.Line = line
		plan = append(plan, inst)
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return nil, fmt.Errorf("backtest: 解析下单计划失败: %w", errs)
	}

	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Dt.Before(plan[j].Dt) })
	return plan, nil
}

// ParsePlanString 解析字符串形式的下单计划。
func ParsePlanString(text string) (Plan, error) {
	return ParsePlan(strings.NewReader(text))
}

func parseInstruction(fields []string) (Instruction, error) {
	if len(fields) < 3 {
		return Instruction{}, fmt.Errorf("expected '<date> <action> <asset> ...', got %q", strings.Join(fields, " "))
	}
	dt, err := parseDate(fields[0])
	if err != nil {
		return Instruction{}, err
	}

	inst := Instruction{
		Dt:     dt,
		Action: Action(strings.ToLower(fields[1])),
		Asset:  fields[2],
	}
	rest := fields[3:]

	switch inst.Action {
	case ActionOrder:
		if len(rest) == 0 {
			return Instruction{}, fmt.Errorf("order %s: missing amount", inst.Asset)
		}
		if inst.Amount, err = strconv.ParseInt(rest[0], 10, 64); err != nil {
			return Instruction{}, fmt.Errorf("order %s: parse amount %q: %w", inst.Asset, rest[0], err)
		}
		if inst.Style, err = parseStyle(rest[1:]); err != nil {
			return Instruction{}, fmt.Errorf("order %s: %w", inst.Asset, err)
		}
	case ActionCancel, ActionHold, ActionReject:
		inst.Reason = strings.Join(rest, " ")
	default:
		return Instruction{}, fmt.Errorf("unknown action %q", fields[1])
	}
	return inst, nil
}

func parseStyle(fields []string) (execution.Style, error) {
	if len(fields) == 0 {
		return execution.MarketOrder{}, nil
	}
	prices := make([]decimal.Decimal, 0, len(fields)-1)
	for _, raw := range fields[1:] {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", raw, err)
		}
		prices = append(prices, p)
	}
	return execution.Parse(fields[0], prices...)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse date %q: expected 2006-01-02 or RFC3339", raw)
}

func styleName(s execution.Style) string {
	switch v := s.(type) {
	case execution.LimitOrder:
		return "limit " + v.Limit.String()
	case execution.StopOrder:
		return "stop " + v.Stop.String()
	case execution.StopLimitOrder:
		return "stoplimit " + v.Limit.String() + " " + v.Stop.String()
	default:
		return "market"
	}
}
