package backtest

import "time"

// Config 定义回测参数。
type Config struct {
	RunID string    // 运行标识，写入日志表
	Start time.Time // 开始日期（含）
	End   time.Time // 结束日期（含）
}

func (c *Config) normalize() Config {
	cfg := *c
	cfg.Start = day(cfg.Start)
	cfg.End = day(cfg.End)
	return cfg
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (c Config) contains(session time.Time) bool {
	d := day(session)
	return !d.Before(c.Start) && !d.After(c.End)
}
