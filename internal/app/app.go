package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-blotter/internal/backtest"
	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/blotter"
	"backtest-blotter/internal/bundle"
	"backtest-blotter/internal/config"
	"backtest-blotter/internal/exchange"
	"backtest-blotter/internal/journal"
	"backtest-blotter/internal/store"
)

// App 聚合核心依赖，为命令行各子命令提供入口。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store

	bundles *bundle.Service
	journal *journal.Service
}

// New 创建 App 实例并初始化数据包与日志表。
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bundles, err := bundle.NewService(st, logger.Named("bundle"))
	if err != nil {
		return nil, err
	}
	jr, err := journal.NewService(st, logger.Named("journal"))
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		bundles: bundles,
		journal: jr,
	}, nil
}

// Journal 返回订单日志服务。
func (a *App) Journal() *journal.Service {
	return a.journal
}

// RunRequest 描述一次回测。
type RunRequest struct {
	Plan            backtest.Plan
	Start           time.Time
	End             time.Time
	DataFrequency   string
	Bundle          string
	BundleTimestamp time.Time
	RunID           string
}

// Run 加载数据包并执行回测，订单变更与成交写入日志表。
func (a *App) Run(ctx context.Context, req RunRequest) (backtest.Result, error) {
	freqName := req.DataFrequency
	if freqName == "" {
		freqName = a.cfg.Blotter.DataFrequency
	}
	freq, err := bars.ParseFrequency(freqName)
	if err != nil {
		return backtest.Result{}, err
	}
	name := req.Bundle
	if name == "" {
		name = a.cfg.Bundle.Default
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	reader, ing, err := a.bundles.Load(ctx, name, req.BundleTimestamp)
	if err != nil {
		return backtest.Result{}, err
	}
	if reader.Frequency() != freq {
		return backtest.Result{}, fmt.Errorf("%w: bundle %s is %s, run requested %s", blotter.ErrFrequencyMismatch, name, reader.Frequency(), freq)
	}

	b, err := newBlotter(a.cfg, freq, a.logger)
	if err != nil {
		return backtest.Result{}, err
	}

	engine, err := backtest.NewEngine(backtest.Config{
		RunID: runID,
		Start: req.Start,
		End:   req.End,
	}, b, reader, req.Plan, a.journal, a.logger.Named("backtest"))
	if err != nil {
		return backtest.Result{}, err
	}

	a.logger.Info("开始回测",
		zap.String("run_id", runID),
		zap.String("bundle", name),
		zap.Int64("ingestion_id", ing.ID),
		zap.String("frequency", string(freq)),
		zap.Int("instructions", len(req.Plan)),
	)
	return engine.Run(ctx)
}

// IngestRequest 描述一次数据导入，CSVDir 与 Markets 只能二选一。
type IngestRequest struct {
	Bundle        string
	DataFrequency string
	CSVDir        string
	Markets       []string
}

// Ingest 导入一份新的数据包快照。
func (a *App) Ingest(ctx context.Context, req IngestRequest) (bundle.Ingestion, error) {
	freqName := req.DataFrequency
	if freqName == "" {
		freqName = a.cfg.Blotter.DataFrequency
	}
	freq, err := bars.ParseFrequency(freqName)
	if err != nil {
		return bundle.Ingestion{}, err
	}
	name := req.Bundle
	if name == "" {
		name = a.cfg.Bundle.Default
	}

	var src bundle.Source
	switch {
	case req.CSVDir != "" && len(req.Markets) > 0:
		return bundle.Ingestion{}, errors.New("app: csv 目录与交易所只能二选一")
	case req.CSVDir != "":
		src = bundle.CSVDir{Dir: req.CSVDir, Workers: a.cfg.Bundle.IngestWorkers}
	case len(req.Markets) > 0:
		client, err := exchange.NewClient(a.cfg.Exchange, a.logger.Named("exchange"))
		if err != nil {
			return bundle.Ingestion{}, err
		}
		src, err = exchange.NewSource(client, req.Markets, a.cfg.Exchange.Timeframe, a.cfg.Exchange.Limit, a.logger.Named("exchange"))
		if err != nil {
			return bundle.Ingestion{}, err
		}
	default:
		return bundle.Ingestion{}, errors.New("app: 需要指定 csv 目录或交易对")
	}

	return a.bundles.Ingest(ctx, name, freq, src, time.Now())
}

// Clean 清理数据包的历史导入。
func (a *App) Clean(ctx context.Context, name string, opts bundle.CleanOptions) ([]bundle.Ingestion, error) {
	if name == "" {
		name = a.cfg.Bundle.Default
	}
	return a.bundles.Clean(ctx, name, opts)
}

// WriteBundles 输出每个数据包的导入时间，最新的在前；没有导入记录的数据包输出占位行。
func (a *App) WriteBundles(ctx context.Context, w io.Writer) error {
	all, err := a.bundles.List(ctx)
	if err != nil {
		return err
	}

	grouped := map[string][]bundle.Ingestion{a.cfg.Bundle.Default: nil}
	for _, ing := range all {
		grouped[ing.Bundle] = append(grouped[ing.Bundle], ing)
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		ings := grouped[name]
		if len(ings) == 0 {
			fmt.Fprintf(&b, "%s <no ingestions>\n", name)
			continue
		}
		for _, ing := range ings {
			fmt.Fprintf(&b, "%s %s\n", name, ing.IngestedAt.Format(time.RFC3339))
		}
	}
	_, err = io.WriteString(w, b.String())
	return err
}
