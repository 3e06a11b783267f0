package bundle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"backtest-blotter/internal/bars"
	"backtest-blotter/internal/store"
)

// Service 管理以 SQLite 保存的命名K线数据包。
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService 初始化数据包服务，创建所需表结构。
func NewService(st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("bundle: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{store: st, logger: logger}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) initSchema(ctx context.Context) error {
	err := s.store.Migrate(ctx,
		`CREATE TABLE IF NOT EXISTS ingestions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bundle TEXT NOT NULL,
	frequency TEXT NOT NULL,
	source TEXT NOT NULL,
	ingested_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ingestions_bundle ON ingestions(bundle, ingested_at)`,
		`CREATE TABLE IF NOT EXISTS bundle_bars (
	ingestion_id INTEGER NOT NULL REFERENCES ingestions(id) ON DELETE CASCADE,
	asset TEXT NOT NULL,
	dt TEXT NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume INTEGER NOT NULL,
	PRIMARY KEY (ingestion_id, asset, dt)
)`,
	)
	if err != nil {
		return fmt.Errorf("bundle: 初始化表失败: %w", err)
	}
	return nil
}

// Ingest 从数据源导入一份新的数据包快照。同一资产同一时段的重复K线以后者为准。
func (s *Service) Ingest(ctx context.Context, name string, freq bars.Frequency, src Source, now time.Time) (Ingestion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ingestion{}, errors.New("bundle: 名称不能为空")
	}
	if src == nil {
		return Ingestion{}, errors.New("bundle: source 不能为空")
	}

	data, err := src.Load(ctx)
	if err != nil {
		return Ingestion{}, err
	}

	// 复用读取器的校验、对齐与去重逻辑。
	reader := bars.NewMemoryReader(freq)
	var validateErr error
	for _, asset := range sortedAssets(data) {
		if addErr := reader.Add(asset, data[asset]...); addErr != nil {
			validateErr = multierr.Append(validateErr, fmt.Errorf("%s: %w", asset, addErr))
		}
	}
	if validateErr != nil {
		return Ingestion{}, fmt.Errorf("bundle: K线校验失败: %w", validateErr)
	}

	ing := Ingestion{
		Bundle:     name,
		Frequency:  freq,
		Source:     src.Name(),
		IngestedAt: now.UTC(),
		Assets:     len(reader.Assets()),
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO ingestions (bundle, frequency, source, ingested_at) VALUES (?, ?, ?, ?)`,
			ing.Bundle, string(ing.Frequency), ing.Source, formatTime(ing.IngestedAt),
		)
		if err != nil {
			return fmt.Errorf("bundle: 写入导入记录失败: %w", err)
		}
		if ing.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("bundle: 读取导入编号失败: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bundle_bars (ingestion_id, asset, dt, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("bundle: 准备写入语句失败: %w", err)
		}
		defer stmt.Close()

		for _, asset := range reader.Assets() {
			for _, dt := range reader.Sessions() {
				bar, getErr := reader.GetBar(asset, dt)
				if getErr != nil {
					continue
				}
				if _, err := stmt.ExecContext(ctx,
					ing.ID, asset, formatTime(bar.Dt),
					bar.Open.String(), bar.High.String(), bar.Low.String(), bar.Close.String(),
					bar.Volume,
				); err != nil {
					return fmt.Errorf("bundle: 写入 %s K线失败: %w", asset, err)
				}
				ing.Bars++
			}
		}
		return nil
	})
	if err != nil {
		return Ingestion{}, err
	}

	s.logger.Info("数据包导入完成",
		zap.String("bundle", ing.Bundle),
		zap.Int64("ingestion_id", ing.ID),
		zap.String("source", ing.Source),
		zap.Int("assets", ing.Assets),
		zap.Int("bars", ing.Bars),
	)
	return ing, nil
}

// List 返回全部导入记录，按数据包名升序、导入时间降序排列。
func (s *Service) List(ctx context.Context) ([]Ingestion, error) {
	return s.query(ctx, `
SELECT i.id, i.bundle, i.frequency, i.source, i.ingested_at,
	COUNT(DISTINCT b.asset), COUNT(b.asset)
FROM ingestions i
LEFT JOIN bundle_bars b ON b.ingestion_id = i.id
GROUP BY i.id
ORDER BY i.bundle ASC, i.ingested_at DESC, i.id DESC`)
}

// Ingestions 返回某个数据包的导入记录，最新的在前。
func (s *Service) Ingestions(ctx context.Context, name string) ([]Ingestion, error) {
	return s.query(ctx, `
SELECT i.id, i.bundle, i.frequency, i.source, i.ingested_at,
	COUNT(DISTINCT b.asset), COUNT(b.asset)
FROM ingestions i
LEFT JOIN bundle_bars b ON b.ingestion_id = i.id
WHERE i.bundle = ?
GROUP BY i.id
ORDER BY i.ingested_at DESC, i.id DESC`, name)
}

// Clean 删除满足条件的导入记录并返回被删除的记录。
func (s *Service) Clean(ctx context.Context, name string, opts CleanOptions) ([]Ingestion, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	all, err := s.Ingestions(ctx, name)
	if err != nil {
		return nil, err
	}

	var doomed []Ingestion
	for i, ing := range all {
		if shouldClean(i, ing, opts) {
			doomed = append(doomed, ing)
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, ing := range doomed {
			if _, err := tx.ExecContext(ctx, `DELETE FROM bundle_bars WHERE ingestion_id = ?`, ing.ID); err != nil {
				return fmt.Errorf("bundle: 删除K线失败: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM ingestions WHERE id = ?`, ing.ID); err != nil {
				return fmt.Errorf("bundle: 删除导入记录失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("数据包清理完成", zap.String("bundle", name), zap.Int("removed", len(doomed)))
	return doomed, nil
}

// 记录按导入时间降序，idx 即其新旧排名。
func shouldClean(idx int, ing Ingestion, opts CleanOptions) bool {
	if opts.KeepLast != nil {
		return idx >= *opts.KeepLast
	}
	if opts.Before != nil && ing.IngestedAt.Before(*opts.Before) {
		return true
	}
	if opts.After != nil && ing.IngestedAt.After(*opts.After) {
		return true
	}
	return false
}

// Load 读取不晚于 asOf 的最新一次导入；asOf 为零值时读取最新导入。
func (s *Service) Load(ctx context.Context, name string, asOf time.Time) (*bars.MemoryReader, Ingestion, error) {
	all, err := s.Ingestions(ctx, name)
	if err != nil {
		return nil, Ingestion{}, err
	}

	var (
		picked Ingestion
		found  bool
	)
	for _, ing := range all {
		if asOf.IsZero() || !ing.IngestedAt.After(asOf) {
			picked, found = ing, true
			break
		}
	}
	if !found {
		return nil, Ingestion{}, fmt.Errorf("%w: %s", ErrNoIngestions, name)
	}

	rows, err := s.store.DB().QueryContext(ctx,
		`SELECT asset, dt, open, high, low, close, volume FROM bundle_bars WHERE ingestion_id = ? ORDER BY asset, dt`,
		picked.ID,
	)
	if err != nil {
		return nil, Ingestion{}, fmt.Errorf("bundle: 查询K线失败: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]bars.Bar)
	for rows.Next() {
		var (
			asset, dt                   string
			open, high, low, closePrice string
			bar                         bars.Bar
		)
		if err := rows.Scan(&asset, &dt, &open, &high, &low, &closePrice, &bar.Volume); err != nil {
			return nil, Ingestion{}, fmt.Errorf("bundle: 解析K线失败: %w", err)
		}
		if bar.Dt, err = time.Parse(time.RFC3339Nano, dt); err != nil {
			return nil, Ingestion{}, fmt.Errorf("bundle: 解析时间 %q 失败: %w", dt, err)
		}
		parseErr := multierr.Combine(
			assign(&bar.Open, open),
			assign(&bar.High, high),
			assign(&bar.Low, low),
			assign(&bar.Close, closePrice),
		)
		if parseErr != nil {
			return nil, Ingestion{}, fmt.Errorf("bundle: 解析 %s 价格失败: %w", asset, parseErr)
		}
		grouped[asset] = append(grouped[asset], bar)
	}
	if err := rows.Err(); err != nil {
		return nil, Ingestion{}, fmt.Errorf("bundle: 读取K线失败: %w", err)
	}

	reader := bars.NewMemoryReader(picked.Frequency)
	for _, asset := range sortedAssets(grouped) {
		if err := reader.Add(asset, grouped[asset]...); err != nil {
			return nil, Ingestion{}, fmt.Errorf("bundle: 加载 %s 失败: %w", asset, err)
		}
	}

	s.logger.Debug("数据包已加载",
		zap.String("bundle", name),
		zap.Int64("ingestion_id", picked.ID),
		zap.Int("assets", picked.Assets),
		zap.Int("bars", picked.Bars),
	)
	return reader, picked, nil
}

func (s *Service) query(ctx context.Context, query string, args ...interface{}) ([]Ingestion, error) {
	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bundle: 查询导入记录失败: %w", err)
	}
	defer rows.Close()

	var out []Ingestion
	for rows.Next() {
		var (
			ing       Ingestion
			frequency string
			ingested  string
		)
		if err := rows.Scan(&ing.ID, &ing.Bundle, &frequency, &ing.Source, &ingested, &ing.Assets, &ing.Bars); err != nil {
			return nil, fmt.Errorf("bundle: 解析导入记录失败: %w", err)
		}
		ing.Frequency = bars.Frequency(frequency)
		if ing.IngestedAt, err = time.Parse(time.RFC3339Nano, ingested); err != nil {
			return nil, fmt.Errorf("bundle: 解析导入时间 %q 失败: %w", ingested, err)
		}
		out = append(out, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bundle: 读取导入记录失败: %w", err)
	}
	return out, nil
}

func assign(dst *decimal.Decimal, raw string) error {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// 定长格式保证按字符串排序与按时间排序一致。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func sortedAssets(data map[string][]bars.Bar) []string {
	assets := make([]string, 0, len(data))
	for asset := range data {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}
