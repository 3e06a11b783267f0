package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"backtest-blotter/internal/bars"
)

// CSVDir 从目录读取每个资产一个 CSV 文件，文件名（去掉扩展名）即资产标识。
type CSVDir struct {
	Dir     string
	Workers int
}

// Name 实现 Source。
func (c CSVDir) Name() string {
	return "csvdir:" + c.Dir
}

// Load 并发解析目录下全部 .csv 文件。
func (c CSVDir) Load(ctx context.Context) (map[string][]bars.Bar, error) {
	files, err := filepath.Glob(filepath.Join(c.Dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("bundle: 扫描目录 %q 失败: %w", c.Dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("bundle: 目录 %q 中没有 csv 文件", c.Dir)
	}
	sort.Strings(files)

	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]bars.Bar, len(files))
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			asset := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			parsed, err := readFile(file)
			if err != nil {
				return fmt.Errorf("bundle: 解析 %s 失败: %w", asset, err)
			}

			mu.Lock()
			out[asset] = parsed
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readFile(path string) ([]bars.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bars.ReadCSV(f)
}

var _ Source = CSVDir{}
