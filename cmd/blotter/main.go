package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"backtest-blotter/internal/app"
	"backtest-blotter/internal/backtest"
	"backtest-blotter/internal/bundle"
	"backtest-blotter/internal/config"
	"backtest-blotter/internal/log"
	"backtest-blotter/internal/store"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage 表示命令行参数违反约定。
var errUsage = errors.New("usage error")

type command struct {
	name    string
	summary string
	// parse 解析并校验参数，返回在 App 上执行的动作。
	parse func(args []string, stdout, stderr io.Writer) (action, error)
}

type action func(ctx context.Context, a *app.App) error

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("blotter", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "配置文件路径，默认使用 configs/config.yaml")
	global.Usage = func() { printUsage(global, stderr) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(global, stderr)
		return exitUsage
	}
	cmd, ok := commands()[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "未知命令 %q\n", rest[0])
		printUsage(global, stderr)
		return exitUsage
	}

	act, err := cmd.parse(rest[1:], stdout, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "blotter %s: %v\n", cmd.name, err)
		}
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return exitError
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败: %v\n", err)
		return exitError
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return exitError
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	blotterApp, err := app.New(cfg, logger, sqliteStore)
	if err != nil {
		logger.Error("初始化应用失败", zap.Error(err))
		return exitError
	}

	if err := act(ctx, blotterApp); err != nil {
		logger.Error("命令执行失败", zap.String("command", cmd.name), zap.Error(err))
		return exitError
	}
	return exitOK
}

func commands() map[string]command {
	cmds := []command{
		{name: "run", summary: "按下单计划运行回测", parse: parseRun},
		{name: "ingest", summary: "导入数据包", parse: parseIngest},
		{name: "clean", summary: "清理数据包的历史导入", parse: parseClean},
		{name: "bundles", summary: "列出数据包及其导入记录", parse: parseBundles},
		{name: "serve", summary: "启动订单日志查询接口", parse: parseServe},
	}
	out := make(map[string]command, len(cmds))
	for _, c := range cmds {
		out[c.name] = c
	}
	return out
}

func printUsage(global *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: blotter [-config path] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, cmds[name].summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	global.SetOutput(w)
	global.PrintDefaults()
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseRun(args []string, stdout, stderr io.Writer) (action, error) {
	fs := newFlagSet("run", stderr)
	var (
		start, end      dateFlag
		bundleTimestamp dateFlag
	)
	algofile := fs.String("algofile", "", "下单计划文件")
	algotext := fs.String("algotext", "", "下单计划文本")
	frequency := fs.String("data-frequency", "", "数据周期 daily|minute，默认取配置")
	bundleName := fs.String("bundle", "", "数据包名称，默认取配置")
	output := fs.String("output", "-", "结果输出位置，- 表示标准输出")
	printAlgo := fs.Bool("print-algo", false, "运行前打印下单计划")
	runID := fs.String("run-id", "", "运行标识，默认自动生成")
	fs.Var(&start, "start", "开始日期 (2006-01-02)")
	fs.Var(&end, "end", "结束日期 (2006-01-02)")
	fs.Var(&bundleTimestamp, "bundle-timestamp", "使用不晚于该时间的数据包导入，默认最新")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case !start.set && !end.set:
		return nil, fmt.Errorf("%w: must specify dates with --start and --end", errUsage)
	case !start.set:
		return nil, fmt.Errorf("%w: must specify a start date with --start", errUsage)
	case !end.set:
		return nil, fmt.Errorf("%w: must specify an end date with --end", errUsage)
	}
	if (*algofile != "") == (*algotext != "") {
		return nil, fmt.Errorf("%w: must specify exactly one of --algofile or --algotext", errUsage)
	}
	if *frequency != "" && *frequency != "daily" && *frequency != "minute" {
		return nil, fmt.Errorf("%w: --data-frequency must be daily or minute", errUsage)
	}

	return func(ctx context.Context, a *app.App) error {
		text := *algotext
		if *algofile != "" {
			raw, err := os.ReadFile(*algofile)
			if err != nil {
				return fmt.Errorf("读取下单计划失败: %w", err)
			}
			text = string(raw)
		}
		plan, err := backtest.ParsePlanString(text)
		if err != nil {
			return err
		}
		if *printAlgo {
			for _, inst := range plan {
				fmt.Fprintln(stdout, inst)
			}
		}

		result, err := a.Run(ctx, app.RunRequest{
			Plan:            plan,
			Start:           start.value,
			End:             end.value,
			DataFrequency:   *frequency,
			Bundle:          *bundleName,
			BundleTimestamp: bundleTimestamp.value,
			RunID:           *runID,
		})
		if err != nil {
			return err
		}
		return writeResult(result, *output, stdout)
	}, nil
}

func writeResult(result backtest.Result, output string, stdout io.Writer) error {
	if output == os.DevNull {
		return nil
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化回测结果失败: %w", err)
	}
	payload = append(payload, '\n')
	if output == "-" {
		_, err = stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("写入回测结果失败: %w", err)
	}
	return nil
}

func parseIngest(args []string, stdout, stderr io.Writer) (action, error) {
	fs := newFlagSet("ingest", stderr)
	bundleName := fs.String("bundle", "", "数据包名称，默认取配置")
	csvDir := fs.String("csv-dir", "", "每个资产一个 CSV 文件的目录")
	markets := fs.String("exchange", "", "从交易所拉取的交易对，逗号分隔")
	frequency := fs.String("data-frequency", "", "数据周期 daily|minute，默认取配置")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if (*csvDir != "") == (*markets != "") {
		return nil, fmt.Errorf("%w: must specify exactly one of --csv-dir or --exchange", errUsage)
	}

	return func(ctx context.Context, a *app.App) error {
		ing, err := a.Ingest(ctx, app.IngestRequest{
			Bundle:        *bundleName,
			DataFrequency: *frequency,
			CSVDir:        *csvDir,
			Markets:       splitList(*markets),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s assets=%d bars=%d\n", ing.Bundle, ing.IngestedAt.Format(time.RFC3339), ing.Assets, ing.Bars)
		return nil
	}, nil
}

func parseClean(args []string, stdout, stderr io.Writer) (action, error) {
	fs := newFlagSet("clean", stderr)
	var before, after dateFlag
	bundleName := fs.String("bundle", "", "数据包名称，默认取配置")
	keepLast := fs.Int("keep-last", -1, "只保留最近 N 次导入，不能与 --before/--after 同时使用")
	fs.Var(&before, "before", "清理早于该时间的导入")
	fs.Var(&after, "after", "清理晚于该时间的导入")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	keepSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "keep-last" {
			keepSet = true
		}
	})

	var opts bundle.CleanOptions
	switch {
	case keepSet && (before.set || after.set):
		return nil, fmt.Errorf("%w: --keep-last cannot be combined with --before or --after", errUsage)
	case keepSet:
		if *keepLast < 0 {
			return nil, fmt.Errorf("%w: --keep-last must not be negative", errUsage)
		}
		opts.KeepLast = keepLast
	case before.set || after.set:
		if before.set {
			opts.Before = &before.value
		}
		if after.set {
			opts.After = &after.value
		}
	default:
		return nil, fmt.Errorf("%w: must specify one of --before, --after or --keep-last", errUsage)
	}

	return func(ctx context.Context, a *app.App) error {
		removed, err := a.Clean(ctx, *bundleName, opts)
		if err != nil {
			return err
		}
		for _, ing := range removed {
			fmt.Fprintf(stdout, "removed %s %s\n", ing.Bundle, ing.IngestedAt.Format(time.RFC3339))
		}
		return nil
	}, nil
}

func parseBundles(args []string, stdout, stderr io.Writer) (action, error) {
	fs := newFlagSet("bundles", stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App) error {
		return a.WriteBundles(ctx, stdout)
	}, nil
}

func parseServe(args []string, stdout, stderr io.Writer) (action, error) {
	fs := newFlagSet("serve", stderr)
	addr := fs.String("addr", ":8080", "监听地址")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App) error {
		return a.Serve(ctx, *addr)
	}, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// dateFlag 接受 2006-01-02 或 RFC3339，并记录是否被显式设置。
type dateFlag struct {
	value time.Time
	set   bool
}

func (d *dateFlag) String() string {
	if d == nil || !d.set {
		return ""
	}
	return d.value.Format(time.RFC3339)
}

func (d *dateFlag) Set(raw string) error {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.value = t.UTC()
			d.set = true
			return nil
		}
	}
	return fmt.Errorf("expected 2006-01-02 or RFC3339, got %q", raw)
}
