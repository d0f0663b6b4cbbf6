package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"drug-crossref/internal/core/matcher"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/infrastructure/tabular"
	"drug-crossref/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	input := flag.String("input", "", "日本核准清單（.xlsx 或 .csv）")
	registry := flag.String("registry", "", "台灣許可證資料（.xlsx、.csv 或 SQLite），預設讀取設定")
	sheet := flag.String("sheet", "", "許可證活頁簿的工作表名稱")
	out := flag.String("out", "", "輸出路徑，預設為標準輸出")
	format := flag.String("format", "", "輸出格式 csv|xlsx|sqlite|json，預設依副檔名")
	threshold := flag.Float64("threshold", -1, "模糊比對門檻 0-100，預設讀取設定")
	strategy := flag.String("strategy", "", "sequential 或 pooled")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -input approvals.xlsx [-registry tw.xlsx] [-out result.csv]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *registry != "" {
		cfg.Registry.Path = *registry
	}
	if *sheet != "" {
		cfg.Registry.Sheet = *sheet
	}
	if *threshold >= 0 {
		cfg.Matcher.Threshold = *threshold
	}
	if *strategy != "" {
		cfg.Pipeline.Strategy = *strategy
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	// 結果可能寫到標準輸出，日誌只寫檔案與 stderr
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	outFormat, err := outputFormat(*format, *out)
	if err != nil {
		common.LogFatal("無法判斷輸出格式", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		common.LogFatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer components.Close()

	m, err := pipeline.LoadMatcher(cfg)
	if err != nil {
		common.LogFatal("無法載入台灣許可證資料", zap.Error(err))
	}

	if err := run(ctx, components.Pipeline, m, *input, *out, outFormat); err != nil {
		common.LogError("比對失敗", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, p *pipeline.Pipeline, m *matcher.Matcher, input, out, format string) error {
	sheets, err := tabular.ReadFile(input)
	if err != nil {
		return err
	}

	result, err := p.RunWithMatcher(ctx, sheets, m)
	if err != nil {
		return err
	}
	printSummary(os.Stderr, result.Summary)
	if err := result.Err(); err != nil {
		return err
	}
	return write(result, out, format)
}

func outputFormat(format, out string) (string, error) {
	if format != "" {
		format = strings.ToLower(format)
	} else if out == "" {
		format = "csv"
	} else {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(out), "."))
		switch ext {
		case "db", "sqlite", "sqlite3":
			format = "sqlite"
		default:
			format = ext
		}
	}
	switch format {
	case "csv", "xlsx", "json":
		return format, nil
	case "sqlite":
		if out == "" {
			return "", fmt.Errorf("sqlite output requires -out")
		}
		return format, nil
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

func write(result *pipeline.Result, out, format string) error {
	if format == "sqlite" {
		return tabular.WriteSQLite(out, result.Rows)
	}

	var w io.Writer = os.Stdout
	if out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "xlsx":
		return tabular.WriteXLSX(w, result.Rows)
	case "json":
		data, err := common.ToJSON(result)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, data+"\n")
		return err
	default:
		return tabular.WriteCSV(w, result.Rows)
	}
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "run %s (%s) %s\n", s.RunID, s.Strategy, s.Duration)
	fmt.Fprintf(w, "  sheets: %d processed, %d skipped\n", len(s.ProcessedSheets), len(s.SkippedSheets))
	for _, sk := range s.SkippedSheets {
		fmt.Fprintf(w, "    - %s: 缺少 %s\n", sk.Name, common.FieldsToString(sk.Missing))
	}
	fmt.Fprintf(w, "  rows: %d read, %d blank, %d malformed, %d records\n", s.RowsRead, s.BlankRows, s.MalformedRows, s.Records)
	fmt.Fprintf(w, "  matches: %d matched (%d exact, %d fuzzy), %d unmatched\n", s.Matched, s.ExactMatches, s.FuzzyMatches, s.Unmatched)
	fmt.Fprintf(w, "  unresolved names: %d\n", len(s.Unresolved))
	if len(s.DisabledSources) > 0 {
		fmt.Fprintf(w, "  disabled sources: %s\n", strings.Join(s.DisabledSources, ", "))
	}
}
