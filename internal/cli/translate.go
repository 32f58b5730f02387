package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Eldoprano/offline-browser-translate/internal/browser"
	"github.com/Eldoprano/offline-browser-translate/internal/config"
	"github.com/Eldoprano/offline-browser-translate/internal/status"
	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// newTranslateCommand 整页翻译命令
func newTranslateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <url-or-file>",
		Short: "翻译一个网页或本地HTML文件",
		Long: `翻译一个网页或本地HTML文件的可见文本。

http(s)地址通过浏览器加载并采集真实布局；本地文件用合成的
流式布局估算优先级。翻译结果写到--output指定的文件，
浏览器输入且未指定输出时直接写回页面。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "输出HTML文件路径")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "本地文件也走浏览器渲染")
	return cmd
}

func runTranslate(ctx context.Context, input string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	translator, err := buildTranslator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, tab, cleanup, err := loadPage(ctx, cfg, log, input)
	if err != nil {
		return err
	}
	defer cleanup()

	session := translation.NewSession(page, log)
	engine := buildEngine(session, translator, cfg, log)

	// 取消信号转发给引擎，在批次边界干净收尾
	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	summary, err := engine.Translate(ctx, cfg.TargetLanguage, cfg.SourceLanguage)
	if err != nil {
		return err
	}

	printSummary(summary)

	if tab != nil && outputPath == "" {
		return tab.Apply(ctx, page)
	}
	return writeOutput(page, outputPath)
}

// buildEngine 按配置组装引擎与进度条
func buildEngine(session *translation.Session, translator translation.Translator, cfg *config.Config, log *zap.Logger) *translation.Engine {
	var bar *pterm.ProgressbarPrinter
	progress := func(attempted, total, percent int) {
		if bar == nil {
			bar, _ = pterm.DefaultProgressbar.
				WithTotal(total).
				WithTitle("Translating").
				Start()
		}
		if delta := attempted - bar.Current; delta > 0 {
			bar.Add(delta)
		}
		if attempted >= total {
			bar.Stop() //nolint:errcheck
		}
	}

	opts := []translation.Option{
		translation.WithBatchSize(cfg.BatchSize),
		translation.WithRetryAttempts(cfg.RetryAttempts),
		translation.WithProgress(progress),
		translation.WithStatusReporter(status.NewTerminalReporter()),
	}
	if cache := buildCache(cfg, log); cache != nil {
		opts = append(opts, translation.WithCache(cache))
	}
	return translation.NewEngine(session, translator, log, opts...)
}

// loadPage 按输入类型加载页面
// 返回的tab在文件输入时为nil；cleanup总是可调用
func loadPage(ctx context.Context, cfg *config.Config, log *zap.Logger, input string) (*dom.Page, *browser.Tab, func(), error) {
	noop := func() {}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") || useBrowser {
		b, err := browser.Connect(cfg.Browser, log)
		if err != nil {
			return nil, nil, noop, err
		}

		target := input
		if !strings.Contains(target, "://") {
			abs, err := filepath.Abs(target)
			if err != nil {
				b.Close() //nolint:errcheck
				return nil, nil, noop, err
			}
			target = "file://" + abs
		}

		tab, err := b.Open(ctx, target)
		if err != nil {
			b.Close() //nolint:errcheck
			return nil, nil, noop, err
		}

		page, err := tab.Harvest(ctx)
		if err != nil {
			tab.Close() //nolint:errcheck
			b.Close()   //nolint:errcheck
			return nil, nil, noop, err
		}

		cleanup := func() {
			tab.Close() //nolint:errcheck
			b.Close()   //nolint:errcheck
		}
		return page, tab, cleanup, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, nil, noop, err
	}
	defer f.Close()

	page, err := dom.Parse(f, nil)
	if err != nil {
		return nil, nil, noop, err
	}
	page.SetLayout(dom.NewFlowLayout(page.Root(),
		float64(cfg.Browser.ViewportWidth), float64(cfg.Browser.ViewportHeight)))
	return page, nil, noop, nil
}

// printSummary 输出运行摘要表格
func printSummary(s *translation.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Total", "Applied", "Failed", "Skipped", "Percent", "Target"})
	t.AppendRow(table.Row{s.Total, s.Applied, s.Failed, s.Skipped, fmt.Sprintf("%d%%", s.Percent), s.Target})
	t.Render()

	if s.Cancelled {
		pterm.Warning.Println("translation cancelled before completion")
	}
	if s.Failed > 0 {
		pterm.Warning.Printfln("%d items failed after retries (ids: %v)", s.Failed, s.FailedIDs)
	}
}

// writeOutput 序列化页面到文件或stdout
func writeOutput(page *dom.Page, path string) error {
	if path == "" || path == "-" {
		return page.Render(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
