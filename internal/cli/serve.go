package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Eldoprano/offline-browser-translate/internal/server"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

var serveAddr string

// newServeCommand 控制服务命令
func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <url-or-file>",
		Short: "加载页面并开放翻译控制接口",
		Long: `加载一个页面后常驻运行，通过HTTP与WebSocket接受翻译控制消息:
启动/取消翻译、原文译文切换、自动翻译开关、状态与页面语言查询。
适合给浏览器扩展或外部工具做后端。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址 (默认取配置 server.addr)")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "本地文件也走浏览器渲染")
	return cmd
}

func runServe(ctx context.Context, input string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	translator, err := buildTranslator(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, _, cleanup, err := loadPage(ctx, cfg, log, input)
	if err != nil {
		return err
	}
	defer cleanup()

	session := translation.NewSession(page, log)
	session.SetAutoTranslate(cfg.AutoTranslate)
	engine := buildEngine(session, translator, cfg, log)
	watcher := translation.NewWatcher(session, engine, log)
	ctrl := translation.NewController(session, engine, watcher, log)

	srv := server.New(ctrl, cfg.Server, log)
	return srv.Run(ctx)
}
