package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Eldoprano/offline-browser-translate/internal/config"
	"github.com/Eldoprano/offline-browser-translate/internal/logger"
	"github.com/Eldoprano/offline-browser-translate/pkg/providers/factory"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
	"go.uber.org/zap"
)

var (
	// 命令行标志变量
	cfgFile     string
	targetLang  string
	sourceLang  string
	provider    string
	apiEndpoint string
	model       string
	outputPath  string
	noCache     bool
	debugMode   bool
	useBrowser  bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagetrans",
		Short: "pagetrans 用本地大模型增量翻译网页",
		Long: `pagetrans 把网页的可见文本交给本地托管的大语言模型翻译，
保留DOM结构只替换文本节点内容。按视口与语义优先级增量推进，
支持批量重试、滚动重排、新内容自动翻译与原文/译文切换。

支持的翻译提供商:
  - ollama: Ollama 本地大语言模型
  - openai: 任意OpenAI兼容服务（llama.cpp server、vLLM、LM Studio等）`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 ~/.pagetrans.yaml)")
	rootCmd.PersistentFlags().StringVarP(&targetLang, "target", "t", "", "目标语言")
	rootCmd.PersistentFlags().StringVarP(&sourceLang, "source", "s", "", "源语言 (默认自动检测)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "翻译提供商")
	rootCmd.PersistentFlags().StringVar(&apiEndpoint, "endpoint", "", "提供商API地址")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "模型名称")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "禁用翻译缓存")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "调试日志")

	rootCmd.AddCommand(newTranslateCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// loadConfig 加载配置并套用命令行覆盖
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	if targetLang != "" {
		cfg.TargetLanguage = targetLang
	}
	if sourceLang != "" {
		cfg.SourceLanguage = sourceLang
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if apiEndpoint != "" {
		cfg.APIEndpoint = apiEndpoint
	}
	if model != "" {
		cfg.Model = model
	}
	if noCache {
		cfg.CacheEnabled = false
	}
	if debugMode {
		cfg.Debug = true
	}

	log := logger.NewLogger(cfg.Debug)
	return cfg, log, nil
}

// buildTranslator 根据配置创建翻译提供商
func buildTranslator(cfg *config.Config) (translation.Translator, error) {
	return factory.New(cfg.Provider, cfg.ProviderConfig())
}

// buildCache 根据配置创建翻译缓存
func buildCache(cfg *config.Config, log *zap.Logger) translation.Cache {
	if !cfg.CacheEnabled {
		return nil
	}
	cache, err := translation.NewSQLiteCache(cfg.CachePath)
	if err != nil {
		log.Warn("cache database unavailable, using in-memory cache",
			zap.String("path", cfg.CachePath),
			zap.Error(err))
		return translation.NewMemoryCache()
	}
	return cache
}
