package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Eldoprano/offline-browser-translate/pkg/providers"
	"github.com/Eldoprano/offline-browser-translate/pkg/providers/ollama"
	"github.com/Eldoprano/offline-browser-translate/pkg/providers/openai"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// Known 已知提供商名称
var Known = []string{"ollama", "openai"}

// New 根据名称创建翻译提供商
// 未知名称时用模糊匹配给出最接近的候选，拼写错误能直接看到改法
func New(name string, base providers.BaseConfig) (translation.Translator, error) {
	switch strings.ToLower(name) {
	case "ollama":
		cfg := ollama.DefaultConfig()
		applyBase(&cfg.BaseConfig, base)
		return ollama.New(cfg), nil

	case "openai":
		cfg := openai.DefaultConfig()
		applyBase(&cfg.BaseConfig, base)
		return openai.New(cfg), nil

	default:
		if matches := fuzzy.RankFindNormalizedFold(name, Known); len(matches) > 0 {
			sort.Sort(matches)
			return nil, fmt.Errorf("unknown provider %q (did you mean %q?)", name, matches[0].Target)
		}
		return nil, fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(Known, ", "))
	}
}

// applyBase 用非零配置覆盖默认值
func applyBase(dst *providers.BaseConfig, src providers.BaseConfig) {
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.APIEndpoint != "" {
		dst.APIEndpoint = src.APIEndpoint
	}
	if src.Timeout > 0 {
		dst.Timeout = src.Timeout
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Temperature > 0 {
		dst.Temperature = src.Temperature
	}
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
	for k, v := range src.Headers {
		if dst.Headers == nil {
			dst.Headers = make(map[string]string)
		}
		dst.Headers[k] = v
	}
}
