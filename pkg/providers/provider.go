package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty" mapstructure:"api_key"`
	APIEndpoint string `json:"api_endpoint,omitempty" mapstructure:"api_endpoint"`

	// 超时
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// 模型参数
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float32 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:     5 * time.Minute, // 本地模型的长请求需要宽裕的超时
		Temperature: 0.3,
		MaxTokens:   4096,
		Headers:     make(map[string]string),
	}
}

// systemPrompt 批量翻译的系统指令
const systemPrompt = `You are a translation engine for web page text. You receive a JSON array of items, each with an integer "id" and a "text" string. Translate every "text" value and reply with ONLY a JSON array of {"id": <same id>, "text": "<translation>"} objects. Preserve the ids exactly. Do not add commentary, explanations or markdown fences.`

// BuildBatchPrompt 构建编号JSON批量翻译提示词
// 响应按ID匹配，模型丢失或打乱条目时调用方仍能正确归因
func BuildBatchPrompt(items []translation.Item, targetLang, sourceLang string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal batch items: %w", err)
	}

	source := sourceLang
	if source == "" || source == "auto" {
		source = "the detected source language"
	}

	return fmt.Sprintf("Translate the following items from %s to %s.\n\n%s",
		source, targetLang, string(payload)), nil
}

// SystemPrompt 返回系统指令
func SystemPrompt() string { return systemPrompt }

// ParseBatchResponse 解析模型返回的编号JSON数组
// 容忍markdown围栏与数组前后的附加文字，只取第一个完整的JSON数组
func ParseBatchResponse(raw string) ([]translation.Translation, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model response")
	}

	var out []translation.Translation
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return out, nil
}

// stripFences 去掉markdown代码围栏
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
