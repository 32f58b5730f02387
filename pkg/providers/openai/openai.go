package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Eldoprano/offline-browser-translate/pkg/providers"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// Config OpenAI兼容后端配置
// APIEndpoint指向任意OpenAI兼容服务（llama.cpp server、vLLM、LM Studio等）
type Config struct {
	providers.BaseConfig `mapstructure:",squash"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	cfg := Config{BaseConfig: providers.DefaultConfig()}
	cfg.Model = "gpt-4o-mini"
	return cfg
}

// Provider OpenAI兼容后端
type Provider struct {
	config Config
	client *openai.Client
}

// New 创建OpenAI兼容提供商
func New(config Config) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.APIEndpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.APIEndpoint, "/")
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// GetName 获取提供商名称
func (p *Provider) GetName() string { return "openai" }

// Translate 批量翻译，实现按ID匹配的批量契约
func (p *Provider) Translate(ctx context.Context, items []translation.Item, targetLang, sourceLang string) (*translation.Result, error) {
	prompt, err := providers.BuildBatchPrompt(items, targetLang, sourceLang)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: providers.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.config.Temperature,
	}
	if p.config.MaxTokens > 0 {
		req.MaxTokens = p.config.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	translations, err := providers.ParseBatchResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &translation.Result{Translations: translations}, nil
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	req := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 5,
	}
	_, err := p.client.CreateChatCompletion(ctx, req)
	return err
}
