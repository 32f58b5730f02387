package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Eldoprano/offline-browser-translate/pkg/providers"
	"github.com/Eldoprano/offline-browser-translate/pkg/providers/retry"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// Config Ollama配置
type Config struct {
	providers.BaseConfig `mapstructure:",squash"`
	RetryConfig          retry.Config `json:"retry_config" mapstructure:"retry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	cfg := Config{
		BaseConfig:  providers.DefaultConfig(),
		RetryConfig: retry.DefaultConfig(),
	}
	cfg.APIEndpoint = "http://localhost:11434"
	cfg.Model = "llama3.2"
	return cfg
}

// Provider 本地Ollama后端
// 每个批次发一条/api/generate请求，要求模型返回编号JSON数组
type Provider struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
}

// New 创建Ollama提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "http://localhost:11434"
	}
	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retry.New(config.RetryConfig),
	}
}

// GetName 获取提供商名称
func (p *Provider) GetName() string { return "ollama" }

// Translate 批量翻译，实现按ID匹配的批量契约
func (p *Provider) Translate(ctx context.Context, items []translation.Item, targetLang, sourceLang string) (*translation.Result, error) {
	prompt, err := providers.BuildBatchPrompt(items, targetLang, sourceLang)
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{
		Model:  p.config.Model,
		System: providers.SystemPrompt(),
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
		},
	}
	if p.config.MaxTokens > 0 {
		req.Options["num_predict"] = p.config.MaxTokens
	}

	resp, err := p.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	translations, err := providers.ParseBatchResponse(resp.Response)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &translation.Result{Translations: translations}, nil
}

// HealthCheck 健康检查
func (p *Provider) HealthCheck(ctx context.Context) error {
	req := GenerateRequest{
		Model:   p.config.Model,
		Prompt:  "Hello",
		Stream:  false,
		Options: map[string]interface{}{"num_predict": 5},
	}
	_, err := p.generate(ctx, req)
	return err
}

// generate 执行生成请求
func (p *Provider) generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIEndpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.retrier.Do(p.httpClient, httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		var apiErr APIError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorMsg != "" {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("API error: %s", resp.Status)
	}

	var generateResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generateResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &generateResp, nil
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Response        string    `json:"response"`
	Done            bool      `json:"done"`
	TotalDuration   int64     `json:"total_duration"`
	PromptEvalCount int       `json:"prompt_eval_count"`
	EvalCount       int       `json:"eval_count"`
}

// APIError API错误
type APIError struct {
	ErrorMsg string `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorMsg
}
