package retry

import (
	"errors"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Config 重试配置
type Config struct {
	// 最大重试次数
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay" mapstructure:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay" mapstructure:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor" mapstructure:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier HTTP请求重试器
// 网络瞬时错误、5xx与429重试，其余4xx与永久性错误立即放弃
type Retrier struct {
	config Config
}

// New 创建重试器
func New(config Config) *Retrier {
	return &Retrier{config: config}
}

// Do 执行带重试的HTTP请求
// 每次尝试克隆请求，避免Body被上一次消费
func (r *Retrier) Do(client *http.Client, req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := client.Do(req.Clone(ctx))
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			lastResp = resp
		}

		if !r.shouldRetry(err, resp) || attempt == r.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	if lastErr != nil {
		return lastResp, lastErr
	}
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, errors.New("no response received")
}

// shouldRetry 根据错误或状态码判断是否重试
func (r *Retrier) shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		return isNetworkError(err)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// delay 指数退避延迟
func (r *Retrier) delay(attempt int) time.Duration {
	factor := r.config.BackoffFactor
	if factor <= 1.0 {
		factor = 2.0
	}

	d := time.Duration(float64(r.config.InitialDelay) * math.Pow(factor, float64(attempt)))
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	return d
}

// isNetworkError 判断是否为可重试的网络瞬时错误
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isNetworkError(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"i/o timeout",
		"eof",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
