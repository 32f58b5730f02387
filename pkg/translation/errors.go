package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 预定义错误
var (
	// ErrBusy 已有运行在进行中，并发启动请求被拒绝而不是排队
	ErrBusy = errors.New("translation already in progress")

	// ErrNoTranslator 翻译能力未设置
	ErrNoTranslator = errors.New("translator not configured")

	// ErrNothingToTranslate 页面没有可提取的文本
	ErrNothingToTranslate = errors.New("no translatable text found")

	// ErrNodeDetached 目标节点已脱离文档
	ErrNodeDetached = errors.New("node detached from document")

	// ErrNoCachedTranslation 没有可恢复的缓存译文
	ErrNoCachedTranslation = errors.New("nothing to restore")

	// ErrCancelled 运行被用户取消
	ErrCancelled = errors.New("translation cancelled")
)

// 错误代码常量
const (
	ErrCodeConfig    = "CONFIG_ERROR"
	ErrCodeTransport = "TRANSPORT_ERROR"
	ErrCodeParse     = "PARSE_ERROR"
	ErrCodeExtract   = "EXTRACT_ERROR"
	ErrCodeApply     = "APPLY_ERROR"
	ErrCodeUnknown   = "UNKNOWN_ERROR"
)

// TranslationError 翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *TranslationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// IsRetryable 是否可重试
func (e *TranslationError) IsRetryable() bool {
	return e.Retry
}

// WrapError 包装错误
func WrapError(err error, code, message string) *TranslationError {
	if err == nil {
		return nil
	}

	if te, ok := err.(*TranslationError); ok {
		te.Message = message + ": " + te.Message
		return te
	}

	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   err,
		Retry:   isRetryableError(err),
	}
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporary failure",
		"rate limit",
		"429",
		"503",
		"504",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
