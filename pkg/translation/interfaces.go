package translation

import (
	"context"
)

// Translator 翻译能力（外部协作者）
// 实现方负责请求模板与响应解析，这里只约定按ID匹配的批量契约
type Translator interface {
	// Translate 批量翻译，响应按ID匹配，允许乱序与部分缺失
	Translate(ctx context.Context, items []Item, targetLang, sourceLang string) (*Result, error)

	// GetName 获取翻译器名称
	GetName() string
}

// StatusReporter 状态通道（外部协作者）
// 展示一条临时的人类可读状态，Hide在延迟后移除
type StatusReporter interface {
	Show(message string, isError bool)
	Hide()
}

// ProgressFunc 进度回调，percent已封顶100
type ProgressFunc func(attempted, total, percent int)

// Cache 翻译缓存
type Cache interface {
	// Get 按键取缓存
	Get(key string) (string, bool)

	// Set 写缓存
	Set(key, value string) error

	// Clear 清空缓存
	Clear() error
}
