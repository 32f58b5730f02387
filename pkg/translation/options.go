package translation

import (
	"context"
	"time"
)

// 引擎默认参数
const (
	// DefaultBatchSize 排空循环每批条数
	DefaultBatchSize = 8

	// DefaultRetryAttempts 批次内传输失败的整批重试次数
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff 批次重试退避基数（×尝试序号）
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultRetryRounds 排空后失败项的补偿轮数
	DefaultRetryRounds = 2

	// DefaultRetryRoundBatch 补偿轮的较小批大小
	DefaultRetryRoundBatch = 4

	// DefaultScrollDebounce 滚动稳定信号的去抖窗口
	DefaultScrollDebounce = 100 * time.Millisecond
)

// Option 引擎配置选项函数
type Option func(*engineOptions)

// engineOptions 引擎内部选项
type engineOptions struct {
	batchSize       int
	retryAttempts   int
	retryBackoff    time.Duration
	retryRounds     int
	retryRoundBatch int
	scrollDebounce  time.Duration

	cache    Cache
	status   StatusReporter
	progress ProgressFunc
	sleep    func(ctx context.Context, d time.Duration) bool
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		batchSize:       DefaultBatchSize,
		retryAttempts:   DefaultRetryAttempts,
		retryBackoff:    DefaultRetryBackoff,
		retryRounds:     DefaultRetryRounds,
		retryRoundBatch: DefaultRetryRoundBatch,
		scrollDebounce:  DefaultScrollDebounce,
		sleep:           sleepCtx,
	}
}

// WithBatchSize 设置排空批大小
func WithBatchSize(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithRetryAttempts 设置批次内重试次数
func WithRetryAttempts(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.retryAttempts = n
		}
	}
}

// WithRetryBackoff 设置重试退避基数
func WithRetryBackoff(d time.Duration) Option {
	return func(o *engineOptions) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

// WithRetryRounds 设置排空后的补偿轮数
func WithRetryRounds(n int) Option {
	return func(o *engineOptions) {
		if n >= 0 {
			o.retryRounds = n
		}
	}
}

// WithScrollDebounce 设置滚动去抖窗口
func WithScrollDebounce(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.scrollDebounce = d
		}
	}
}

// WithCache 设置翻译缓存
func WithCache(cache Cache) Option {
	return func(o *engineOptions) {
		o.cache = cache
	}
}

// WithStatusReporter 设置状态通道
func WithStatusReporter(status StatusReporter) Option {
	return func(o *engineOptions) {
		o.status = status
	}
}

// WithProgress 设置进度回调
func WithProgress(fn ProgressFunc) Option {
	return func(o *engineOptions) {
		o.progress = fn
	}
}

// sleepCtx 可被上下文打断的等待，被打断时返回false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
