package translation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DefaultWatchDebounce 变更观察的去抖窗口
// 快速连续的插入（无限滚动加载一屏卡片）合并成一次翻译调用
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher 变更观察器
// 缓冲新插入的DOM节点，去抖窗口静默后增量提取并一次性翻译。
// 自动翻译关闭或整页运行进行中时推迟冲刷，窗口重新计时
type Watcher struct {
	session  *Session
	engine   *Engine
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	buffer  []*html.Node
	timer   *time.Timer
	stopped bool
}

// NewWatcher 创建变更观察器
func NewWatcher(session *Session, engine *Engine, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		session:  session,
		engine:   engine,
		logger:   logger,
		debounce: DefaultWatchDebounce,
	}
}

// SetDebounce 调整去抖窗口，测试用
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// NotifyInserted 上报新插入的节点并重置去抖计时
func (w *Watcher) NotifyInserted(nodes ...*html.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.buffer = append(w.buffer, nodes...)
	w.resetTimerLocked()
}

// Pending 缓冲中的节点数
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Stop 停止观察并丢弃缓冲，不翻译
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.buffer = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Resume 重新开始观察
func (w *Watcher) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = false
}

// Flush 立即处理缓冲，测试与关停路径用
func (w *Watcher) Flush(ctx context.Context) {
	w.flush(ctx)
}

func (w *Watcher) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.flush(context.Background())
	})
}

// flush 去抖窗口到期后的冲刷
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.stopped || len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	if !w.session.AutoTranslate() {
		w.buffer = nil
		w.mu.Unlock()
		return
	}
	// 整页运行进行中时推迟，运行结束后由下一个窗口接手
	if w.engine.Busy() {
		w.resetTimerLocked()
		w.mu.Unlock()
		return
	}
	nodes := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	target, source := w.session.Languages()
	if target == "" {
		return
	}

	// 增量提取只登记新节点，已处理节点原样跳过
	w.session.mu.Lock()
	var items []QueueItem
	for _, n := range nodes {
		if !w.session.page.IsAttached(n) {
			continue
		}
		items = append(items, w.session.extractor.ExtractNode(n)...)
	}
	w.session.mu.Unlock()

	if len(items) == 0 {
		return
	}

	w.logger.Debug("translating inserted content",
		zap.String("session", w.session.ID),
		zap.Int("count", len(items)))

	// 单次尝试：失败的新内容静默留在原文状态，不进重试循环
	out, err := w.engine.translateBatch(ctx, items, target, source, 1)
	if err != nil {
		w.logger.Warn("inserted content translation failed",
			zap.Int("count", len(items)),
			zap.Error(err))
		return
	}
	if out.Applied > 0 {
		w.session.markTranslated()
	}
}
