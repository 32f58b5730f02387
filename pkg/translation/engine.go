package translation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine 翻译队列引擎
// 每次运行走 Idle → Extracting → Translating → (Cancelled | Completed) → Idle
// 的状态机。同一时间只允许一次运行，并发启动请求直接收到busy信号而不是排队
type Engine struct {
	session    *Session
	translator Translator
	logger     *zap.Logger
	opts       engineOptions

	state     atomic.Int32
	cancelled atomic.Bool

	// pending 由会话互斥锁保护
	pending *Queue

	timerMu     sync.Mutex
	scrollTimer *time.Timer
}

// NewEngine 创建队列引擎
func NewEngine(session *Session, translator Translator, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := defaultEngineOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Engine{
		session:    session,
		translator: translator,
		logger:     logger,
		opts:       options,
	}
}

// State 当前状态
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Busy 是否有运行在进行中
func (e *Engine) Busy() bool {
	return e.State().Busy()
}

// Begin 占用引擎并进入Extracting状态
// 已有运行在进行时返回ErrBusy。成功后必须恰好调用一次Run
func (e *Engine) Begin(targetLang, sourceLang string) error {
	if e.translator == nil {
		return ErrNoTranslator
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateExtracting)) {
		return ErrBusy
	}
	e.cancelled.Store(false)
	e.session.setLanguages(targetLang, sourceLang)
	return nil
}

// Translate 一次完整的整页翻译运行（Begin + Run）
func (e *Engine) Translate(ctx context.Context, targetLang, sourceLang string) (*RunSummary, error) {
	if err := e.Begin(targetLang, sourceLang); err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// Run 执行整页翻译：提取、排空、补偿重试、记账
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	target, source := e.session.Languages()

	// 整页提取，清空注册表并重置id计数
	e.session.mu.Lock()
	items := e.session.extractor.Extract(e.session.page.Body(), false)
	e.pending = NewQueue(items)
	e.session.mu.Unlock()

	total := len(items)
	if total == 0 {
		e.finish(StateCompleted)
		e.showStatus("No translatable text found on this page", true)
		return nil, ErrNothingToTranslate
	}

	e.state.Store(int32(StateTranslating))
	e.logger.Info("translation run started",
		zap.String("session", e.session.ID),
		zap.String("target", target),
		zap.String("source", source),
		zap.Int("total", total))

	summary := &RunSummary{Total: total, Target: target, Source: source}
	attempted := 0
	var failed []Item
	var lastTransportErr error

	// 排空循环：每轮从队首取走一批最高优先级的条目
	for !e.cancelled.Load() {
		e.session.mu.Lock()
		batch := e.pending.PopBatch(e.opts.batchSize)
		e.session.mu.Unlock()
		if len(batch) == 0 {
			break
		}

		out, err := e.translateBatch(ctx, batch, target, source, e.opts.retryAttempts)
		summary.Applied += out.Applied
		summary.Skipped += out.Skipped
		failed = append(failed, out.Failed...)
		if err != nil {
			lastTransportErr = err
		}

		attempted += len(batch)
		e.reportProgress(attempted, total)
	}

	// 补偿轮：失败项用更小的批、单次尝试再试两轮
	for round := 1; round <= e.opts.retryRounds && len(failed) > 0 && !e.cancelled.Load(); round++ {
		if !e.opts.sleep(ctx, e.opts.retryBackoff*time.Duration(round)) {
			break
		}

		var still []Item
		for start := 0; start < len(failed) && !e.cancelled.Load(); start += e.opts.retryRoundBatch {
			end := start + e.opts.retryRoundBatch
			if end > len(failed) {
				end = len(failed)
			}
			chunk := itemsToQueueItems(failed[start:end])

			out, err := e.translateBatch(ctx, chunk, target, source, 1)
			summary.Applied += out.Applied
			summary.Skipped += out.Skipped
			still = append(still, out.Failed...)
			if err != nil {
				lastTransportErr = err
			}

			attempted += len(chunk)
			e.reportProgress(attempted, total)
		}
		failed = still
	}

	summary.Failed = len(failed)
	for _, it := range failed {
		summary.FailedIDs = append(summary.FailedIDs, it.ID)
	}
	summary.Percent = cappedPercent(attempted, total)

	if e.cancelled.Load() {
		e.session.mu.Lock()
		e.pending.Clear()
		e.session.mu.Unlock()
		summary.Cancelled = true
		e.finish(StateCancelled)
		e.showStatus("Translation cancelled", false)
		e.logger.Info("translation run cancelled",
			zap.String("session", e.session.ID),
			zap.Int("applied", summary.Applied))
		return summary, nil
	}

	// 零成功且全部因传输失败：整条流水线级失败
	if summary.Applied == 0 && lastTransportErr != nil && summary.Failed == total {
		e.finish(StateCompleted)
		e.showStatus("Translation service unreachable", true)
		return summary, WrapError(lastTransportErr, ErrCodeTransport, "translator unreachable")
	}

	if summary.Applied > 0 {
		e.session.markTranslated()
	}

	e.finish(StateCompleted)
	e.showSummary(summary)
	e.logger.Info("translation run completed",
		zap.String("session", e.session.ID),
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

// Cancel 协作式取消
// 在批次之间检查；在途的批次调用允许完成，之后不再派发新批次并清空队列
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// NotifyScroll 视口滚动稳定信号
// 去抖后为队列中所有待处理项原地重算优先级并降序重排，
// 改变后续批次的组成，不影响已派发的批次
func (e *Engine) NotifyScroll() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.scrollTimer != nil {
		e.scrollTimer.Stop()
	}
	e.scrollTimer = time.AfterFunc(e.opts.scrollDebounce, e.reprioritize)
}

// reprioritize 重算待处理队列的优先级
func (e *Engine) reprioritize() {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	if e.pending == nil || e.pending.Len() == 0 {
		return
	}

	e.pending.Reprioritize(func(id int) (int, bool) {
		entry, ok := e.session.registry.Get(id)
		if !ok || !e.session.page.IsAttached(entry.Node) {
			return 0, false
		}
		return e.session.scorer.Score(entry.Node), true
	})

	e.logger.Debug("pending queue reprioritized",
		zap.String("session", e.session.ID),
		zap.Int("pending", e.pending.Len()))
}

// translateBatch 翻译一个批次
// 传输/解析失败时整批重试至多retries次，退避500ms×尝试序号；
// 重试耗尽后整批标记失败。响应按ID匹配：带错误或缺失的ID归入失败，
// 目标节点已失效的写入只计入跳过，既不算成功也不再重试
func (e *Engine) translateBatch(ctx context.Context, batch []QueueItem, target, source string, retries int) (BatchOutcome, error) {
	var out BatchOutcome

	remaining := make([]Item, 0, len(batch))
	for _, qi := range batch {
		item := Item{ID: qi.ID, Text: qi.Text}

		// 缓存命中直接应用，不占用翻译器调用
		if e.opts.cache != nil {
			if cached, ok := e.opts.cache.Get(CacheKey(source, target, qi.Text)); ok {
				e.applyOne(item, cached, &out)
				continue
			}
		}
		remaining = append(remaining, item)
	}
	if len(remaining) == 0 {
		return out, nil
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if e.cancelled.Load() {
			out.Failed = append(out.Failed, remaining...)
			return out, lastErr
		}

		res, err := e.translator.Translate(ctx, remaining, target, source)
		if err == nil && res == nil {
			err = fmt.Errorf("translator returned empty result")
		}
		if err == nil && res.Error != "" {
			err = fmt.Errorf("translator error: %s", res.Error)
		}
		if err != nil {
			lastErr = err
			e.logger.Warn("batch translation attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("batchSize", len(remaining)),
				zap.Error(err))
			if attempt < retries {
				e.opts.sleep(ctx, e.opts.retryBackoff*time.Duration(attempt))
			}
			continue
		}

		byID := make(map[int]Translation, len(res.Translations))
		for _, t := range res.Translations {
			byID[t.ID] = t
		}

		for _, item := range remaining {
			t, ok := byID[item.ID]
			if !ok || t.Error != "" || t.Text == "" {
				// 响应内的单项失败不在本批内重试，留给补偿轮
				out.Failed = append(out.Failed, item)
				continue
			}
			e.applyOne(item, t.Text, &out)
			if e.opts.cache != nil {
				_ = e.opts.cache.Set(CacheKey(source, target, item.Text), t.Text)
			}
		}
		return out, nil
	}

	out.Failed = append(out.Failed, remaining...)
	return out, lastErr
}

// applyOne 通过注册表应用一条译文
func (e *Engine) applyOne(item Item, text string, out *BatchOutcome) {
	e.session.mu.Lock()
	ok := e.session.registry.ApplyTranslation(item.ID, text)
	e.session.mu.Unlock()
	if ok {
		out.Applied++
	} else {
		out.Skipped++
	}
}

// finish 状态机收尾，回到Idle
func (e *Engine) finish(terminal State) {
	e.state.Store(int32(terminal))
	e.state.Store(int32(StateIdle))
}

// reportProgress 每批之后上报进度
func (e *Engine) reportProgress(attempted, total int) {
	pct := cappedPercent(attempted, total)
	if e.opts.progress != nil {
		e.opts.progress(attempted, total, pct)
	}
	e.showStatus(fmt.Sprintf("Translating… %d%%", pct), false)
}

// showSummary 最终的用户可见摘要，永远是计数而不是原始异常
func (e *Engine) showSummary(s *RunSummary) {
	msg := fmt.Sprintf("Translated %d/%d (%d%%)", s.Applied, s.Total, s.Percent)
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failed)
	}
	e.showStatus(msg, false)
	if e.opts.status != nil {
		e.opts.status.Hide()
	}
}

func (e *Engine) showStatus(msg string, isError bool) {
	if e.opts.status != nil {
		e.opts.status.Show(msg, isError)
	}
}

func cappedPercent(attempted, total int) int {
	if total == 0 {
		return 100
	}
	pct := int(math.Round(100 * float64(attempted) / float64(total)))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func itemsToQueueItems(items []Item) []QueueItem {
	out := make([]QueueItem, len(items))
	for i, it := range items {
		out[i] = QueueItem{ID: it.ID, Text: it.Text}
	}
	return out
}
