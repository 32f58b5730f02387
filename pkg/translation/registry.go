package translation

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// Entry 一个翻译单元
type Entry struct {
	// ID 提取期内唯一、单调分配的整数标识
	ID int

	// Node 指向活动文本节点的引用，注册表是id到节点的唯一权威映射
	// 引用可能在没有任何通知的情况下失效（节点脱离文档），写路径必须防御
	Node *html.Node

	// OriginalText 提取时捕获的原文，含首尾空白
	OriginalText string

	// TranslatedText 成功应用过的译文（去空白），为空表示尚未翻译
	TranslatedText string

	// IsTranslated 是否持有缓存译文，与当前是否正在显示译文无关
	IsTranslated bool
}

// Registry 节点注册表
// id到节点引用与原文/译文的属主映射，加上已处理节点集合。
// 自身不做并发保护，队列引擎与变更观察器通过会话互斥锁串行访问
type Registry struct {
	page      *dom.Page
	logger    *zap.Logger
	entries   map[int]*Entry
	processed map[*html.Node]bool
	nextID    int
}

// NewRegistry 创建注册表
func NewRegistry(page *dom.Page, logger *zap.Logger) *Registry {
	return &Registry{
		page:      page,
		logger:    logger,
		entries:   make(map[int]*Entry),
		processed: make(map[*html.Node]bool),
	}
}

// Record 登记一个文本节点并分配下一个id
func (r *Registry) Record(node *html.Node, text string) *Entry {
	entry := &Entry{
		ID:           r.nextID,
		Node:         node,
		OriginalText: text,
	}
	r.entries[entry.ID] = entry
	r.nextID++
	return entry
}

// Get 按id取条目
func (r *Registry) Get(id int) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Len 条目数
func (r *Registry) Len() int { return len(r.entries) }

// Each 遍历全部条目（id顺序不保证）
func (r *Registry) Each(fn func(*Entry)) {
	for _, e := range r.entries {
		fn(e)
	}
}

// IsProcessed 节点是否已处理
func (r *Registry) IsProcessed(node *html.Node) bool {
	return r.processed[node]
}

// MarkProcessed 把节点加入已处理集合
func (r *Registry) MarkProcessed(node *html.Node) {
	r.processed[node] = true
}

// ApplyTranslation 把译文连同原文的首尾空白写回活动节点
// 节点已失效时返回false并记录日志，不抛出，也不影响其他条目
func (r *Registry) ApplyTranslation(id int, text string) bool {
	entry, ok := r.entries[id]
	if !ok {
		r.logger.Debug("apply translation for unknown id", zap.Int("id", id))
		return false
	}

	lead := leadingWhitespace(entry.OriginalText)
	trail := trailingWhitespace(entry.OriginalText)

	if err := r.page.SetText(entry.Node, lead+text+trail); err != nil {
		r.logger.Debug("apply translation write failed",
			zap.Int("id", id),
			zap.Error(err))
		return false
	}

	entry.TranslatedText = text
	entry.IsTranslated = true
	r.processed[entry.Node] = true
	return true
}

// RestoreOriginal 为单个条目写回原文
// 节点移出已处理集合（重新变得可提取），但保留IsTranslated与译文，
// 之后的切换可以不经翻译器直接恢复
func (r *Registry) RestoreOriginal(id int) bool {
	entry, ok := r.entries[id]
	if !ok || !entry.IsTranslated {
		return false
	}

	if err := r.page.SetText(entry.Node, entry.OriginalText); err != nil {
		r.logger.Debug("restore original write failed",
			zap.Int("id", id),
			zap.Error(err))
		return false
	}

	delete(r.processed, entry.Node)
	return true
}

// RestoreAllOriginal 为所有持有译文的条目写回原文，返回恢复数量
func (r *Registry) RestoreAllOriginal() int {
	restored := 0
	for _, entry := range r.entries {
		if entry.IsTranslated && r.RestoreOriginal(entry.ID) {
			restored++
		}
	}
	return restored
}

// RestoreCached 重新应用单个条目的缓存译文
func (r *Registry) RestoreCached(id int) bool {
	entry, ok := r.entries[id]
	if !ok || !entry.IsTranslated || entry.TranslatedText == "" {
		return false
	}
	// 与原文相同的译文没有恢复价值
	if entry.TranslatedText == strings.TrimSpace(entry.OriginalText) {
		return false
	}

	lead := leadingWhitespace(entry.OriginalText)
	trail := trailingWhitespace(entry.OriginalText)
	if err := r.page.SetText(entry.Node, lead+entry.TranslatedText+trail); err != nil {
		r.logger.Debug("restore cached write failed",
			zap.Int("id", id),
			zap.Error(err))
		return false
	}

	r.processed[entry.Node] = true
	return true
}

// RestoreAllCached 重新应用全部缓存译文，返回是否恢复了任何条目
func (r *Registry) RestoreAllCached() bool {
	restored := false
	for _, entry := range r.entries {
		if r.RestoreCached(entry.ID) {
			restored = true
		}
	}
	return restored
}

// HasCachedTranslations 是否存在任何缓存译文
func (r *Registry) HasCachedTranslations() bool {
	for _, entry := range r.entries {
		if entry.IsTranslated {
			return true
		}
	}
	return false
}

// Clear 清空条目与已处理集合并重置id计数，开启新的提取期
func (r *Registry) Clear() {
	r.entries = make(map[int]*Entry)
	r.processed = make(map[*html.Node]bool)
	r.nextID = 0
}

// leadingWhitespace 原文的前导空白
func leadingWhitespace(text string) string {
	trimmed := strings.TrimLeft(text, " \t\n\r")
	return text[:len(text)-len(trimmed)]
}

// trailingWhitespace 原文的尾随空白
func trailingWhitespace(text string) string {
	trimmed := strings.TrimRight(text, " \t\n\r")
	return text[len(trimmed):]
}
