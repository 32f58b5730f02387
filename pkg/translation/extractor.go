package translation

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// StatusMarkerAttr 引擎自身状态指示元素携带的属性，提取时跳过
const StatusMarkerAttr = "data-pagetrans-status"

// 最短可翻译文本长度（去空白后）
const minTextLength = 2

// 内在不可文本化或交互性的元素，其子树整体跳过
var skipElements = map[string]bool{
	// 脚本与样式
	"script": true, "style": true, "noscript": true, "template": true,
	// 代码
	"code": true, "pre": true, "kbd": true, "samp": true,
	// 表单控件
	"input": true, "textarea": true, "select": true, "option": true,
	// 嵌入媒体
	"iframe": true, "object": true, "embed": true, "canvas": true,
	"svg": true, "math": true, "audio": true, "video": true,
}

// Extractor 文本提取器
// 遍历DOM子树，筛选合格文本节点，分配稳定标识，
// 产出按优先级降序的工作列表。副作用只有注册表写入，不触发翻译
type Extractor struct {
	page     *dom.Page
	registry *Registry
	scorer   *Scorer
	logger   *zap.Logger
}

// NewExtractor 创建提取器
func NewExtractor(page *dom.Page, registry *Registry, scorer *Scorer, logger *zap.Logger) *Extractor {
	return &Extractor{
		page:     page,
		registry: registry,
		scorer:   scorer,
		logger:   logger,
	}
}

// Extract 提取子树内的合格文本节点
// 全量模式（onlyNew=false）先清空注册表并重置id计数；
// 增量模式（onlyNew=true）跳过已处理节点，用于扫描新插入的DOM
func (e *Extractor) Extract(root *html.Node, onlyNew bool) []QueueItem {
	if !onlyNew {
		e.registry.Clear()
	}

	var items []QueueItem
	e.walk(root, onlyNew, &items)

	// 降序稳定排序，同分保持文档顺序
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority > items[j].Priority
	})

	e.logger.Debug("extracted translatable nodes",
		zap.Int("count", len(items)),
		zap.Bool("onlyNew", onlyNew))

	return items
}

// ExtractNode 处理单个新插入的节点
// 元素按子树递归增量提取，文本节点直接评估
func (e *Extractor) ExtractNode(n *html.Node) []QueueItem {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode {
		return e.Extract(n, true)
	}
	if n.Type != html.TextNode {
		return nil
	}

	var items []QueueItem
	e.evaluateTextNode(n, true, &items)
	return items
}

// walk 深度优先遍历，元素级过滤在下行时短路整棵子树
func (e *Extractor) walk(n *html.Node, onlyNew bool, items *[]QueueItem) {
	if n == nil {
		return
	}

	if n.Type == html.ElementNode && e.shouldSkipElement(n) {
		return
	}

	if n.Type == html.TextNode {
		e.evaluateTextNode(n, onlyNew, items)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, onlyNew, items)
	}
}

// evaluateTextNode 对单个文本节点做合格性判定并登记
func (e *Extractor) evaluateTextNode(n *html.Node, onlyNew bool, items *[]QueueItem) {
	if onlyNew && e.registry.IsProcessed(n) {
		return
	}

	el := dom.ParentElement(n)
	if el == nil || e.hasSkippedAncestor(el) {
		return
	}

	text := n.Data
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minTextLength || !containsLetter(trimmed) {
		return
	}

	entry := e.registry.Record(n, text)
	*items = append(*items, QueueItem{
		ID:       entry.ID,
		Text:     trimmed,
		Priority: e.scorer.Score(n),
	})
}

// shouldSkipElement 元素本身是否整体排除
func (e *Extractor) shouldSkipElement(n *html.Node) bool {
	if skipElements[dom.TagName(n)] {
		return true
	}
	if v, ok := dom.Attr(n, "contenteditable"); ok && (v == "" || strings.EqualFold(v, "true")) {
		return true
	}
	if v, ok := dom.Attr(n, "translate"); ok && strings.EqualFold(v, "no") {
		return true
	}
	if cls, ok := dom.Attr(n, "class"); ok && hasClass(cls, "notranslate") {
		return true
	}
	if _, ok := dom.Attr(n, StatusMarkerAttr); ok {
		return true
	}
	return false
}

// hasSkippedAncestor 自容器元素向上检查排除条件
// 隐藏判定也在整条祖先链上做：浏览器只在隐藏容器本身标display:none，
// 其后代的计算样式仍然是可见值
func (e *Extractor) hasSkippedAncestor(el *html.Node) bool {
	for cur := el; cur != nil; cur = dom.ParentElement(cur) {
		if cur.Type != html.ElementNode {
			continue
		}
		if e.shouldSkipElement(cur) {
			return true
		}
		if e.page.Layout().ComputedStyle(cur).Hidden() {
			return true
		}
	}
	return false
}

// containsLetter 文本是否包含任意书写系统的字母
// 纯标点、数字、空白内容不值得送去翻译
func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// hasClass class属性是否含指定类名
func hasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
