package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Rect 布局矩形，坐标为视口坐标系
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects 判断两个矩形是否相交
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// CenterX 返回水平中心
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }

// CenterY 返回垂直中心
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// Style 计算样式摘要，只保留提取判定需要的字段
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
}

// Hidden 元素是否不可见
func (s Style) Hidden() bool {
	return s.Display == "none" || s.Visibility == "hidden"
}

// Layout 布局信息提供者
// 优先级评分每次调用都实时读取，这里的实现必须保持廉价：
// 一个元素一次矩形读取、一次样式读取，不做缓存
type Layout interface {
	// Viewport 当前视口矩形
	Viewport() Rect

	// BoundingRect 元素的包围矩形，未知元素返回ok=false
	BoundingRect(n *html.Node) (Rect, bool)

	// ComputedStyle 元素的计算样式摘要
	ComputedStyle(n *html.Node) Style
}

// MapLayout 基于显式映射的布局，用于测试和浏览器采集结果
type MapLayout struct {
	viewport Rect
	rects    map[*html.Node]Rect
	styles   map[*html.Node]Style
}

// NewMapLayout 创建映射布局
func NewMapLayout(viewport Rect) *MapLayout {
	return &MapLayout{
		viewport: viewport,
		rects:    make(map[*html.Node]Rect),
		styles:   make(map[*html.Node]Style),
	}
}

// SetRect 记录元素矩形
func (l *MapLayout) SetRect(n *html.Node, r Rect) { l.rects[n] = r }

// SetStyle 记录元素样式
func (l *MapLayout) SetStyle(n *html.Node, s Style) { l.styles[n] = s }

// SetViewport 更新视口（模拟滚动）
func (l *MapLayout) SetViewport(r Rect) { l.viewport = r }

// Viewport 实现Layout
func (l *MapLayout) Viewport() Rect { return l.viewport }

// BoundingRect 实现Layout
func (l *MapLayout) BoundingRect(n *html.Node) (Rect, bool) {
	r, ok := l.rects[n]
	return r, ok
}

// ComputedStyle 实现Layout
func (l *MapLayout) ComputedStyle(n *html.Node) Style {
	return l.styles[n]
}

// FlowLayout 无真实几何信息时的顺序流式布局
// 文件输入没有浏览器渲染结果，按文档顺序自上而下合成矩形，
// 让靠前、较长的正文仍然得到更高的优先级
type FlowLayout struct {
	viewport Rect
	rects    map[*html.Node]Rect
}

// 流式布局的行高与每行字符数估计值
const (
	flowLineHeight = 20.0
	flowLineChars  = 90
)

// NewFlowLayout 创建流式布局并遍历子树分配矩形
func NewFlowLayout(root *html.Node, viewportWidth, viewportHeight float64) *FlowLayout {
	l := &FlowLayout{
		viewport: Rect{X: 0, Y: 0, Width: viewportWidth, Height: viewportHeight},
		rects:    make(map[*html.Node]Rect),
	}
	l.build(root)
	return l
}

func (l *FlowLayout) build(root *html.Node) {
	y := 0.0
	WalkElements(root, func(n *html.Node) bool {
		text := directText(n)
		lines := 1.0
		if text != "" {
			chars := utf8.RuneCountInString(text)
			lines = float64((chars + flowLineChars - 1) / flowLineChars)
		}
		h := lines * flowLineHeight
		l.rects[n] = Rect{X: 0, Y: y, Width: l.viewport.Width, Height: h}
		if text != "" {
			y += h
		}
		return true
	})
}

// Viewport 实现Layout
func (l *FlowLayout) Viewport() Rect { return l.viewport }

// BoundingRect 实现Layout
func (l *FlowLayout) BoundingRect(n *html.Node) (Rect, bool) {
	r, ok := l.rects[n]
	return r, ok
}

// ComputedStyle 实现Layout，流式布局一律视为可见
func (l *FlowLayout) ComputedStyle(n *html.Node) Style { return Style{} }

// directText 元素直接文本子节点的拼接内容
func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data))
		}
	}
	return b.String()
}
