package translation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// testViewport 测试用视口
var testViewport = dom.Rect{X: 0, Y: 0, Width: 1000, Height: 800}

// parsePage 从HTML构建带映射布局的页面
func parsePage(t *testing.T, src string) (*dom.Page, *dom.MapLayout) {
	t.Helper()
	layout := dom.NewMapLayout(testViewport)
	page, err := dom.ParseString(src, layout)
	require.NoError(t, err)
	return page, layout
}

// findText 按内容查找文本节点
func findText(root *html.Node, substr string) *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode && strings.Contains(n.Data, substr) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// findElement 按标签查找第一个元素
func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	dom.WalkElements(root, func(n *html.Node) bool {
		if dom.TagName(n) == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// placeInViewport 为子树里所有元素登记视口内矩形
func placeInViewport(layout *dom.MapLayout, root *html.Node) {
	y := 10.0
	dom.WalkElements(root, func(n *html.Node) bool {
		layout.SetRect(n, dom.Rect{X: 400, Y: y, Width: 200, Height: 20})
		y += 5
		return true
	})
}

// stubTranslator 按函数定制的翻译器桩
type stubTranslator struct {
	mu    sync.Mutex
	calls int
	fn    func(items []Item, target, source string) (*Result, error)
}

func (s *stubTranslator) Translate(_ context.Context, items []Item, target, source string) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(items, target, source)
}

func (s *stubTranslator) GetName() string { return "stub" }

func (s *stubTranslator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// echoTranslator 全部成功：译文为 [target] + 原文
func echoTranslator() *stubTranslator {
	return &stubTranslator{
		fn: func(items []Item, target, _ string) (*Result, error) {
			res := &Result{}
			for _, it := range items {
				res.Translations = append(res.Translations, Translation{
					ID:   it.ID,
					Text: "[" + target + "] " + it.Text,
				})
			}
			return res, nil
		},
	}
}

// newTestSession 构建带视口内矩形的会话
func newTestSession(t *testing.T, src string) (*Session, *dom.MapLayout) {
	t.Helper()
	page, layout := parsePage(t, src)
	placeInViewport(layout, page.Body())
	return NewSession(page, zap.NewNop()), layout
}
