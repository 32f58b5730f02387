package translation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

func TestExtractEligibility(t *testing.T) {
	session, _ := newTestSession(t, `<html><body>
		<p>Visible paragraph text</p>
		<script>var x = "script text";</script>
		<code>inline code text</code>
		<div contenteditable="true">editable text</div>
		<div translate="no">do not translate</div>
		<span class="notranslate">opted out</span>
		<p>42</p>
		<p>!!!</p>
		<p>a</p>
	</body></html>`)

	items := session.Extractor().Extract(session.Page().Body(), false)

	require.Len(t, items, 1)
	assert.Equal(t, "Visible paragraph text", items[0].Text)
}

func TestExtractHiddenElements(t *testing.T) {
	session, layout := newTestSession(t, `<html><body>
		<p id="shown">shown paragraph</p>
		<p id="hidden">hidden paragraph</p>
	</body></html>`)

	hidden := findText(session.Page().Root(), "hidden paragraph").Parent
	layout.SetStyle(hidden, dom.Style{Display: "none"})

	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 1)
	assert.Equal(t, "shown paragraph", items[0].Text)
}

func TestExtractHiddenContainerDescendants(t *testing.T) {
	session, layout := newTestSession(t, `<html><body>
		<p>shown paragraph</p>
		<div id="overlay"><p>hidden modal text content</p></div>
	</body></html>`)

	// 浏览器只在隐藏容器本身标display:none，后代的计算样式仍是可见值
	overlay := findElement(session.Page().Root(), "div")
	layout.SetStyle(overlay, dom.Style{Display: "none"})
	inner := findText(session.Page().Root(), "hidden modal text content").Parent
	layout.SetStyle(inner, dom.Style{Display: "block"})

	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 1)
	assert.Equal(t, "shown paragraph", items[0].Text)
}

func TestExtractStatusMarkerSkipped(t *testing.T) {
	session, _ := newTestSession(t, `<html><body>
		<p>real page text</p>
		<div `+StatusMarkerAttr+`="1">Translating… 50%</div>
	</body></html>`)

	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 1)
	assert.Equal(t, "real page text", items[0].Text)
}

func TestExtractIDsUniqueAndResolvable(t *testing.T) {
	session, _ := newTestSession(t, `<html><body>
		<p>first paragraph of text</p>
		<div>second block of text</div>
		<li>third entry of text</li>
	</body></html>`)

	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 3)

	seen := make(map[int]bool)
	for _, it := range items {
		// id在提取期内唯一
		assert.False(t, seen[it.ID], "duplicate id %d", it.ID)
		seen[it.ID] = true

		// 每个id都能在注册表解析回去空白后等于item文本的节点
		entry, ok := session.Registry().Get(it.ID)
		require.True(t, ok)
		assert.Equal(t, it.Text, strings.TrimSpace(entry.OriginalText))
		assert.True(t, session.Page().IsAttached(entry.Node))
	}
}

func TestExtractPriorityOrder(t *testing.T) {
	session, layout := newTestSession(t, `<html><body>
		<nav><a href="/">Navigation link text</a></nav>
		<main><p>`+strings.Repeat("Main article body text. ", 10)+`</p></main>
	</body></html>`)

	p := findElement(session.Page().Root(), "p")
	a := findElement(session.Page().Root(), "a")
	layout.SetRect(p, dom.Rect{X: 300, Y: 100, Width: 400, Height: 100})
	layout.SetRect(a, dom.Rect{X: 300, Y: 10, Width: 100, Height: 20})

	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 2)

	// 降序：正文段落排在导航链接前
	assert.Contains(t, items[0].Text, "Main article")
	assert.GreaterOrEqual(t, items[0].Priority, items[1].Priority)
}

func TestExtractFullClearsIncrementalGrows(t *testing.T) {
	session, layout := newTestSession(t, `<html><body>
		<div id="container"><p>original paragraph text</p></div>
	</body></html>`)

	page := session.Page()
	ex := session.Extractor()

	first := ex.Extract(page.Body(), false)
	require.Len(t, first, 1)
	firstID := first[0].ID

	// 全量重提取清掉旧id并从零重新计数
	again := ex.Extract(page.Body(), false)
	require.Len(t, again, 1)
	assert.Equal(t, firstID, again[0].ID)
	assert.Equal(t, 1, session.Registry().Len())

	// 增量提取只登记新节点，已处理集合只增不减
	for _, it := range again {
		entry, _ := session.Registry().Get(it.ID)
		session.Registry().MarkProcessed(entry.Node)
	}

	container := findElement(page.Root(), "div")
	inserted := dom.NewElementNode("p")
	inserted.AppendChild(dom.NewTextNode("freshly inserted text"))
	page.AppendChild(container, inserted)
	layout.SetRect(inserted, dom.Rect{X: 400, Y: 200, Width: 200, Height: 20})

	incremental := ex.Extract(page.Body(), true)
	require.Len(t, incremental, 1)
	assert.Equal(t, "freshly inserted text", incremental[0].Text)
	assert.NotEqual(t, firstID, incremental[0].ID)
	assert.Equal(t, 2, session.Registry().Len())
}

func TestExtractNodeDirectText(t *testing.T) {
	session, _ := newTestSession(t, `<html><body>
		<p id="host">existing paragraph text</p>
	</body></html>`)

	page := session.Page()
	session.Extractor().Extract(page.Body(), false)

	// 单个文本节点直接评估，不做子树遍历
	host := findElement(page.Root(), "p")
	text := dom.NewTextNode("appended text node")
	page.AppendChild(host, text)

	items := session.Extractor().ExtractNode(text)
	require.Len(t, items, 1)
	assert.Equal(t, "appended text node", items[0].Text)
}
