package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/language"
)

// Page 一个已加载页面的DOM模型
// 持有解析后的节点树和布局信息提供者，注册表中的节点引用都指向这棵树
type Page struct {
	doc    *goquery.Document
	root   *html.Node
	layout Layout
}

// NewPage 从已解析的文档创建页面
func NewPage(doc *goquery.Document, layout Layout) *Page {
	var root *html.Node
	if len(doc.Nodes) > 0 {
		root = doc.Nodes[0]
	}
	return &Page{doc: doc, root: root, layout: layout}
}

// Parse 从HTML流解析页面
func Parse(r io.Reader, layout Layout) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewPage(doc, layout), nil
}

// ParseString 从HTML字符串解析页面
func ParseString(s string, layout Layout) (*Page, error) {
	return Parse(strings.NewReader(s), layout)
}

// Doc 返回goquery文档
func (p *Page) Doc() *goquery.Document { return p.doc }

// Root 返回文档根节点
func (p *Page) Root() *html.Node { return p.root }

// Layout 返回布局信息提供者
func (p *Page) Layout() Layout { return p.layout }

// SetLayout 替换布局信息提供者
func (p *Page) SetLayout(layout Layout) { p.layout = layout }

// Body 返回body元素，找不到时返回根节点
func (p *Page) Body() *html.Node {
	if n := findElement(p.root, "body"); n != nil {
		return n
	}
	return p.root
}

// IsAttached 检查节点是否仍挂在文档树上
// 注册表持有的引用可能在任意时刻因页面脚本或用户操作而脱离文档，
// 所有写路径在写入前都要经过这个检查
func (p *Page) IsAttached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == p.root {
			return true
		}
	}
	return false
}

// Text 读取文本节点的当前内容
func (p *Page) Text(n *html.Node) string {
	if n == nil || n.Type != html.TextNode {
		return ""
	}
	return n.Data
}

// SetText 写入文本节点内容，节点已脱离文档时返回错误
func (p *Page) SetText(n *html.Node, text string) error {
	if n == nil || n.Type != html.TextNode {
		return fmt.Errorf("dom: not a text node")
	}
	if !p.IsAttached(n) {
		return fmt.Errorf("dom: node detached from document")
	}
	n.Data = text
	return nil
}

// AppendChild 向元素追加子节点
func (p *Page) AppendChild(parent, child *html.Node) {
	parent.AppendChild(child)
}

// RemoveNode 把节点从文档树摘除
func (p *Page) RemoveNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Lang 返回页面声明的基础语言标签（小写，去掉地区后缀）
// 依次检查<html lang>与<meta http-equiv="content-language">
func (p *Page) Lang() string {
	raw := ""
	if n := findElement(p.root, "html"); n != nil {
		raw, _ = Attr(n, "lang")
	}
	if raw == "" {
		p.doc.Find(`meta[http-equiv="content-language"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			raw, _ = s.Attr("content")
			return false
		})
	}
	if raw == "" {
		return ""
	}
	if i := strings.IndexAny(raw, ",;"); i >= 0 {
		raw = raw[:i]
	}
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.SplitN(strings.TrimSpace(raw), "-", 2)[0])
	}
	base, _ := tag.Base()
	return strings.ToLower(base.String())
}

// Render 序列化当前文档
func (p *Page) Render(w io.Writer) error {
	return html.Render(w, p.root)
}

// HTML 序列化为字符串
func (p *Page) HTML() (string, error) {
	var b strings.Builder
	if err := p.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// TagName 返回元素的小写标签名，非元素节点返回空串
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr 读取元素属性
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// ParentElement 返回节点最近的元素祖先
func ParentElement(n *html.Node) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			return cur
		}
	}
	return nil
}

// NewTextNode 创建游离的文本节点
func NewTextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// NewElementNode 创建游离的元素节点
func NewElementNode(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, Attr: attrs}
}

// WalkElements 按文档顺序先序遍历元素节点
func WalkElements(root *html.Node, fn func(*html.Node) bool) {
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if !fn(n) {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	if root != nil {
		walk(root)
	}
}

func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	WalkElements(root, func(n *html.Node) bool {
		if TagName(n) == tag {
			found = n
			return false
		}
		return true
	})
	return found
}
