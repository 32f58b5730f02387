package translation

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// 语义祖先遍历的最大层数
const maxAncestorDepth = 15

// 视口命中与语义分类的加权值
const (
	scoreInViewport   = 10000
	scoreTopHalf      = 200
	scoreMainContent  = 500
	scoreMixedSignal  = 100
	scorePeripheral   = -300
	scoreOffCenter    = -100
	offCenterFraction = 0.35
)

// id/class中表示正文或外围区域的记号
var (
	mainTokenRe = regexp2.MustCompile(`(?:^|[-_\s])(content|article|post|entry|story|main)`, regexp2.IgnoreCase)
	periTokenRe = regexp2.MustCompile(`(?:^|[-_\s])(side-?bar|nav|menu|footer|header|toc|widget|breadcrumb)`, regexp2.IgnoreCase)
)

// 正文与外围的landmark标签
var (
	mainTags = map[string]bool{"main": true, "article": true}
	periTags = map[string]bool{"nav": true, "aside": true, "footer": true, "header": true}
)

// 正文与外围的ARIA角色
var (
	mainRoles = map[string]bool{"main": true, "article": true}
	periRoles = map[string]bool{
		"navigation": true, "complementary": true, "banner": true,
		"contentinfo": true, "menu": true, "menubar": true,
	}
)

// 直接容器标签的加减分
var containerTagScores = map[string]int{
	"p":          80,
	"h1":         70,
	"h2":         64,
	"h3":         58,
	"h4":         52,
	"h5":         46,
	"h6":         40,
	"li":         30,
	"td":         20,
	"th":         20,
	"blockquote": 25,
	"figcaption": 25,
	"span":       5,
	"div":        5,
	"a":          -10,
	"label":      -30,
	"button":     -50,
}

// Scorer 文本节点翻译优先级评分器
// 对当前DOM与布局状态是纯函数：每次调用实时读取几何与祖先信息，
// 不跨调用缓存任何结果（几何随滚动变化）
type Scorer struct {
	layout dom.Layout
}

// NewScorer 创建评分器
func NewScorer(layout dom.Layout) *Scorer {
	return &Scorer{layout: layout}
}

// Score 计算节点的翻译优先级，结果非负
// 接受文本节点或元素节点；文本节点取最近的元素祖先作为容器
func (s *Scorer) Score(n *html.Node) int {
	el := n
	if n != nil && n.Type != html.ElementNode {
		el = dom.ParentElement(n)
	}
	if el == nil {
		return 0
	}

	score := 0
	vp := s.layout.Viewport()
	rect, hasRect := s.layout.BoundingRect(el)

	// 1. 视口命中
	if hasRect && rect.Intersects(vp) {
		score += scoreInViewport
		if rect.CenterY() < vp.Y+vp.Height/2 {
			score += scoreTopHalf
		}
	}

	// 2. 文本长度分档
	score += lengthScore(textOf(n))

	// 3. 语义祖先遍历
	score += s.ancestryScore(el)

	// 4. 直接容器标签
	score += containerTagScores[dom.TagName(el)]

	// 5. 水平偏心惩罚，补抓第3步漏掉的侧栏
	if hasRect && vp.Width > 0 {
		pageCenter := vp.Width / 2
		if abs(rect.CenterX()-pageCenter) > offCenterFraction*vp.Width {
			score += scoreOffCenter
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

// lengthScore 按去空白后的长度分档
func lengthScore(text string) int {
	l := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case l >= 200:
		return 150
	case l >= 100:
		return 100
	case l >= 50:
		return 60
	case l >= 20:
		return 30
	default:
		return -20
	}
}

// ancestryScore 沿祖先链分类正文/外围信号
func (s *Scorer) ancestryScore(el *html.Node) int {
	sawMain := false
	sawPeri := false

	cur := el
	for depth := 0; cur != nil && depth < maxAncestorDepth; depth++ {
		tag := dom.TagName(cur)
		role, _ := dom.Attr(cur, "role")
		role = strings.ToLower(role)
		idCls := identityTokens(cur)

		if mainTags[tag] || mainRoles[role] || matchToken(mainTokenRe, idCls) {
			sawMain = true
		}
		if periTags[tag] || periRoles[role] || matchToken(periTokenRe, idCls) {
			sawPeri = true
		}

		cur = dom.ParentElement(cur)
	}

	switch {
	case sawMain && !sawPeri:
		return scoreMainContent
	case sawMain && sawPeri:
		return scoreMixedSignal
	case sawPeri:
		return scorePeripheral
	default:
		return 0
	}
}

// identityTokens 拼接元素的id与class供记号匹配
func identityTokens(n *html.Node) string {
	id, _ := dom.Attr(n, "id")
	cls, _ := dom.Attr(n, "class")
	if id == "" && cls == "" {
		return ""
	}
	// 前置分隔符让词首锚定的模式也能命中
	return " " + id + " " + cls
}

func matchToken(re *regexp2.Regexp, s string) bool {
	if s == "" {
		return false
	}
	ok, err := re.MatchString(s)
	return err == nil && ok
}

// textOf 节点文本：文本节点取自身，元素取直接文本子节点
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
