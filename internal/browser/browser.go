package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/internal/config"
	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// Browser 真实浏览器接入
// 为空ControlURL时自启动一个本地Chrome，否则连到已有实例的DevTools地址
type Browser struct {
	browser  *rod.Browser
	launched *launcher.Launcher
	logger   *zap.Logger
}

// Connect 建立浏览器连接
func Connect(cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var launched *launcher.Launcher
	controlURL := cfg.ControlURL
	if controlURL == "" {
		launched = launcher.New().Headless(cfg.Headless)
		u, err := launched.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if launched != nil {
			launched.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Info("browser connected", zap.Bool("managed", launched != nil))
	return &Browser{browser: b, launched: launched, logger: logger}, nil
}

// Close 断开连接并回收自启动的进程
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launched != nil {
		b.launched.Cleanup()
	}
	return err
}

// Tab 一个已加载页面的标签页
type Tab struct {
	page   *rod.Page
	logger *zap.Logger
}

// Open 打开新标签页并等待页面加载完成
func (b *Browser) Open(ctx context.Context, pageURL string) (*Tab, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.logger.Warn("wait load timeout", zap.String("url", pageURL), zap.Error(err))
	}

	return &Tab{page: page, logger: b.logger}, nil
}

// Close 关闭标签页
func (t *Tab) Close() error {
	return t.page.Close()
}

// harvestJS 一次求值带回序列化DOM、视口与全部元素的几何/样式快照
// 元素数组按document.querySelectorAll('*')的文档顺序排列，
// 与重新解析后的先序元素遍历一一对应
const harvestJS = `() => {
	const nodes = [];
	document.querySelectorAll('*').forEach((el) => {
		const r = el.getBoundingClientRect();
		const s = getComputedStyle(el);
		nodes.push({
			x: r.x, y: r.y, width: r.width, height: r.height,
			display: s.display, visibility: s.visibility,
		});
	});
	return JSON.stringify({
		html: document.documentElement.outerHTML,
		vw: window.innerWidth,
		vh: window.innerHeight,
		nodes: nodes,
	});
}`

// snapshot 采集结果
type snapshot struct {
	HTML  string     `json:"html"`
	VW    float64    `json:"vw"`
	VH    float64    `json:"vh"`
	Nodes []nodeGeom `json:"nodes"`
}

type nodeGeom struct {
	dom.Rect
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
}

// Harvest 把当前DOM与布局采集为可离线处理的页面模型
func (t *Tab) Harvest(ctx context.Context) (*dom.Page, error) {
	res, err := t.page.Context(ctx).Eval(harvestJS)
	if err != nil {
		return nil, fmt.Errorf("harvest page: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	layout := dom.NewMapLayout(dom.Rect{Width: snap.VW, Height: snap.VH})
	page, err := dom.ParseString(snap.HTML, layout)
	if err != nil {
		return nil, err
	}

	// 按文档顺序把几何信息配对回解析树的元素
	i := 0
	dom.WalkElements(page.Root(), func(n *html.Node) bool {
		if i >= len(snap.Nodes) {
			return false
		}
		g := snap.Nodes[i]
		layout.SetRect(n, g.Rect)
		layout.SetStyle(n, dom.Style{Display: g.Display, Visibility: g.Visibility})
		i++
		return true
	})
	if i != len(snap.Nodes) {
		t.logger.Debug("geometry snapshot mismatch",
			zap.Int("parsed", i),
			zap.Int("harvested", len(snap.Nodes)))
	}

	return page, nil
}

// Apply 把翻译后的文档写回标签页
// 整体替换文档内容，页面脚本状态不保留；适合快照式的翻译流程
func (t *Tab) Apply(ctx context.Context, page *dom.Page) error {
	htmlText, err := page.HTML()
	if err != nil {
		return fmt.Errorf("serialize page: %w", err)
	}
	if err := t.page.Context(ctx).SetDocumentContent(htmlText); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}
