package translation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// insertParagraph 向body追加一个段落并返回其元素节点
// 树与布局的修改都走会话互斥锁，模拟宿主在观察器回调里的行为
func insertParagraph(session *Session, layout *dom.MapLayout, text string) *html.Node {
	p := dom.NewElementNode("p")
	p.AppendChild(dom.NewTextNode(text))
	session.mu.Lock()
	session.Page().AppendChild(session.Page().Body(), p)
	layout.SetRect(p, dom.Rect{X: 400, Y: 300, Width: 200, Height: 20})
	session.mu.Unlock()
	return p
}

func setupWatcher(t *testing.T) (*Session, *Engine, *Watcher, *dom.MapLayout) {
	t.Helper()
	session, layout := newTestSession(t, `<html><body><p>Existing page text here</p></body></html>`)
	engine := NewEngine(session, echoTranslator(), zap.NewNop(), WithRetryBackoff(0))
	watcher := NewWatcher(session, engine, zap.NewNop())
	watcher.SetDebounce(5 * time.Millisecond)

	// 先跑一次整页翻译，建立语言与已处理集合
	_, err := engine.Translate(context.Background(), "es", "en")
	require.NoError(t, err)
	session.SetAutoTranslate(true)
	return session, engine, watcher, layout
}

func TestWatcherTranslatesInsertedContent(t *testing.T) {
	session, _, watcher, layout := setupWatcher(t)

	p := insertParagraph(session, layout, "Freshly loaded card text")
	watcher.NotifyInserted(p)

	// 去抖窗口静默后自动翻译新内容
	assert.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return findText(session.Page().Root(), "[es] Freshly loaded card text") != nil
	}, time.Second, 5*time.Millisecond)
}

func TestWatcherDebounceCoalesces(t *testing.T) {
	session, engine, watcher, layout := setupWatcher(t)
	base := engine.translator.(*stubTranslator).Calls()

	// 快速连续插入合并为一次翻译调用
	for i := 0; i < 4; i++ {
		watcher.NotifyInserted(insertParagraph(session, layout, "Burst inserted card text"))
	}

	assert.Eventually(t, func() bool {
		return watcher.Pending() == 0 && engine.translator.(*stubTranslator).Calls() == base+1
	}, time.Second, 5*time.Millisecond)
}

func TestWatcherStopDiscardsBuffer(t *testing.T) {
	session, _, watcher, layout := setupWatcher(t)

	watcher.NotifyInserted(insertParagraph(session, layout, "Should never be translated"))
	watcher.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, findText(session.Page().Root(), "[es] Should never"))
	assert.Equal(t, 0, watcher.Pending())
}

func TestWatcherRespectsAutoTranslateFlag(t *testing.T) {
	session, _, watcher, layout := setupWatcher(t)
	session.SetAutoTranslate(false)

	watcher.NotifyInserted(insertParagraph(session, layout, "Auto translate is off"))

	// 关闭自动翻译时缓冲被丢弃，不发起调用
	assert.Eventually(t, func() bool {
		return watcher.Pending() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, findText(session.Page().Root(), "[es] Auto translate"))
}

func TestWatcherDefersWhileEngineBusy(t *testing.T) {
	session, layout := newTestSession(t, `<html><body><p>Existing page text here</p></body></html>`)

	release := make(chan struct{})
	stub := &stubTranslator{
		fn: func(items []Item, target, _ string) (*Result, error) {
			<-release
			res := &Result{}
			for _, it := range items {
				res.Translations = append(res.Translations, Translation{ID: it.ID, Text: "[" + target + "] " + it.Text})
			}
			return res, nil
		},
	}
	engine := NewEngine(session, stub, zap.NewNop(), WithRetryBackoff(0))
	watcher := NewWatcher(session, engine, zap.NewNop())
	watcher.SetDebounce(5 * time.Millisecond)
	session.SetAutoTranslate(true)

	require.NoError(t, engine.Begin("es", "en"))
	done := make(chan struct{})
	go func() {
		_, _ = engine.Run(context.Background())
		close(done)
	}()
	assert.Eventually(t, engine.Busy, time.Second, time.Millisecond)

	// 整页运行进行中：缓冲保留、冲刷推迟
	watcher.NotifyInserted(insertParagraph(session, layout, "Inserted during full run"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, watcher.Pending())

	close(release)
	<-done

	// 运行结束后下一个去抖窗口接手
	assert.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return findText(session.Page().Root(), "[es] Inserted during full run") != nil
	}, time.Second, 5*time.Millisecond)
}
