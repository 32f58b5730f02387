package translation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupController(t *testing.T) (*Session, *Engine, *Controller, *stubTranslator) {
	t.Helper()
	session, _ := newTestSession(t, threeNodePage)
	stub := echoTranslator()
	engine := NewEngine(session, stub, zap.NewNop(), WithRetryBackoff(0))
	watcher := NewWatcher(session, engine, zap.NewNop())
	return session, engine, NewController(session, engine, watcher, zap.NewNop()), stub
}

func TestControllerStartAndStatus(t *testing.T) {
	session, engine, ctrl, _ := setupController(t)

	resp := ctrl.Start(context.Background(), StartRequest{TargetLanguage: "es", SourceLanguage: "en"})
	assert.True(t, resp.Started)

	// 后台运行结束后状态回到空闲
	assert.Eventually(t, func() bool {
		return !engine.Busy() && session.HasCache()
	}, time.Second, 5*time.Millisecond)
	assert.False(t, ctrl.Status().IsTranslating)
}

// gatedCtxTranslator 在放行信号前阻塞，并尊重调用上下文的取消
type gatedCtxTranslator struct {
	release chan struct{}
}

func (s *gatedCtxTranslator) Translate(ctx context.Context, items []Item, target, _ string) (*Result, error) {
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{}
	for _, it := range items {
		res.Translations = append(res.Translations, Translation{
			ID:   it.ID,
			Text: "[" + target + "] " + it.Text,
		})
	}
	return res, nil
}

func (s *gatedCtxTranslator) GetName() string { return "gated" }

func TestControllerStartOutlivesRequestContext(t *testing.T) {
	session, _ := newTestSession(t, threeNodePage)
	stub := &gatedCtxTranslator{release: make(chan struct{})}
	engine := NewEngine(session, stub, zap.NewNop(), WithRetryBackoff(0))
	ctrl := NewController(session, engine, NewWatcher(session, engine, zap.NewNop()), zap.NewNop())

	// HTTP处理器的请求上下文在响应返回后立即被取消，
	// 后台运行必须不受影响地完成
	ctx, cancel := context.WithCancel(context.Background())
	resp := ctrl.Start(ctx, StartRequest{TargetLanguage: "es", SourceLanguage: "en"})
	require.True(t, resp.Started)
	cancel()
	close(stub.release)

	assert.Eventually(t, func() bool {
		return !engine.Busy() && session.HasCache()
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, findText(session.Page().Root(), "[es] First paragraph of text"))
}

func TestControllerWatcherResumesOnlyAfterSuccessfulRun(t *testing.T) {
	t.Run("失败的运行不恢复观察器", func(t *testing.T) {
		session, _ := newTestSession(t, threeNodePage)
		para := findElement(session.Page().Root(), "p")
		stub := &stubTranslator{fn: func([]Item, string, string) (*Result, error) {
			return nil, errors.New("connection refused")
		}}
		engine := NewEngine(session, stub, zap.NewNop(), WithRetryBackoff(0), WithRetryRounds(0))
		watcher := NewWatcher(session, engine, zap.NewNop())
		watcher.SetDebounce(time.Hour)
		watcher.Stop()
		ctrl := NewController(session, engine, watcher, zap.NewNop())

		require.True(t, ctrl.Start(context.Background(), StartRequest{TargetLanguage: "es"}).Started)
		assert.Never(t, func() bool {
			watcher.NotifyInserted(para)
			return watcher.Pending() > 0
		}, 200*time.Millisecond, 10*time.Millisecond)
	})

	t.Run("成功的运行恢复观察器", func(t *testing.T) {
		session, _ := newTestSession(t, threeNodePage)
		para := findElement(session.Page().Root(), "p")
		engine := NewEngine(session, echoTranslator(), zap.NewNop(), WithRetryBackoff(0))
		watcher := NewWatcher(session, engine, zap.NewNop())
		watcher.SetDebounce(time.Hour)
		watcher.Stop()
		ctrl := NewController(session, engine, watcher, zap.NewNop())

		require.True(t, ctrl.Start(context.Background(), StartRequest{TargetLanguage: "es"}).Started)
		assert.Eventually(t, func() bool {
			watcher.NotifyInserted(para)
			return watcher.Pending() > 0
		}, time.Second, 5*time.Millisecond)
	})
}

func TestControllerToggle(t *testing.T) {
	session, engine, ctrl, stub := setupController(t)

	_, err := engine.Translate(context.Background(), "es", "en")
	require.NoError(t, err)
	callsAfterRun := stub.Calls()

	// 显示译文 → 切回原文
	resp := ctrl.Toggle()
	assert.Equal(t, "original", resp.Showing)
	assert.True(t, resp.HasCache)
	assert.False(t, session.ShowingTranslations())
	assert.NotNil(t, findText(session.Page().Root(), "First paragraph of text"))

	// 原文+有缓存 → 不经翻译器回放译文
	resp = ctrl.Toggle()
	assert.Equal(t, "translated", resp.Showing)
	assert.True(t, session.ShowingTranslations())
	assert.NotNil(t, findText(session.Page().Root(), "[es] First paragraph of text"))
	assert.Equal(t, callsAfterRun, stub.Calls())
}

func TestControllerToggleNothingToRestore(t *testing.T) {
	_, _, ctrl, _ := setupController(t)

	resp := ctrl.Toggle()
	assert.Equal(t, "original", resp.Showing)
	assert.False(t, resp.HasCache)
	assert.Equal(t, "nothing to restore", resp.Message)
}

func TestControllerRestoreOriginal(t *testing.T) {
	session, engine, ctrl, _ := setupController(t)

	_, err := engine.Translate(context.Background(), "es", "en")
	require.NoError(t, err)

	resp := ctrl.RestoreOriginal()
	assert.True(t, resp.Restored)
	assert.True(t, resp.HasCache)
	assert.False(t, session.ShowingTranslations())
	assert.NotNil(t, findText(session.Page().Root(), "Second paragraph of text"))
}

func TestControllerCancel(t *testing.T) {
	_, engine, ctrl, _ := setupController(t)
	assert.True(t, ctrl.Cancel().Cancelled)
	assert.True(t, engine.cancelled.Load())
}

func TestControllerAutoTranslate(t *testing.T) {
	session, _, ctrl, _ := setupController(t)

	resp := ctrl.SetAutoTranslate(true)
	assert.True(t, resp.AutoTranslateEnabled)
	assert.True(t, session.AutoTranslate())
	assert.True(t, ctrl.Status().IsAutoTranslating)

	resp = ctrl.SetAutoTranslate(false)
	assert.False(t, resp.AutoTranslateEnabled)
	assert.False(t, session.AutoTranslate())
}

func TestControllerPageLanguage(t *testing.T) {
	page, _ := parsePage(t, `<html lang="fr-CA"><body><p>Bonjour tout le monde</p></body></html>`)
	session := NewSession(page, zap.NewNop())
	engine := NewEngine(session, echoTranslator(), zap.NewNop())
	ctrl := NewController(session, engine, nil, zap.NewNop())

	assert.Equal(t, "fr", ctrl.PageLanguage().Language)
}

func TestControllerApplyTranslations(t *testing.T) {
	session, _, ctrl, _ := setupController(t)

	// 先提取建立注册表，再应用外部预计算结果
	items := session.Extractor().Extract(session.Page().Body(), false)
	require.Len(t, items, 3)

	resp := ctrl.Apply(ApplyRequest{Translations: []Translation{
		{ID: items[0].ID, Text: "uno"},
		{ID: items[1].ID, Error: "bad"},
		{ID: 999, Text: "missing"},
	}})

	assert.Equal(t, 1, resp.Applied)
	assert.True(t, session.HasCache())
	assert.NotNil(t, findText(session.Page().Root(), "uno"))
}

func TestControllerDispatch(t *testing.T) {
	session, engine, ctrl, _ := setupController(t)

	t.Run("启动与状态查询", func(t *testing.T) {
		payload, _ := json.Marshal(StartRequest{TargetLanguage: "es", SourceLanguage: "en"})
		resp, err := ctrl.Dispatch(context.Background(), ActionStartTranslation, payload)
		require.NoError(t, err)
		assert.True(t, resp.(StartResponse).Started)

		assert.Eventually(t, func() bool {
			return !engine.Busy() && session.HasCache()
		}, time.Second, 5*time.Millisecond)

		resp, err = ctrl.Dispatch(context.Background(), ActionGetStatus, nil)
		require.NoError(t, err)
		assert.False(t, resp.(StatusResponse).IsTranslating)
	})

	t.Run("运行中重复启动被拒绝", func(t *testing.T) {
		engine.state.Store(int32(StateTranslating))
		defer engine.state.Store(int32(StateIdle))

		payload, _ := json.Marshal(StartRequest{TargetLanguage: "es"})
		resp, err := ctrl.Dispatch(context.Background(), ActionStartTranslation, payload)
		require.NoError(t, err)
		assert.False(t, resp.(StartResponse).Started)
	})

	t.Run("未知动作", func(t *testing.T) {
		_, err := ctrl.Dispatch(context.Background(), "selfDestruct", nil)
		assert.Error(t, err)
	})
}
