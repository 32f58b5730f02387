package translation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// 控制消息动作名
const (
	ActionStartTranslation  = "startTranslation"
	ActionCancel            = "cancelTranslation"
	ActionToggle            = "toggleTranslation"
	ActionRestoreOriginal   = "restoreOriginal"
	ActionSetAutoTranslate  = "setAutoTranslate"
	ActionGetStatus         = "getStatus"
	ActionGetPageLanguage   = "getPageLanguage"
	ActionApplyTranslations = "applyTranslations"
)

// StartRequest 整页翻译请求
type StartRequest struct {
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage"`
	ShowGlowEffect bool   `json:"showGlowEffect"`
}

// StartResponse 整页翻译响应
type StartResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// CancelResponse 取消响应
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ToggleResponse 切换响应
type ToggleResponse struct {
	Showing  string `json:"showing"` // "original" | "translated"
	HasCache bool   `json:"hasCache"`
	Message  string `json:"message,omitempty"`
}

// RestoreResponse 恢复原文响应
type RestoreResponse struct {
	Restored bool `json:"restored"`
	HasCache bool `json:"hasCache"`
}

// AutoTranslateRequest 自动翻译开关请求
type AutoTranslateRequest struct {
	Enabled bool `json:"enabled"`
}

// AutoTranslateResponse 自动翻译开关响应
type AutoTranslateResponse struct {
	AutoTranslateEnabled bool `json:"autoTranslateEnabled"`
}

// StatusResponse 状态查询响应
type StatusResponse struct {
	IsTranslating     bool `json:"isTranslating"`
	IsAutoTranslating bool `json:"isAutoTranslating"`
}

// LanguageResponse 页面语言查询响应
type LanguageResponse struct {
	Language string `json:"language"`
}

// ApplyRequest 外部预计算译文批量应用请求
type ApplyRequest struct {
	Translations []Translation `json:"translations"`
}

// ApplyResponse 批量应用响应
type ApplyResponse struct {
	Applied int `json:"applied"`
}

// Controller 切换/恢复控制器与控制消息分发器
// 宿主应用的请求通道把消息送到这里；它只通过会话、引擎与观察器操作页面
type Controller struct {
	session *Session
	engine  *Engine
	watcher *Watcher
	logger  *zap.Logger

	glow bool
}

// NewController 创建控制器
func NewController(session *Session, engine *Engine, watcher *Watcher, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session: session,
		engine:  engine,
		watcher: watcher,
		logger:  logger,
	}
}

// Start 启动整页翻译
// 引擎空闲时立即返回started=true并在后台排空队列；忙时拒绝而不是排队
func (c *Controller) Start(ctx context.Context, req StartRequest) StartResponse {
	err := c.engine.Begin(req.TargetLanguage, req.SourceLanguage)
	if err != nil {
		c.logger.Debug("start rejected", zap.Error(err))
		return StartResponse{Started: false, Reason: err.Error()}
	}
	c.glow = req.ShowGlowEffect

	// 运行寿命与控制请求解耦：HTTP处理器返回后请求上下文即被取消，
	// 后台排空只认引擎自己的协作式取消标志
	runCtx := context.WithoutCancel(ctx)
	go func() {
		summary, err := c.engine.Run(runCtx)
		if err != nil {
			c.logger.Warn("translation run failed", zap.Error(err))
			return
		}
		// 观察器只在一次成功的整页运行之后接管新内容
		if c.watcher != nil && summary.Applied > 0 && !summary.Cancelled {
			c.watcher.Resume()
		}
	}()

	return StartResponse{Started: true}
}

// Cancel 取消当前运行
func (c *Controller) Cancel() CancelResponse {
	c.engine.Cancel()
	return CancelResponse{Cancelled: true}
}

// Toggle 在原文与缓存译文间切换显示
// 当前显示译文 → 全部恢复原文并停止观察器；
// 当前显示原文且存在缓存 → 不经翻译器直接回放缓存译文；
// 没有缓存 → 无操作，报告nothing to restore
func (c *Controller) Toggle() ToggleResponse {
	c.session.mu.Lock()
	showing := c.session.showing
	hasCache := c.session.registry.HasCachedTranslations()
	c.session.mu.Unlock()

	switch {
	case showing:
		c.session.mu.Lock()
		c.session.registry.RestoreAllOriginal()
		c.session.mu.Unlock()
		c.session.setShowing(false)
		if c.watcher != nil {
			c.watcher.Stop()
		}
		return ToggleResponse{Showing: "original", HasCache: hasCache}

	case hasCache:
		c.session.mu.Lock()
		restored := c.session.registry.RestoreAllCached()
		c.session.mu.Unlock()
		if restored {
			c.session.setShowing(true)
			return ToggleResponse{Showing: "translated", HasCache: true}
		}
		return ToggleResponse{Showing: "original", HasCache: true, Message: "nothing to restore"}

	default:
		return ToggleResponse{Showing: "original", HasCache: false, Message: "nothing to restore"}
	}
}

// RestoreOriginal 无条件恢复全部原文
// 缓存译文保留在注册表内，之后的切换仍可回放
func (c *Controller) RestoreOriginal() RestoreResponse {
	c.session.mu.Lock()
	c.session.registry.RestoreAllOriginal()
	hasCache := c.session.registry.HasCachedTranslations()
	c.session.mu.Unlock()
	c.session.setShowing(false)
	if c.watcher != nil {
		c.watcher.Stop()
	}
	return RestoreResponse{Restored: true, HasCache: hasCache}
}

// SetAutoTranslate 开关新插入内容的自动翻译
func (c *Controller) SetAutoTranslate(enabled bool) AutoTranslateResponse {
	c.session.SetAutoTranslate(enabled)
	if c.watcher != nil {
		if enabled {
			c.watcher.Resume()
		} else {
			c.watcher.Stop()
		}
	}
	return AutoTranslateResponse{AutoTranslateEnabled: enabled}
}

// Status 当前状态
func (c *Controller) Status() StatusResponse {
	return StatusResponse{
		IsTranslating:     c.engine.Busy(),
		IsAutoTranslating: c.session.AutoTranslate(),
	}
}

// PageLanguage 页面基础语言标签（小写、去区域后缀）
func (c *Controller) PageLanguage() LanguageResponse {
	return LanguageResponse{Language: c.session.DetectedLanguage()}
}

// Apply 应用一组外部预计算的译文（流式/离线结果）
func (c *Controller) Apply(req ApplyRequest) ApplyResponse {
	applied := 0
	c.session.mu.Lock()
	for _, t := range req.Translations {
		if t.Error != "" || t.Text == "" {
			continue
		}
		if c.session.registry.ApplyTranslation(t.ID, t.Text) {
			applied++
		}
	}
	c.session.mu.Unlock()
	if applied > 0 {
		c.session.markTranslated()
	}
	return ApplyResponse{Applied: applied}
}

// GlowEnabled 最近一次启动请求是否开启发光标记
func (c *Controller) GlowEnabled() bool { return c.glow }

// Dispatch 按动作名分发一条JSON控制消息并返回响应体
func (c *Controller) Dispatch(ctx context.Context, action string, payload json.RawMessage) (any, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch action {
	case ActionStartTranslation:
		var req StartRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, WrapError(err, ErrCodeParse, "parse start request")
		}
		return c.Start(ctx, req), nil

	case ActionCancel:
		return c.Cancel(), nil

	case ActionToggle:
		return c.Toggle(), nil

	case ActionRestoreOriginal:
		return c.RestoreOriginal(), nil

	case ActionSetAutoTranslate:
		var req AutoTranslateRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, WrapError(err, ErrCodeParse, "parse auto-translate request")
		}
		return c.SetAutoTranslate(req.Enabled), nil

	case ActionGetStatus:
		return c.Status(), nil

	case ActionGetPageLanguage:
		return c.PageLanguage(), nil

	case ActionApplyTranslations:
		var req ApplyRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, WrapError(err, ErrCodeParse, "parse apply request")
		}
		return c.Apply(req), nil

	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}
