package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Eldoprano/offline-browser-translate/internal/config"
	"github.com/Eldoprano/offline-browser-translate/pkg/translation"
)

// Frame 控制通道的一条入站消息
type Frame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply 控制通道的响应
type Reply struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server 控制服务
// 宿主（浏览器扩展、油猴脚本或其他前端）通过WebSocket逐帧发送控制消息，
// 同样的动作也暴露为普通POST端点方便curl调试
type Server struct {
	ctrl     *translation.Controller
	logger   *zap.Logger
	http     *http.Server
	upgrader websocket.Upgrader
}

// New 创建控制服务
func New(ctrl *translation.Controller, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		ctrl:   ctrl,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), cfg.AllowedOrigins)
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Post("/control/{action}", s.handleControl)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run 启动服务并阻塞到上下文取消
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleControl POST /control/{action}，请求体即payload
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var payload json.RawMessage
	if len(body) > 0 {
		payload = json.RawMessage(body)
	}

	reply := s.dispatch(r.Context(), Frame{Action: action, Payload: payload})

	w.Header().Set("Content-Type", "application/json")
	if !reply.OK {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = json.NewEncoder(w).Encode(reply)
}

// handleWS 每帧一条控制消息，同连接内顺序处理
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("control connection opened", zap.String("remote", conn.RemoteAddr().String()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("control connection error", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = conn.WriteJSON(Reply{OK: false, Error: "malformed frame: " + err.Error()})
			continue
		}

		reply := s.dispatch(r.Context(), frame)
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn("control reply write failed", zap.Error(err))
			return
		}
	}
}

// originAllowed 校验浏览器Origin头
// 无Origin的非浏览器客户端（curl、测试）放行；模式支持单个*通配，
// 全开放（开发模式）配置 "*"
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range allowed {
		if pattern == "*" || strings.EqualFold(pattern, origin) {
			return true
		}
		if strings.HasSuffix(pattern, "*") &&
			strings.HasPrefix(strings.ToLower(origin), strings.ToLower(strings.TrimSuffix(pattern, "*"))) {
			return true
		}
	}
	return false
}

// dispatch 调用控制器并包装响应
func (s *Server) dispatch(ctx context.Context, frame Frame) Reply {
	data, err := s.ctrl.Dispatch(ctx, frame.Action, frame.Payload)
	if err != nil {
		s.logger.Debug("control action failed",
			zap.String("action", frame.Action),
			zap.Error(err))
		return Reply{Action: frame.Action, OK: false, Error: err.Error()}
	}
	return Reply{Action: frame.Action, OK: true, Data: data}
}
