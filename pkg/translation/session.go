package translation

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Eldoprano/offline-browser-translate/pkg/dom"
)

// Session 单页翻译会话
// 显式的会话对象由宿主持有并传给每个核心操作，取代页面级全局状态；
// 每个frame或每个测试都可以有自己独立的会话并干净地销毁。
// mu 串行化队列引擎与变更观察器对注册表和队列的访问
type Session struct {
	ID string

	mu        sync.Mutex
	page      *dom.Page
	registry  *Registry
	scorer    *Scorer
	extractor *Extractor
	logger    *zap.Logger

	// hasCache 页面级"存在缓存译文"标志
	hasCache bool

	// showing 当前是否正在显示译文，独立于hasCache
	showing bool

	// autoTranslate 是否自动翻译新插入内容
	autoTranslate bool

	targetLang string
	sourceLang string
}

// NewSession 为一个页面创建翻译会话
func NewSession(page *dom.Page, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := NewRegistry(page, logger)
	scorer := NewScorer(page.Layout())
	return &Session{
		ID:        uuid.New().String(),
		page:      page,
		registry:  registry,
		scorer:    scorer,
		extractor: NewExtractor(page, registry, scorer, logger),
		logger:    logger,
	}
}

// Page 会话的页面
func (s *Session) Page() *dom.Page { return s.page }

// Registry 会话的注册表
func (s *Session) Registry() *Registry { return s.registry }

// Scorer 会话的评分器
func (s *Session) Scorer() *Scorer { return s.scorer }

// Extractor 会话的提取器
func (s *Session) Extractor() *Extractor { return s.extractor }

// HasCache 是否存在缓存译文
func (s *Session) HasCache() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCache
}

// ShowingTranslations 当前是否显示译文
func (s *Session) ShowingTranslations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showing
}

// AutoTranslate 是否开启新内容自动翻译
func (s *Session) AutoTranslate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoTranslate
}

// SetAutoTranslate 设置新内容自动翻译开关
func (s *Session) SetAutoTranslate(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoTranslate = enabled
}

// Languages 当前运行捕获的目标/源语言
func (s *Session) Languages() (target, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLang, s.sourceLang
}

// DetectedLanguage 从文档元数据推导的页面基础语言标签
func (s *Session) DetectedLanguage() string {
	return s.page.Lang()
}

// 以下标记方法由引擎与控制器在完成记账时调用

func (s *Session) setLanguages(target, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetLang = target
	s.sourceLang = source
}

func (s *Session) markTranslated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCache = true
	s.showing = true
}

func (s *Session) setShowing(showing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showing = showing
}
