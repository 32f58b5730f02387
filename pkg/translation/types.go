package translation

// Item 发送给翻译能力的最小单元
type Item struct {
	// ID 提取期内唯一的节点标识
	ID int `json:"id"`

	// Text 去除首尾空白后的原文
	Text string `json:"text"`
}

// Translation 单条翻译结果
type Translation struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Result 一次批量翻译调用的响应
// 响应与请求按ID严格匹配，允许乱序和部分缺失
type Result struct {
	Translations []Translation `json:"translations"`

	// Error 顶层错误，非空时整批视为传输/解析失败
	Error string `json:"error,omitempty"`
}

// QueueItem 待翻译队列项
// Priority 在视口变化时原地重算，不从头推导
type QueueItem struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// BatchOutcome 单个批次的处理结果
type BatchOutcome struct {
	Applied int
	Skipped int
	Failed  []Item
}

// RunSummary 一次整页翻译运行的最终摘要
// 用户可见的结果永远是这样的计数摘要，不暴露原始异常
type RunSummary struct {
	Total     int    `json:"total"`
	Applied   int    `json:"applied"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Percent   int    `json:"percent"`
	Cancelled bool   `json:"cancelled"`
	FailedIDs []int  `json:"failed_ids,omitempty"`
	Target    string `json:"target_language"`
	Source    string `json:"source_language"`
}

// State 引擎状态机
type State int32

const (
	// StateIdle 空闲，可以接受新的翻译运行
	StateIdle State = iota

	// StateExtracting 正在整页提取
	StateExtracting

	// StateTranslating 正在批次排空
	StateTranslating

	// StateCancelled 运行被取消，清理后回到Idle
	StateCancelled

	// StateCompleted 运行完成，记账后回到Idle
	StateCompleted
)

// String 实现Stringer
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateTranslating:
		return "translating"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Busy 是否有运行在进行中
func (s State) Busy() bool {
	return s == StateExtracting || s == StateTranslating
}
