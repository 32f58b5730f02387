package status

import (
	"sync"

	"github.com/fatih/color"
)

// TerminalReporter 终端状态通道
// 错误红色、普通状态青色；Hide只是换行收尾，终端没有可移除的浮层
type TerminalReporter struct {
	mu sync.Mutex

	errColor  *color.Color
	infoColor *color.Color
}

// NewTerminalReporter 创建终端状态通道
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		errColor:  color.New(color.FgRed, color.Bold),
		infoColor: color.New(color.FgCyan),
	}
}

// Show 显示一条状态
func (r *TerminalReporter) Show(message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isError {
		r.errColor.Printf("\r%s\n", message)
		return
	}
	r.infoColor.Printf("\r%-60s", message)
}

// Hide 收尾
func (r *TerminalReporter) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infoColor.Print("\r\n")
}

// Message 一条被记录的状态
type Message struct {
	Text    string
	IsError bool
}

// MemoryReporter 记录式状态通道，测试断言用
type MemoryReporter struct {
	mu       sync.Mutex
	messages []Message
	hidden   int
}

// NewMemoryReporter 创建记录式状态通道
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

// Show 记录一条状态
func (r *MemoryReporter) Show(message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: message, IsError: isError})
}

// Hide 计数
func (r *MemoryReporter) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden++
}

// Messages 已记录的状态副本
func (r *MemoryReporter) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Hidden Hide被调用的次数
func (r *MemoryReporter) Hidden() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden
}

// Last 最后一条状态
func (r *MemoryReporter) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
