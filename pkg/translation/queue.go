package translation

import (
	"sort"
)

// Queue 待翻译队列
// 以可重排的索引列表建模：优先级原地更新后整体稳定重排，
// 批次永远从队首（最高优先级）取走
type Queue struct {
	items []QueueItem
}

// NewQueue 创建队列，输入应当已按优先级降序
func NewQueue(items []QueueItem) *Queue {
	q := &Queue{items: make([]QueueItem, len(items))}
	copy(q.items, items)
	return q
}

// Len 剩余项数
func (q *Queue) Len() int { return len(q.items) }

// PopBatch 从队首取走至多n项
func (q *Queue) PopBatch(n int) []QueueItem {
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]QueueItem, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	return batch
}

// Push 追加项（不排序，调用方决定何时Sort）
func (q *Queue) Push(items ...QueueItem) {
	q.items = append(q.items, items...)
}

// Clear 清空队列
func (q *Queue) Clear() {
	q.items = nil
}

// Peek 只读访问剩余项
func (q *Queue) Peek() []QueueItem {
	return q.items
}

// Reprioritize 原地重算每个待处理项的优先级并降序重排
// score返回ok=false时保留旧值（节点已失效等情况）。
// 只影响尚未出队的剩余部分，不打扰已派发的批次
func (q *Queue) Reprioritize(score func(id int) (int, bool)) {
	for i := range q.items {
		if p, ok := score(q.items[i].ID); ok {
			q.items[i].Priority = p
		}
	}
	q.Sort()
}

// Sort 按优先级降序稳定排序
func (q *Queue) Sort() {
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
}
