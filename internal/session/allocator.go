package session

import (
	"container/heap"
	"sync"
)

// IDAllocator 连接 ID 分配器
// 回收复用：释放的槽位按最小值优先重新发放，0 号槽位保留不发放
type IDAllocator struct {
	mu    sync.Mutex
	freed intHeap
	next  int
}

// NewIDAllocator 创建 ID 分配器
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Generate 分配一个连接 ID，返回释放句柄
func (a *IDAllocator) Generate() *IDHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var id int
	if a.freed.Len() > 0 {
		id = heap.Pop(&a.freed).(int)
	} else {
		id = a.next
		a.next++
	}
	return &IDHandle{id: id, alloc: a}
}

func (a *IDAllocator) release(id int) {
	a.mu.Lock()
	heap.Push(&a.freed, id)
	a.mu.Unlock()
}

// IDHandle 连接 ID 句柄，Release 幂等
type IDHandle struct {
	id    int
	alloc *IDAllocator
	once  sync.Once
}

// ID 返回分配到的 ID
func (h *IDHandle) ID() int { return h.id }

// Release 释放槽位，重复调用只生效一次
func (h *IDHandle) Release() {
	h.once.Do(func() {
		h.alloc.release(h.id)
	})
}

// intHeap 小顶堆
type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)         { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
