package syncgroup

import (
	"sync"
)

type syncGroupFunc func()

// SyncGroup sync.WaitGroup 包装：先 Add 一组函数，再 Run 并发执行，Wait 汇合
// 用于“并发拉取、全部完成后再合并”的场景，例如持仓与余额同时查询。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []syncGroupFunc
	running int
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个函数；Run 之后登记的函数要等下一次 Run 才会执行
func (w *SyncGroup) Add(fn syncGroupFunc) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, fn)
	w.mu.Unlock()
}

// Run 启动所有已登记的函数，并清空登记列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	fns := w.pending
	w.pending = nil
	w.running += len(fns)
	w.mu.Unlock()

	for _, fn := range fns {
		w.wg.Add(1)
		go func(doFunc syncGroupFunc) {
			defer func() {
				w.mu.Lock()
				w.running--
				w.mu.Unlock()
				w.wg.Done()
			}()
			doFunc()
		}(fn)
	}
}

// Running 当前仍在执行的函数数量
func (w *SyncGroup) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Wait 等待已启动的函数全部完成
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

// WaitAndClear 等待完成并丢弃尚未 Run 的函数
func (w *SyncGroup) WaitAndClear() {
	w.wg.Wait()
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
}
