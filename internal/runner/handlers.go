package runner

import (
	"context"
	"sync"

	"github.com/betbot/bybit-adapter/internal/domain"
)

// SnapshotHandler 保存最近一次对账结果与最新成交价，并写日志
// 同时实现 ports.ReconcileHandler 和 ports.TickHandler。
type SnapshotHandler struct {
	mu        sync.RWMutex
	position  *domain.Position
	orders    []domain.Order
	lastTick  *domain.Tick
	tickCount int64
}

func NewSnapshotHandler() *SnapshotHandler {
	return &SnapshotHandler{}
}

func (h *SnapshotHandler) OnReconcile(ctx context.Context, pos *domain.Position, orders []domain.Order) {
	h.mu.Lock()
	h.position = pos
	h.orders = append([]domain.Order(nil), orders...)
	h.mu.Unlock()

	log.Infof("对账: long=%s@%s short=%s@%s wallet=%s equity=%s open_orders=%d",
		pos.Long.Size, pos.Long.EntryPrice, pos.Short.Size, pos.Short.EntryPrice,
		pos.WalletBalance, pos.Equity, len(orders))
}

func (h *SnapshotHandler) OnTicks(ctx context.Context, batch domain.TickBatch) {
	last, ok := batch.Newest()
	if !ok {
		return
	}
	h.mu.Lock()
	h.lastTick = &last
	h.tickCount += int64(len(batch.Ticks))
	h.mu.Unlock()

	log.Debugf("成交 %d 条，最新价 %s", len(batch.Ticks), last.Price)
}

// Snapshot 最近一次对账结果；尚未对账时 pos 为 nil
func (h *SnapshotHandler) Snapshot() (pos *domain.Position, orders []domain.Order) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.position, append([]domain.Order(nil), h.orders...)
}

// LastTick 最新成交与累计条数
func (h *SnapshotHandler) LastTick() (*domain.Tick, int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTick, h.tickCount
}
