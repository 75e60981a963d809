package ports

import (
	"context"

	"github.com/betbot/bybit-adapter/internal/domain"
)

// ReconcileHandler 接收一次完整对账结果（持仓快照 + 当前挂单）
// 每次都是整体替换，不需要与上一次合并。
type ReconcileHandler interface {
	OnReconcile(ctx context.Context, pos *domain.Position, orders []domain.Order)
}

// TickHandler 接收标准化成交（REST 轮询与 WS 推送共用）
type TickHandler interface {
	OnTicks(ctx context.Context, batch domain.TickBatch)
}
