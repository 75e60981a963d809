package ports

import (
	"context"
	"time"

	"github.com/betbot/bybit-adapter/internal/domain"
)

// JSONWriter 可发送 JSON 消息的 WS 连接
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// Small capability interfaces shared across layers (runner/exchange).

type PositionFetcher interface {
	FetchPosition(ctx context.Context) (*domain.Position, error)
}

type OpenOrdersFetcher interface {
	FetchOpenOrders(ctx context.Context) ([]domain.Order, error)
}

// TickFetcher fromID 为 nil 时拉取最近成交
type TickFetcher interface {
	FetchTicks(ctx context.Context, fromID *int64) (domain.TickBatch, error)
}

type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderConfirmation, error)
	ExecuteCancellation(ctx context.Context, order domain.Order) (*domain.CancellationRecord, error)
}

// TickStream WS 成交流：订阅 + 解析单条推送
type TickStream interface {
	WebsocketURL() string
	SubscribeWS(conn JSONWriter) error
	HandleWSMessage(raw []byte, receivedAt time.Time) (domain.TickBatch, error)
}

// ExchangeAdapter 单交易对合约适配器
type ExchangeAdapter interface {
	Initialize(ctx context.Context) error
	PositionFetcher
	OpenOrdersFetcher
	TickFetcher
	OrderExecutor
	TickStream
}
