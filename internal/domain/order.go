package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side 订单方向（规范化为小写）
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide 解析交易所返回的方向（"Buy"/"Sell" 等大小写不敏感）
func ParseSide(s string) Side {
	return Side(strings.ToLower(strings.TrimSpace(s)))
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// PositionSide 订单所属持仓方向
type PositionSide string

const (
	PositionSideLong    PositionSide = "long"
	PositionSideShort   PositionSide = "short"
	PositionSideUnknown PositionSide = "unknown" // buy 且无法识别 tag
	PositionSideBoth    PositionSide = "both"    // sell 且无法识别 tag
)

// 自定义 ID 标签
const (
	TagEntry = "entry"
	TagClose = "close"
)

// OrderIntent 策略层下单意图
type OrderIntent struct {
	Side         Side
	Type         OrderType
	Qty          decimal.Decimal
	Price        decimal.Decimal // 仅限价单使用
	PositionSide PositionSide
	CustomIDTag  string // "entry" / "close" / 其他
}

// IsClose 是否为平仓意图（reduce_only）
func (o OrderIntent) IsClose() bool {
	return o.CustomIDTag == TagClose
}

// Order 交易所挂单（标准化）
type Order struct {
	OrderID      string
	CustomID     string
	Symbol       string
	Price        decimal.Decimal
	Qty          decimal.Decimal
	Side         Side
	PositionSide PositionSide
	TimestampMs  int64
}

// OrderConfirmation 下单成功回执
type OrderConfirmation struct {
	Symbol       string
	Side         Side
	PositionSide PositionSide
	Type         OrderType
	Qty          decimal.Decimal
	Price        decimal.Decimal
}

// CancellationRecord 撤单回执（订单已成交/已撤销同样视为成功）
type CancellationRecord struct {
	Symbol       string
	Side         Side
	PositionSide PositionSide
	Qty          decimal.Decimal
	Price        decimal.Decimal
}
