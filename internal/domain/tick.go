package domain

import (
	"github.com/shopspring/decimal"
)

// Tick 标准化成交记录
// REST 来源带 TradeID；WebSocket 来源没有 TradeID（nil），调用方按到达顺序处理。
type Tick struct {
	TradeID      *int64          // 成交 ID（WS 来源为 nil）
	Price        decimal.Decimal // 成交价
	Qty          decimal.Decimal // 成交量
	TimestampMs  int64           // 成交时间（毫秒）
	IsBuyerMaker bool            // 主动卖出（side=Sell）
}

// HasTradeID 是否携带成交 ID
func (t Tick) HasTradeID() bool {
	return t.TradeID != nil
}

// TickOutcome 一次批量解析的结果分类
type TickOutcome int

const (
	TickOutcomeOK           TickOutcome = iota // 至少一条有效成交
	TickOutcomeEmpty                           // 批次为空（无新成交）
	TickOutcomeAllMalformed                    // 批次到达但全部解析失败
)

func (o TickOutcome) String() string {
	switch o {
	case TickOutcomeOK:
		return "ok"
	case TickOutcomeEmpty:
		return "empty"
	case TickOutcomeAllMalformed:
		return "all_malformed"
	default:
		return "unknown"
	}
}

// TickBatch 一批标准化成交
// 传输失败不会产生 TickBatch（由拉取方返回错误），因此空批次与失败可以区分。
type TickBatch struct {
	Ticks     []Tick
	Received  int // 收到的原始记录数
	Malformed int // 被跳过的记录数
}

// Outcome 返回批次分类
func (b TickBatch) Outcome() TickOutcome {
	switch {
	case len(b.Ticks) > 0:
		return TickOutcomeOK
	case b.Received == 0:
		return TickOutcomeEmpty
	default:
		return TickOutcomeAllMalformed
	}
}

// MaxTradeID 批次内最大的成交 ID（用于下一次 from 游标）
// 交易所可能按新到旧返回，不能依赖记录顺序。
func (b TickBatch) MaxTradeID() (int64, bool) {
	var (
		maxID int64
		found bool
	)
	for _, t := range b.Ticks {
		if !t.HasTradeID() {
			continue
		}
		if !found || *t.TradeID > maxID {
			maxID, found = *t.TradeID, true
		}
	}
	return maxID, found
}

// Newest 批次内最新的一条成交：优先比较成交 ID，没有 ID 时比较时间，相同时取后到的
func (b TickBatch) Newest() (Tick, bool) {
	if len(b.Ticks) == 0 {
		return Tick{}, false
	}
	newest := b.Ticks[0]
	for _, t := range b.Ticks[1:] {
		if t.HasTradeID() && newest.HasTradeID() {
			if *t.TradeID >= *newest.TradeID {
				newest = t
			}
			continue
		}
		if t.TimestampMs >= newest.TimestampMs {
			newest = t
		}
	}
	return newest, true
}
