package domain

import (
	"github.com/shopspring/decimal"
)

// SubPosition 单边持仓
type SubPosition struct {
	Size             decimal.Decimal // 多头 >= 0，空头 <= 0
	EntryPrice       decimal.Decimal // 开仓均价（0 表示无持仓）
	Leverage         decimal.Decimal
	LiquidationPrice decimal.Decimal
	UnrealizedPnL    decimal.Decimal
}

// Position 双向持仓 + 钱包快照
// 每次对账整体替换，不做增量合并。
type Position struct {
	Long          SubPosition
	Short         SubPosition
	WalletBalance decimal.Decimal
	Equity        decimal.Decimal
}

// ComputeEquity 按 wallet_balance + 多空未实现盈亏 重新计算权益
func (p *Position) ComputeEquity() {
	p.Equity = p.WalletBalance.Add(p.Long.UnrealizedPnL).Add(p.Short.UnrealizedPnL)
}
