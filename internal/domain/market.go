package domain

// MarketType 合约品种（由交易对后缀决定，初始化后不可变）
type MarketType string

const (
	MarketTypeLinearPerpetual  MarketType = "linear_perpetual"  // USDT 本位永续
	MarketTypeInversePerpetual MarketType = "inverse_perpetual" // 币本位永续
	MarketTypeInverseFutures   MarketType = "inverse_futures"   // 币本位交割
)

// IsInverse 是否为反向合约（以币结算）
func (m MarketType) IsInverse() bool {
	return m == MarketTypeInversePerpetual || m == MarketTypeInverseFutures
}

func (m MarketType) String() string { return string(m) }

// SymbolInfo 交易对规格（来自 /v2/public/symbols）
type SymbolInfo struct {
	Name          string
	BaseCurrency  string // 基础币（反向合约的保证金币种）
	QuoteCurrency string // 计价币（USDT 本位的保证金币种）
	MaxLeverage   float64
	PriceStep     float64
	QtyStep       float64
	MinQty        float64
}
