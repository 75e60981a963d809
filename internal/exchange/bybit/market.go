package bybit

import (
	"fmt"
	"strings"

	"github.com/betbot/bybit-adapter/internal/domain"
)

// Op 逻辑操作名，调用方只通过逻辑名寻址，不直接拼路径
type Op string

const (
	OpPosition     Op = "position"
	OpOpenOrders   Op = "open_orders"
	OpCreateOrder  Op = "create_order"
	OpCancelOrder  Op = "cancel_order"
	OpTicks        Op = "ticks"
	OpWebsocket    Op = "websocket"
	OpCreatedAtKey Op = "created_at_key"
	OpBalance      Op = "balance"
)

const (
	pathSymbols = "/v2/public/symbols"
	pathTickers = "/v2/public/tickers"
	pathBalance = "/v2/private/wallet/balance"
)

// EndpointSet 某一合约品种的固定路径表（按值返回，只读）
type EndpointSet struct {
	Position     string
	OpenOrders   string
	CreateOrder  string
	CancelOrder  string
	Ticks        string
	Websocket    string
	CreatedAtKey string
	Balance      string
}

// Path 按逻辑名查找路径
func (e EndpointSet) Path(op Op) (string, error) {
	var p string
	switch op {
	case OpPosition:
		p = e.Position
	case OpOpenOrders:
		p = e.OpenOrders
	case OpCreateOrder:
		p = e.CreateOrder
	case OpCancelOrder:
		p = e.CancelOrder
	case OpTicks:
		p = e.Ticks
	case OpWebsocket:
		p = e.Websocket
	case OpCreatedAtKey:
		p = e.CreatedAtKey
	case OpBalance:
		p = e.Balance
	}
	if p == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOperation, op)
	}
	return p, nil
}

// variant 合约品种的全部差异：路径表、持仓解析策略、下单规则
// 新增品种只需要在 variants 中登记。
type variant struct {
	endpoints         EndpointSet
	parsePosition     positionParser
	integerQty        bool // 数量按整数张数下单
	oneWayOnly        bool // 不支持双向持仓
	reduceOnlyInHedge bool // 双向持仓模式下仍需设置 reduce_only
}

var variants = map[domain.MarketType]variant{
	domain.MarketTypeLinearPerpetual: {
		parsePosition:     parseLinearPosition,
		reduceOnlyInHedge: true,
		endpoints: EndpointSet{
			Position:     "/private/linear/position/list",
			OpenOrders:   "/private/linear/order/search",
			CreateOrder:  "/private/linear/order/create",
			CancelOrder:  "/private/linear/order/cancel",
			Ticks:        "/public/linear/recent-trading-records",
			Websocket:    "wss://stream.bybit.com/realtime_public",
			CreatedAtKey: "created_time",
			Balance:      pathBalance,
		},
	},
	domain.MarketTypeInversePerpetual: {
		parsePosition: parseInversePerpetualPosition,
		integerQty:    true,
		oneWayOnly:    true,
		endpoints: EndpointSet{
			Position:     "/v2/private/position/list",
			OpenOrders:   "/v2/private/order",
			CreateOrder:  "/v2/private/order/create",
			CancelOrder:  "/v2/private/order/cancel",
			Ticks:        "/v2/public/trading-records",
			Websocket:    "wss://stream.bybit.com/realtime",
			CreatedAtKey: "created_at",
			Balance:      pathBalance,
		},
	},
	domain.MarketTypeInverseFutures: {
		parsePosition: parseInverseFuturesPosition,
		integerQty:    true,
		endpoints: EndpointSet{
			Position:     "/futures/private/position/list",
			OpenOrders:   "/futures/private/order",
			CreateOrder:  "/futures/private/order/create",
			CancelOrder:  "/futures/private/order/cancel",
			Ticks:        "/v2/public/trading-records",
			Websocket:    "wss://stream.bybit.com/realtime",
			CreatedAtKey: "created_at",
			Balance:      pathBalance,
		},
	},
}

// ResolveMarketType 按交易对后缀判定合约品种
func ResolveMarketType(symbol string) domain.MarketType {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, "USDT"):
		return domain.MarketTypeLinearPerpetual
	case strings.HasSuffix(s, "USD"):
		return domain.MarketTypeInversePerpetual
	default:
		// 交割合约，如 BTCUSDZ21
		return domain.MarketTypeInverseFutures
	}
}

// Endpoints 返回合约品种对应的路径表
func Endpoints(mt domain.MarketType) (EndpointSet, error) {
	v, err := lookupVariant(mt)
	if err != nil {
		return EndpointSet{}, err
	}
	return v.endpoints, nil
}

func lookupVariant(mt domain.MarketType) (variant, error) {
	v, ok := variants[mt]
	if !ok {
		return variant{}, fmt.Errorf("未知合约品种: %s", mt)
	}
	return v, nil
}

// marginCoin 余额按哪个币种查询：USDT 本位用计价币，反向合约用基础币
func marginCoin(mt domain.MarketType, info domain.SymbolInfo) string {
	if mt == domain.MarketTypeLinearPerpetual {
		return info.QuoteCurrency
	}
	return info.BaseCurrency
}
