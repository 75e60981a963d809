package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/bybit-adapter/internal/domain"
	"github.com/betbot/bybit-adapter/internal/metrics"
	"github.com/betbot/bybit-adapter/internal/ports"
	"github.com/betbot/bybit-adapter/pkg/cache"
)

var adapterLog = logrus.WithField("component", "bybit")

var _ ports.ExchangeAdapter = (*Adapter)(nil)

const symbolCacheTTL = time.Hour

// maxPosSizeRatio 最大持仓只用到理论上限的 95%
var maxPosSizeRatio = decimal.RequireFromString("0.95")

// Pricer 未实现盈亏计算（由外部提供，适配器不关心公式）
type Pricer interface {
	LongPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal
	ShortPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal
}

// Config 适配器配置
type Config struct {
	Symbol             string
	HedgeMode          bool
	Leverage           decimal.Decimal
	ContractMultiplier decimal.Decimal // 反向合约每张面值，默认 1
	APIKey             string
	Secret             string
}

// adapterState Initialize 之后可变的部分，读取时整体拷贝
type adapterState struct {
	initialized bool
	marketType  domain.MarketType
	variant     variant
	info        domain.SymbolInfo
	hedgeMode   bool
	lastPrice   decimal.Decimal
	bestBid     decimal.Decimal
	bestAsk     decimal.Decimal
}

// Adapter Bybit 合约适配器：一个实例只服务一个交易对
type Adapter struct {
	rest               *restClient
	symbol             string
	leverage           decimal.Decimal
	contractMultiplier decimal.Decimal
	pricer             Pricer
	symbols            *cache.InMemoryCache[string, []domain.SymbolInfo]

	mu    sync.RWMutex
	state adapterState
}

// New 创建适配器；合约品种在这里按交易对后缀确定，之后不再改变
func New(transport Transport, cfg Config, pricer Pricer) (*Adapter, error) {
	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		return nil, errors.New("bybit: symbol is required")
	}
	if transport == nil {
		return nil, errors.New("bybit: transport is required")
	}
	mt := ResolveMarketType(symbol)
	v, err := lookupVariant(mt)
	if err != nil {
		return nil, err
	}
	multiplier := cfg.ContractMultiplier
	if !multiplier.IsPositive() {
		multiplier = decimal.NewFromInt(1)
	}
	leverage := cfg.Leverage
	if !leverage.IsPositive() {
		leverage = decimal.NewFromInt(1)
	}

	hedge := cfg.HedgeMode
	if hedge && v.oneWayOnly {
		adapterLog.Warnf("%s 为币本位永续，不支持双向持仓，已切换为单向模式", symbol)
		hedge = false
	}

	return &Adapter{
		rest:               newRestClient(transport, cfg.APIKey, cfg.Secret),
		symbol:             symbol,
		leverage:           leverage,
		contractMultiplier: multiplier,
		pricer:             pricer,
		symbols:            cache.NewInMemoryCache[string, []domain.SymbolInfo](symbolCacheTTL, 0),
		state: adapterState{
			marketType: mt,
			variant:    v,
			hedgeMode:  hedge,
		},
	}, nil
}

// Close 释放后台资源
func (a *Adapter) Close() {
	a.symbols.Close()
}

func (a *Adapter) Symbol() string { return a.symbol }

// MarketType 合约品种（New 之后即可用）
func (a *Adapter) MarketType() domain.MarketType {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.marketType
}

// HedgeMode 实际生效的持仓模式
func (a *Adapter) HedgeMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.hedgeMode
}

// SymbolInfo 交易对规格（Initialize 之后有效）
func (a *Adapter) SymbolInfo() (domain.SymbolInfo, error) {
	st, err := a.snapshotState()
	if err != nil {
		return domain.SymbolInfo{}, err
	}
	return st.info, nil
}

// WebsocketURL 当前品种的行情 WS 地址
func (a *Adapter) WebsocketURL() string {
	a.mu.RLock()
	st := a.state
	a.mu.RUnlock()
	url, err := st.endpoint(OpWebsocket)
	if err != nil {
		adapterLog.WithError(err).Error("当前品种没有 WS 地址")
	}
	return url
}

// endpoint 按逻辑操作名取当前品种的路径
func (st adapterState) endpoint(op Op) (string, error) {
	return st.variant.endpoints.Path(op)
}

func (a *Adapter) snapshotState() (adapterState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.state.initialized {
		return adapterState{}, ErrNotInitialized
	}
	return a.state, nil
}

type symbolRecord struct {
	Name           string `json:"name"`
	BaseCurrency   string `json:"base_currency"`
	QuoteCurrency  string `json:"quote_currency"`
	LeverageFilter struct {
		MaxLeverage float64 `json:"max_leverage"`
	} `json:"leverage_filter"`
	PriceFilter struct {
		TickSize decimal.Decimal `json:"tick_size"`
	} `json:"price_filter"`
	LotSizeFilter struct {
		QtyStep       float64 `json:"qty_step"`
		MinTradingQty float64 `json:"min_trading_qty"`
	} `json:"lot_size_filter"`
}

func (r symbolRecord) toInfo() domain.SymbolInfo {
	return domain.SymbolInfo{
		Name:          r.Name,
		BaseCurrency:  r.BaseCurrency,
		QuoteCurrency: r.QuoteCurrency,
		MaxLeverage:   r.LeverageFilter.MaxLeverage,
		PriceStep:     r.PriceFilter.TickSize.InexactFloat64(),
		QtyStep:       r.LotSizeFilter.QtyStep,
		MinQty:        r.LotSizeFilter.MinTradingQty,
	}
}

func (a *Adapter) loadSymbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	resp, err := a.rest.publicGet(ctx, pathSymbols, nil)
	if err != nil {
		return nil, fmt.Errorf("拉取交易对列表失败: %w", err)
	}
	var records []symbolRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("交易对列表格式错误: %w", err)
	}
	infos := make([]domain.SymbolInfo, 0, len(records))
	for _, r := range records {
		infos = append(infos, r.toInfo())
	}
	return infos, nil
}

// Initialize 加载交易对规格并初始化盘口
func (a *Adapter) Initialize(ctx context.Context) error {
	infos, err := a.symbols.GetOrLoad(ctx, pathSymbols, a.loadSymbols)
	if err != nil {
		return err
	}
	var (
		info  domain.SymbolInfo
		found bool
	)
	for _, i := range infos {
		if i.Name == a.symbol {
			info, found = i, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, a.symbol)
	}

	a.mu.Lock()
	a.state.info = info
	a.state.initialized = true
	a.mu.Unlock()

	adapterLog.Infof("交易对 %s 初始化: 品种=%s 基础币=%s 计价币=%s 最大杠杆=%v 价格步长=%v 数量步长=%v 最小数量=%v 双向持仓=%v",
		a.symbol, a.MarketType(), info.BaseCurrency, info.QuoteCurrency, info.MaxLeverage,
		info.PriceStep, info.QtyStep, info.MinQty, a.HedgeMode())

	return a.InitOrderBook(ctx)
}

type tickerRecord struct {
	Symbol    string          `json:"symbol"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// InitOrderBook 拉取最优买卖价与最新价
func (a *Adapter) InitOrderBook(ctx context.Context) error {
	resp, err := a.rest.publicGet(ctx, pathTickers, map[string]any{"symbol": a.symbol})
	if err != nil {
		return fmt.Errorf("拉取盘口失败: %w", err)
	}
	var tickers []tickerRecord
	if err := json.Unmarshal(resp.Result, &tickers); err != nil {
		return fmt.Errorf("盘口数据格式错误: %w", err)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("%w: %s 无盘口数据", ErrSymbolNotFound, a.symbol)
	}
	t := tickers[0]

	a.mu.Lock()
	a.state.bestBid = t.BidPrice
	a.state.bestAsk = t.AskPrice
	a.state.lastPrice = t.LastPrice
	a.mu.Unlock()
	return nil
}

// OrderBook 最优买价、最优卖价
func (a *Adapter) OrderBook() (bid, ask decimal.Decimal) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.bestBid, a.state.bestAsk
}

// LastPrice 最新成交价（用作盈亏计算的标记价）
func (a *Adapter) LastPrice() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.lastPrice
}

// UpdatePrice 用最新成交更新标记价，非正价格忽略
func (a *Adapter) UpdatePrice(price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	a.mu.Lock()
	a.state.lastPrice = price
	a.mu.Unlock()
}

// FetchTicks 拉取最近成交；fromID 非空时从该成交 ID 开始（负数按 0 处理）
// 传输失败返回 ErrFetchFailed，不会返回空批次冒充“无新成交”。
func (a *Adapter) FetchTicks(ctx context.Context, fromID *int64) (domain.TickBatch, error) {
	a.mu.RLock()
	st := a.state
	a.mu.RUnlock()
	path, err := st.endpoint(OpTicks)
	if err != nil {
		return domain.TickBatch{}, err
	}

	params := map[string]any{
		"symbol": a.symbol,
		"limit":  tickFetchLimit,
	}
	if fromID != nil {
		from := *fromID
		if from < 0 {
			from = 0
		}
		params["from"] = from
	}

	resp, err := a.rest.publicGet(ctx, path, params)
	if err != nil {
		metrics.TickFetchFailures.Add(1)
		return domain.TickBatch{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !resp.hasResult() {
		return domain.TickBatch{Ticks: []domain.Tick{}}, nil
	}
	batch, err := NormalizeRESTTicks(resp.Result)
	if err != nil {
		metrics.TickFetchFailures.Add(1)
		return domain.TickBatch{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	recordTickBatch(batch)
	if newest, ok := batch.Newest(); ok {
		a.UpdatePrice(newest.Price)
	}
	return batch, nil
}

func recordTickBatch(b domain.TickBatch) {
	metrics.TickBatches.Add(1)
	metrics.TicksNormalized.Add(int64(len(b.Ticks)))
	metrics.TicksMalformed.Add(int64(b.Malformed))
	if b.Outcome() == domain.TickOutcomeAllMalformed {
		adapterLog.Warnf("整批成交解析失败: received=%d", b.Received)
	}
}

// HandleWSMessage 解析一条 WS 推送并更新标记价
func (a *Adapter) HandleWSMessage(raw []byte, receivedAt time.Time) (domain.TickBatch, error) {
	batch, err := NormalizeWSTicks(raw, receivedAt)
	if err != nil {
		return batch, err
	}
	recordTickBatch(batch)
	if newest, ok := batch.Newest(); ok {
		a.UpdatePrice(newest.Price)
	}
	return batch, nil
}

// SubscribeMessage WS 订阅请求
type SubscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// SubscriptionMessage 成交订阅消息
func (a *Adapter) SubscriptionMessage() SubscribeMessage {
	return SubscribeMessage{Op: "subscribe", Args: []string{"trade." + a.symbol}}
}

// SubscribeWS 在已建立的连接上订阅成交推送
func (a *Adapter) SubscribeWS(conn ports.JSONWriter) error {
	if err := conn.WriteJSON(a.SubscriptionMessage()); err != nil {
		return fmt.Errorf("发送订阅消息失败: %w", err)
	}
	adapterLog.Infof("已订阅 trade.%s", a.symbol)
	return nil
}

// Transfer Bybit 不支持通过该接口划转资金
func (a *Adapter) Transfer(ctx context.Context, kind string, amount decimal.Decimal, asset string) error {
	return fmt.Errorf("%w: transfer %s %s %s", ErrUnsupportedOperation, kind, amount, asset)
}

// CalcMarginCost qty / price / leverage
func (a *Adapter) CalcMarginCost(qty, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return qty.Div(price).Div(a.leverage)
}

// CalcMaxPosSize balance * price * leverage * 0.95
func (a *Adapter) CalcMaxPosSize(balance, price decimal.Decimal) decimal.Decimal {
	return balance.Mul(price).Mul(a.leverage).Mul(maxPosSizeRatio)
}
