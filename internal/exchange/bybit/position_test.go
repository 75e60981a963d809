package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/bybit-adapter/internal/metrics"
)

func TestParseInversePerpetualPosition_BuyOnly(t *testing.T) {
	raw := json.RawMessage(`{"side":"Buy","size":100,"entry_price":"30000","leverage":"5","liq_price":"25000","position_idx":0}`)
	long, short, err := parseInversePerpetualPosition(raw)
	require.NoError(t, err)
	assert.True(t, long.Size.Equal(dec("100")))
	assert.Equal(t, emptyPosition, short)
}

func TestParseInversePerpetualPosition_SellGoesShort(t *testing.T) {
	raw := json.RawMessage(`{"side":"Sell","size":7,"entry_price":"30000","leverage":"5","liq_price":"40000"}`)
	long, short, err := parseInversePerpetualPosition(raw)
	require.NoError(t, err)
	assert.Equal(t, emptyPosition, long)
	assert.True(t, short.Size.Equal(dec("7")))
}

func TestParseLinearPosition(t *testing.T) {
	raw := json.RawMessage(`[
		{"side":"Buy","size":0.5,"entry_price":30000,"leverage":10,"liq_price":27000,"position_idx":1},
		{"side":"Sell","size":0.2,"entry_price":31000,"leverage":10,"liq_price":34000,"position_idx":2}
	]`)
	long, short, err := parseLinearPosition(raw)
	require.NoError(t, err)
	assert.True(t, long.Size.Equal(dec("0.5")))
	assert.True(t, short.EntryPrice.Equal(dec("31000")))

	long, short, err = parseLinearPosition(json.RawMessage(`[{"side":"Sell","size":1,"entry_price":1,"leverage":1,"liq_price":0}]`))
	require.NoError(t, err)
	assert.Equal(t, emptyPosition, long)
	assert.True(t, short.Size.Equal(dec("1")))
}

func TestParseInverseFuturesPosition(t *testing.T) {
	raw := json.RawMessage(`[
		{"data":{"side":"Buy","size":10,"entry_price":"40000","leverage":"3","liq_price":"30000","position_idx":1},"is_valid":true},
		{"data":{"side":"Sell","size":4,"entry_price":"41000","leverage":"3","liq_price":"50000","position_idx":2},"is_valid":true}
	]`)
	long, short, err := parseInverseFuturesPosition(raw)
	require.NoError(t, err)
	assert.True(t, long.Size.Equal(dec("10")))
	assert.True(t, short.Size.Equal(dec("4")))

	// 缺失的 idx 按零值占位
	long, short, err = parseInverseFuturesPosition(json.RawMessage(`[{"data":{"side":"Sell","size":4,"entry_price":"41000","leverage":"3","liq_price":"0","position_idx":2}}]`))
	require.NoError(t, err)
	assert.Equal(t, emptyPosition, long)
	assert.True(t, short.Size.Equal(dec("4")))
}

func TestBuildPosition_SignsAndEquity(t *testing.T) {
	long := rawPosition{Size: dec("-2"), EntryPrice: dec("100"), Leverage: dec("5")}
	short := rawPosition{Size: dec("3"), EntryPrice: dec("110"), Leverage: dec("5")}
	pos := buildPosition(long, short, dec("1000"), positionContext{
		markPrice:          dec("105"),
		contractMultiplier: dec("1"),
		pricer:             stubPricer{},
	})

	assert.True(t, pos.Long.Size.Equal(dec("2")), "long size must be >= 0")
	assert.True(t, pos.Short.Size.Equal(dec("-3")), "short size must be <= 0")
	// 线性：long = 2*(105-100)=10，short = 3*(110-105)=15
	assert.True(t, pos.Long.UnrealizedPnL.Equal(dec("10")))
	assert.True(t, pos.Short.UnrealizedPnL.Equal(dec("15")))
	assert.True(t, pos.Equity.Equal(pos.WalletBalance.Add(pos.Long.UnrealizedPnL).Add(pos.Short.UnrealizedPnL)))
	assert.True(t, pos.Equity.Equal(dec("1025")))
}

func TestBuildPosition_ZeroEntryHasZeroPnL(t *testing.T) {
	pos := buildPosition(emptyPosition, emptyPosition, dec("50"), positionContext{
		markPrice:          dec("105"),
		contractMultiplier: dec("1"),
		pricer:             stubPricer{},
	})
	assert.True(t, pos.Long.UnrealizedPnL.IsZero())
	assert.True(t, pos.Short.UnrealizedPnL.IsZero())
	assert.True(t, pos.Long.Size.IsZero())
	assert.True(t, pos.Short.Size.IsZero())
	assert.True(t, pos.Equity.Equal(dec("50")))
}

func TestFetchPosition_InversePerpetual(t *testing.T) {
	a, ft := newTestAdapter(t, "BTCUSD", false)
	ft.on("/v2/private/position/list", `{"ret_code":0,"ret_msg":"OK","result":{"side":"Buy","size":100,"entry_price":"35000","leverage":"10","liq_price":"32000"}}`)
	ft.on(pathBalance, `{"ret_code":0,"ret_msg":"OK","result":{"BTC":{"wallet_balance":0.5,"equity":0.5}}}`)

	pos, err := a.FetchPosition(context.Background())
	require.NoError(t, err)
	assert.True(t, pos.Long.Size.IsPositive())
	assert.True(t, pos.Short.Size.IsZero())
	assert.True(t, pos.Short.EntryPrice.IsZero())
	assert.True(t, pos.WalletBalance.Equal(dec("0.5")))
	// 标记价 = 最新价 35000 = 开仓价，盈亏为 0
	assert.True(t, pos.Long.UnrealizedPnL.IsZero())
	assert.True(t, pos.Equity.Equal(dec("0.5")))

	call := ft.lastCall(t, pathBalance)
	assert.Equal(t, "BTC", call.query.Get("coin"))
	assert.NotEmpty(t, call.query.Get("sign"))
}

func TestFetchPosition_LinearUsesQuoteCoin(t *testing.T) {
	a, ft := newTestAdapter(t, "BTCUSDT", true)
	ft.on("/private/linear/position/list", `{"ret_code":0,"ret_msg":"OK","result":[
		{"side":"Buy","size":0.1,"entry_price":34000,"leverage":10,"liq_price":31000},
		{"side":"Sell","size":0.2,"entry_price":36000,"leverage":10,"liq_price":39000}
	]}`)
	ft.on(pathBalance, `{"ret_code":0,"ret_msg":"OK","result":{"USDT":{"wallet_balance":1000}}}`)

	pos, err := a.FetchPosition(context.Background())
	require.NoError(t, err)
	assert.True(t, pos.Long.Size.Equal(dec("0.1")))
	assert.True(t, pos.Short.Size.Equal(dec("-0.2")))
	// long = 0.1*(35000-34000)=100，short = 0.2*(36000-35000)=200
	assert.True(t, pos.Equity.Equal(dec("1300")), pos.Equity.String())
	assert.Equal(t, "USDT", ft.lastCall(t, pathBalance).query.Get("coin"))
}

func TestFetchPosition_InverseFutures(t *testing.T) {
	a, ft := newTestAdapter(t, "BTCUSDZ21", true)
	ft.on("/futures/private/position/list", `{"ret_code":0,"ret_msg":"OK","result":[
		{"data":{"side":"Buy","size":300,"entry_price":"35000","leverage":"10","liq_price":"32000","position_idx":1},"is_valid":true},
		{"data":{"side":"Sell","size":120,"entry_price":"35000","leverage":"10","liq_price":"38000","position_idx":2},"is_valid":true}
	]}`)
	ft.on(pathBalance, `{"ret_code":0,"ret_msg":"OK","result":{"BTC":{"wallet_balance":0.25,"equity":0.25},"USDT":{"wallet_balance":999}}}`)

	pos, err := a.FetchPosition(context.Background())
	require.NoError(t, err)
	assert.True(t, pos.Long.Size.Equal(dec("300")))
	assert.True(t, pos.Short.Size.Equal(dec("-120")))
	assert.True(t, pos.Long.LiquidationPrice.Equal(dec("32000")))
	assert.True(t, pos.Short.LiquidationPrice.Equal(dec("38000")))
	assert.True(t, pos.WalletBalance.Equal(dec("0.25")))
	// 开仓价与标记价相同，权益等于钱包余额
	assert.True(t, pos.Equity.Equal(dec("0.25")), pos.Equity.String())

	assert.Equal(t, "BTC", ft.lastCall(t, pathBalance).query.Get("coin"))
	assert.Equal(t, "BTCUSDZ21", ft.lastCall(t, "/futures/private/position/list").query.Get("symbol"))
}

func TestFetchPosition_MissingMarginCoin(t *testing.T) {
	a, ft := newTestAdapter(t, "BTCUSDT", true)
	ft.on("/private/linear/position/list", `{"ret_code":0,"ret_msg":"OK","result":[
		{"side":"Buy","size":0.1,"entry_price":34000,"leverage":10,"liq_price":31000}
	]}`)
	ft.on(pathBalance, `{"ret_code":0,"ret_msg":"OK","result":{"BTC":{"wallet_balance":1}}}`)

	pos, err := a.FetchPosition(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USDT")
	assert.Nil(t, pos)
}

func TestFetchPosition_SignatureErrorIsCounted(t *testing.T) {
	a, ft := newTestAdapter(t, "BTCUSD", false)
	ft.on("/v2/private/position/list", `{"ret_code":10004,"ret_msg":"error sign!","result":null}`)
	ft.on(pathBalance, `{"ret_code":0,"ret_msg":"OK","result":{"BTC":{"wallet_balance":0.5}}}`)

	before := metrics.SignatureErrors.Value()
	_, err := a.FetchPosition(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsSignatureError())
	assert.Equal(t, before+1, metrics.SignatureErrors.Value())
}

func TestFetchPosition_NotInitialized(t *testing.T) {
	a, err := New(newFakeTransport(), Config{Symbol: "BTCUSD"}, nil)
	require.NoError(t, err)
	defer a.Close()
	_, err = a.FetchPosition(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

type stubPricer struct{}

func (stubPricer) LongPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	return size.Abs().Mul(mark.Sub(entry))
}

func (stubPricer) ShortPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	return size.Abs().Mul(entry.Sub(mark))
}

