package bybit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/betbot/bybit-adapter/pkg/marketmath"
)

type recordedCall struct {
	method   string
	endpoint string
	query    url.Values
}

// fakeTransport 按路径返回预置响应，并记录每次请求
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []recordedCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeTransport) on(endpoint, body string) *fakeTransport {
	f.responses[endpoint] = body
	return f
}

func (f *fakeTransport) fail(endpoint string, err error) *fakeTransport {
	f.errs[endpoint] = err
	return f
}

func (f *fakeTransport) Do(ctx context.Context, method, endpoint, rawQuery string) ([]byte, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, endpoint: endpoint, query: q})
	f.mu.Unlock()
	if err := f.errs[endpoint]; err != nil {
		return nil, err
	}
	body, ok := f.responses[endpoint]
	if !ok {
		return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
	}
	return []byte(body), nil
}

func (f *fakeTransport) lastCall(t *testing.T, endpoint string) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].endpoint == endpoint {
			return f.calls[i]
		}
	}
	t.Fatalf("no call to %s", endpoint)
	return recordedCall{}
}

const symbolsBody = `{"ret_code":0,"ret_msg":"OK","result":[
 {"name":"BTCUSD","base_currency":"BTC","quote_currency":"USD","leverage_filter":{"max_leverage":100},"price_filter":{"tick_size":"0.5"},"lot_size_filter":{"qty_step":1,"min_trading_qty":1}},
 {"name":"BTCUSDT","base_currency":"BTC","quote_currency":"USDT","leverage_filter":{"max_leverage":100},"price_filter":{"tick_size":"0.5"},"lot_size_filter":{"qty_step":0.001,"min_trading_qty":0.001}},
 {"name":"BTCUSDZ21","base_currency":"BTC","quote_currency":"USD","leverage_filter":{"max_leverage":100},"price_filter":{"tick_size":"0.5"},"lot_size_filter":{"qty_step":1,"min_trading_qty":1}}
]}`

const tickersBody = `{"ret_code":0,"ret_msg":"OK","result":[{"symbol":"X","bid_price":"34999.5","ask_price":"35000","last_price":"35000.00"}]}`

var fixedNow = time.Date(2021, 1, 1, 0, 0, 0, 123e6, time.UTC)

// newTestAdapter 创建并初始化适配器（公共接口已预置）
func newTestAdapter(t *testing.T, symbol string, hedge bool) (*Adapter, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport().on(pathSymbols, symbolsBody).on(pathTickers, tickersBody)
	a, err := New(ft, Config{
		Symbol:    symbol,
		HedgeMode: hedge,
		Leverage:  decimal.NewFromInt(10),
		APIKey:    "key",
		Secret:    "secret",
	}, marketmath.Pricer{})
	require.NoError(t, err)
	a.rest.now = func() time.Time { return fixedNow }
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(a.Close)
	return a, ft
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
