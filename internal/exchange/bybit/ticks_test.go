package bybit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/bybit-adapter/internal/domain"
)

func TestNormalizeRESTTicks_WorkedExample(t *testing.T) {
	raw := json.RawMessage(`[{"id":42,"price":"100.5","qty":"2","time":"2021-01-01T00:00:00Z","side":"Sell"}]`)
	batch, err := NormalizeRESTTicks(raw)
	require.NoError(t, err)
	require.Len(t, batch.Ticks, 1)

	tick := batch.Ticks[0]
	require.NotNil(t, tick.TradeID)
	assert.Equal(t, int64(42), *tick.TradeID)
	assert.True(t, tick.Price.Equal(dec("100.5")))
	assert.True(t, tick.Qty.Equal(dec("2")))
	assert.Equal(t, int64(1609459200000), tick.TimestampMs)
	assert.True(t, tick.IsBuyerMaker)
	assert.Equal(t, domain.TickOutcomeOK, batch.Outcome())
}

func TestNormalizeRESTTicks_OneMalformedAmongN(t *testing.T) {
	raw := json.RawMessage(`[
		{"id":1,"price":100,"qty":1,"time":"2021-01-01T00:00:00.001Z","side":"Buy"},
		{"id":2,"price":"abc","qty":1,"time":"2021-01-01T00:00:00.002Z","side":"Buy"},
		{"id":"3","price":101,"qty":2,"time":"2021-01-01T00:00:00.003Z","side":"Sell"}
	]`)
	batch, err := NormalizeRESTTicks(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Received)
	assert.Equal(t, 1, batch.Malformed)
	require.Len(t, batch.Ticks, 2)
	assert.Equal(t, int64(1), *batch.Ticks[0].TradeID)
	assert.False(t, batch.Ticks[0].IsBuyerMaker)
	assert.Equal(t, int64(3), *batch.Ticks[1].TradeID)

	last, ok := batch.MaxTradeID()
	require.True(t, ok)
	assert.Equal(t, int64(3), last)
}

func TestNormalizeRESTTicks_Outcomes(t *testing.T) {
	empty, err := NormalizeRESTTicks(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Equal(t, domain.TickOutcomeEmpty, empty.Outcome())

	bad, err := NormalizeRESTTicks(json.RawMessage(`[
		{"id":1,"price":0,"qty":1,"time":"2021-01-01T00:00:00Z","side":"Buy"},
		{"id":2,"price":1,"qty":-1,"time":"2021-01-01T00:00:00Z","side":"Buy"},
		{"id":3,"price":1,"qty":1,"time":"","side":"Buy"},
		{"id":4,"price":1,"qty":"x","time":"2021-01-01T00:00:00Z","side":"Buy"},
		{"price":1,"qty":1,"time":"2021-01-01T00:00:00Z","side":"Buy"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, domain.TickOutcomeAllMalformed, bad.Outcome())
	assert.Equal(t, 5, bad.Malformed)

	_, err = NormalizeRESTTicks(json.RawMessage(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestNormalizeWSTicks(t *testing.T) {
	receivedAt := time.UnixMilli(1609459300000)
	msg := []byte(`{"topic":"trade.BTCUSD","data":[
		{"timestamp":"2021-01-01T00:00:00.000Z","trade_time_ms":1609459200123,"symbol":"BTCUSD","side":"Buy","size":10,"price":35000.5,"trade_id":"a-b-c"},
		{"symbol":"BTCUSD","side":"Sell","size":"3","price":"35001"},
		{"symbol":"BTCUSD","side":"Sell","size":"3","price":"-1"}
	]}`)
	batch, err := NormalizeWSTicks(msg, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Received)
	assert.Equal(t, 1, batch.Malformed)
	require.Len(t, batch.Ticks, 2)

	first := batch.Ticks[0]
	assert.Nil(t, first.TradeID)
	assert.Equal(t, int64(1609459200123), first.TimestampMs)
	assert.False(t, first.IsBuyerMaker)
	assert.True(t, first.Qty.Equal(dec("10")))

	// 缺少成交时间时使用接收时间
	second := batch.Ticks[1]
	assert.Equal(t, receivedAt.UnixMilli(), second.TimestampMs)
	assert.True(t, second.IsBuyerMaker)

	_, ok := batch.MaxTradeID()
	assert.False(t, ok)
}

func TestNormalizeRESTTicks_NonSellSideIsNotBuyerMaker(t *testing.T) {
	batch, err := NormalizeRESTTicks(json.RawMessage(`[
		{"id":1,"price":1,"qty":1,"time":"2021-01-01T00:00:00Z","side":""},
		{"id":2,"price":1,"qty":1,"time":"2021-01-01T00:00:00Z","side":"Hold"},
		{"id":3,"price":1,"qty":1,"time":"2021-01-01T00:00:00Z"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Malformed)
	require.Len(t, batch.Ticks, 3)
	for _, tick := range batch.Ticks {
		assert.False(t, tick.IsBuyerMaker)
	}
}

func TestNormalizeWSTicks_NonTradeMessage(t *testing.T) {
	_, err := NormalizeWSTicks([]byte(`{"success":true,"ret_msg":"","request":{"op":"subscribe","args":["trade.BTCUSD"]}}`), time.Now())
	assert.ErrorIs(t, err, ErrNotTradeMessage)

	_, err = NormalizeWSTicks([]byte(`not json`), time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotTradeMessage)
}

func TestFlexInt(t *testing.T) {
	var v struct {
		A flexInt `json:"a"`
		B flexInt `json:"b"`
		C flexInt `json:"c"`
		D flexInt `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"34","c":null}`), &v))
	assert.Equal(t, flexInt{v: 12, set: true}, v.A)
	assert.Equal(t, flexInt{v: 34, set: true}, v.B)
	assert.False(t, v.C.set)
	assert.False(t, v.D.set)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"x1"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1.5}`), &v))
}
