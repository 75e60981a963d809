package bybit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/bybit-adapter/internal/domain"
)

const tickFetchLimit = 1000

// ErrNotTradeMessage WS 消息不是成交推送（订阅回执、心跳等），调用方忽略即可
var ErrNotTradeMessage = errors.New("bybit: not a trade message")

// tickFields 各传输通道抽取出的原始字段，统一交给 normalizeTick
type tickFields struct {
	tradeID *int64
	price   decimal.Decimal
	qty     decimal.Decimal
	tsMs    int64
	side    string
}

// normalizeTick Tick 不变量只在这里校验一次
func normalizeTick(f tickFields) (domain.Tick, error) {
	if !f.price.IsPositive() {
		return domain.Tick{}, fmt.Errorf("非法价格 %s", f.price)
	}
	if f.qty.IsNegative() {
		return domain.Tick{}, fmt.Errorf("非法数量 %s", f.qty)
	}
	if f.tsMs <= 0 {
		return domain.Tick{}, fmt.Errorf("缺少成交时间")
	}
	// 只有 "Sell" 表示主动卖出，其他取值（含空）一律按 false 处理
	return domain.Tick{
		TradeID:      f.tradeID,
		Price:        f.price,
		Qty:          f.qty,
		TimestampMs:  f.tsMs,
		IsBuyerMaker: f.side == "Sell",
	}, nil
}

// restTrade REST 成交记录
type restTrade struct {
	ID    flexInt         `json:"id"`
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
	Side  string          `json:"side"`
	Time  string          `json:"time"`
}

func extractRESTTick(raw json.RawMessage) (tickFields, error) {
	var r restTrade
	if err := json.Unmarshal(raw, &r); err != nil {
		return tickFields{}, err
	}
	if !r.ID.set {
		return tickFields{}, fmt.Errorf("缺少成交 ID")
	}
	ts, err := dateToMs(r.Time)
	if err != nil {
		return tickFields{}, err
	}
	id := r.ID.v
	return tickFields{tradeID: &id, price: r.Price, qty: r.Qty, tsMs: ts, side: r.Side}, nil
}

// wsTrade WS 成交记录（没有可用的数字成交 ID）
type wsTrade struct {
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Side        string          `json:"side"`
	TradeTimeMs flexInt         `json:"trade_time_ms"`
	Timestamp   string          `json:"timestamp"`
}

func wsTickExtractor(receivedAt time.Time) func(json.RawMessage) (tickFields, error) {
	return func(raw json.RawMessage) (tickFields, error) {
		var r wsTrade
		if err := json.Unmarshal(raw, &r); err != nil {
			return tickFields{}, err
		}
		ts := receivedAt.UnixMilli()
		switch {
		case r.TradeTimeMs.set:
			ts = r.TradeTimeMs.v
		case r.Timestamp != "":
			parsed, err := dateToMs(r.Timestamp)
			if err != nil {
				return tickFields{}, err
			}
			ts = parsed
		}
		return tickFields{price: r.Price, qty: r.Size, tsMs: ts, side: r.Side}, nil
	}
}

// normalizeBatch 逐条解析，单条失败只跳过该条
func normalizeBatch(records []json.RawMessage, extract func(json.RawMessage) (tickFields, error)) domain.TickBatch {
	batch := domain.TickBatch{
		Ticks:    make([]domain.Tick, 0, len(records)),
		Received: len(records),
	}
	for _, rec := range records {
		fields, err := extract(rec)
		if err == nil {
			var tick domain.Tick
			if tick, err = normalizeTick(fields); err == nil {
				batch.Ticks = append(batch.Ticks, tick)
				continue
			}
		}
		batch.Malformed++
		adapterLog.WithError(err).Debugf("跳过无法解析的成交: %s", string(rec))
	}
	return batch
}

// NormalizeRESTTicks 解析 REST 成交列表（result 数组）
func NormalizeRESTTicks(result json.RawMessage) (domain.TickBatch, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(result, &records); err != nil {
		return domain.TickBatch{}, fmt.Errorf("成交列表格式错误: %w", err)
	}
	return normalizeBatch(records, extractRESTTick), nil
}

type wsEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// NormalizeWSTicks 解析 WS 推送的成交消息
// 非成交消息返回 ErrNotTradeMessage；缺少成交时间的记录使用 receivedAt。
func NormalizeWSTicks(raw []byte, receivedAt time.Time) (domain.TickBatch, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.TickBatch{}, fmt.Errorf("WS 消息格式错误: %w", err)
	}
	if !strings.HasPrefix(env.Topic, "trade.") {
		return domain.TickBatch{}, ErrNotTradeMessage
	}
	var records []json.RawMessage
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return domain.TickBatch{}, fmt.Errorf("WS 成交数据格式错误: %w", err)
	}
	return normalizeBatch(records, wsTickExtractor(receivedAt)), nil
}

// dateToMs ISO8601 时间字符串 -> 毫秒时间戳
func dateToMs(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("时间为空")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("解析时间 %q 失败: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// flexInt 同时接受 JSON 数字和数字字符串
type flexInt struct {
	v   int64
	set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 兼容 "1.609459200e+12" 这类浮点写法
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fv != float64(int64(fv)) {
			return fmt.Errorf("非法整数 %s", string(b))
		}
		v = int64(fv)
	}
	f.v, f.set = v, true
	return nil
}
