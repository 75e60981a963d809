package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betbot/bybit-adapter/internal/domain"
	"github.com/betbot/bybit-adapter/internal/metrics"
)

const (
	timeInForcePostOnly       = "PostOnly"
	timeInForceGoodTillCancel = "GoodTillCancel"
)

// firstCapitalized "buy" -> "Buy", "LIMIT" -> "Limit"
func firstCapitalized(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// newOrderLinkID 自定义订单 ID：<tag>_<毫秒时间戳后缀>_<随机串>
func (a *Adapter) newOrderLinkID(tag string) string {
	ms := strconv.FormatInt(a.rest.now().UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[8:]
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%s_%s", tag, ms, random)
}

// buildOrderParams 下单意图 -> 交易所下单参数
func (a *Adapter) buildOrderParams(intent domain.OrderIntent, st adapterState) map[string]any {
	params := map[string]any{
		"symbol":           a.symbol,
		"side":             firstCapitalized(string(intent.Side)),
		"order_type":       firstCapitalized(string(intent.Type)),
		"close_on_trigger": false,
	}
	if st.variant.integerQty {
		params["qty"] = intent.Qty.IntPart()
	} else {
		params["qty"] = intent.Qty.InexactFloat64()
	}

	if st.hedgeMode {
		if intent.PositionSide == domain.PositionSideLong {
			params["position_idx"] = 1
		} else {
			params["position_idx"] = 2
		}
		if st.variant.reduceOnlyInHedge {
			params["reduce_only"] = intent.IsClose()
		}
	} else {
		params["position_idx"] = 0
		params["reduce_only"] = intent.IsClose()
	}

	if params["order_type"] == "Limit" {
		params["time_in_force"] = timeInForcePostOnly
		params["price"] = intent.Price.InexactFloat64()
	} else {
		params["time_in_force"] = timeInForceGoodTillCancel
	}
	params["order_link_id"] = a.newOrderLinkID(intent.CustomIDTag)
	return params
}

type createOrderResult struct {
	OrderID     string          `json:"order_id"`
	OrderLinkID string          `json:"order_link_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	OrderType   string          `json:"order_type"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
}

// ExecuteOrder 下单
// 交易所拒单时返回 *OrderRejectedError（原始响应 + 意图），是否重试由调用方决定。
// 请求一旦发出不可中途取消：调用方 ctx 取消不会中断在途请求，真实结果需要后续查询确认。
func (a *Adapter) ExecuteOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderConfirmation, error) {
	st, err := a.snapshotState()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := st.endpoint(OpCreateOrder)
	if err != nil {
		return nil, err
	}
	params := a.buildOrderParams(intent, st)

	metrics.OrdersSubmitted.Add(1)
	resp, err := a.rest.privatePost(context.WithoutCancel(ctx), path, params)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			metrics.OrdersRejected.Add(1)
			adapterLog.Warnf("下单被拒: %s intent=%+v", apiErr.Error(), intent)
			return nil, &OrderRejectedError{Response: apiErr.Payload, Intent: intent, Cause: apiErr}
		}
		return nil, fmt.Errorf("下单请求失败: %w", err)
	}
	if !resp.hasResult() {
		metrics.OrdersRejected.Add(1)
		return nil, &OrderRejectedError{Response: resp.raw, Intent: intent}
	}

	var res createOrderResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		// 订单可能已被接受，只是回执无法解析：返回错误，由调用方对账
		return nil, fmt.Errorf("解析下单回执失败: %w", err)
	}
	conf := &domain.OrderConfirmation{
		Symbol:       res.Symbol,
		Side:         domain.ParseSide(res.Side),
		PositionSide: intent.PositionSide,
		Type:         domain.OrderType(strings.ToLower(res.OrderType)),
		Qty:          res.Qty,
		Price:        res.Price,
	}
	adapterLog.Infof("下单成功: %s %s %s qty=%s price=%s link_id=%v",
		conf.Symbol, conf.Side, conf.PositionSide, conf.Qty, conf.Price, params["order_link_id"])
	return conf, nil
}

// ExecuteCancellation 撤单；交易所报告订单不存在（已成交/已撤销）视为成功
func (a *Adapter) ExecuteCancellation(ctx context.Context, order domain.Order) (*domain.CancellationRecord, error) {
	st, err := a.snapshotState()
	if err != nil {
		return nil, err
	}
	record := &domain.CancellationRecord{
		Symbol:       a.symbol,
		Side:         order.Side,
		PositionSide: order.PositionSide,
		Qty:          order.Qty,
		Price:        order.Price,
	}

	path, err := st.endpoint(OpCancelOrder)
	if err != nil {
		return nil, err
	}
	_, err = a.rest.privatePost(ctx, path, map[string]any{
		"symbol":   a.symbol,
		"order_id": order.OrderID,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isOrderGone(apiErr.Code) {
			metrics.CancelsAlreadyResolved.Add(1)
			adapterLog.Infof("订单 %s 已成交或已撤销，视为撤单成功: %s", order.OrderID, apiErr.Message)
			return record, nil
		}
		return nil, fmt.Errorf("撤单失败 order_id=%s: %w", order.OrderID, err)
	}
	metrics.Cancels.Add(1)
	return record, nil
}

type openOrderRecord struct {
	OrderID     string          `json:"order_id"`
	OrderLinkID string          `json:"order_link_id"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	Side        string          `json:"side"`
}

// FetchOpenOrders 查询当前挂单
func (a *Adapter) FetchOpenOrders(ctx context.Context) ([]domain.Order, error) {
	st, err := a.snapshotState()
	if err != nil {
		return nil, err
	}
	path, err := st.endpoint(OpOpenOrders)
	if err != nil {
		return nil, err
	}
	createdAtKey, err := st.endpoint(OpCreatedAtKey)
	if err != nil {
		return nil, err
	}
	resp, err := a.rest.privateGet(ctx, path, map[string]any{"symbol": a.symbol})
	if err != nil {
		return nil, fmt.Errorf("查询挂单失败: %w", err)
	}
	if !resp.hasResult() {
		return []domain.Order{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("挂单列表格式错误: %w", err)
	}
	// 任何一条挂单无法识别都让整次查询失败：漏掉真实挂单会让对账结果少单
	orders := make([]domain.Order, 0, len(records))
	for _, raw := range records {
		o, err := parseOpenOrder(raw, createdAtKey)
		if err != nil {
			return nil, fmt.Errorf("挂单记录无法解析 %s: %w", string(raw), err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func parseOpenOrder(raw json.RawMessage, createdAtKey string) (domain.Order, error) {
	var rec openOrderRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Order{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(rec.OrderID) == "" {
		return domain.Order{}, errors.New("缺少 order_id")
	}

	// 创建时间只是元数据，缺失或格式错误时置 0，订单照常保留
	ts, err := createdAtMs(fields[createdAtKey])
	if err != nil {
		adapterLog.WithError(err).Warnf("挂单 %s 的 %s 无法解析，时间戳按 0 处理", rec.OrderID, createdAtKey)
	}
	return domain.Order{
		OrderID:      rec.OrderID,
		CustomID:     rec.OrderLinkID,
		Symbol:       rec.Symbol,
		Price:        rec.Price,
		Qty:          rec.Qty,
		Side:         domain.ParseSide(rec.Side),
		PositionSide: DeterminePositionSide(rec.Side, rec.OrderLinkID),
		TimestampMs:  ts,
	}, nil
}

func createdAtMs(v json.RawMessage) (int64, error) {
	var s string
	if len(v) > 0 {
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
	}
	return dateToMs(s)
}
