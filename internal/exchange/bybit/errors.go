package bybit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/betbot/bybit-adapter/internal/domain"
)

var (
	// ErrUnsupportedOperation 当前交易所/品种不提供该操作
	ErrUnsupportedOperation = errors.New("bybit: unsupported operation")
	// ErrFetchFailed 拉取失败（传输层），与“空批次”区分
	ErrFetchFailed = errors.New("bybit: fetch failed")
	// ErrSymbolNotFound 交易对不存在
	ErrSymbolNotFound = errors.New("bybit: symbol not found")
	// ErrNotInitialized 未调用 Initialize
	ErrNotInitialized = errors.New("bybit: adapter not initialized")
)

// APIError 交易所返回的业务错误（ret_code != 0），Payload 为原始响应，不做二次解释
// 签名错误（10004）属于逻辑缺陷，不能自动重试。
type APIError struct {
	Code    int
	Message string
	Payload json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: ret_code=%d ret_msg=%s", e.Code, e.Message)
}

// IsSignatureError 是否为签名/鉴权错误
func (e *APIError) IsSignatureError() bool {
	switch e.Code {
	case codeSignatureInvalid, codeAPIKeyInvalid, codeTimestampInvalid:
		return true
	}
	return false
}

// OrderRejectedError 下单被拒：原样返回交易所响应与原始意图，由调用方决定重试/调整/放弃
type OrderRejectedError struct {
	Response json.RawMessage
	Intent   domain.OrderIntent
	Cause    *APIError
}

func (e *OrderRejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bybit: order rejected: %s", e.Cause.Error())
	}
	return fmt.Sprintf("bybit: order rejected: %s", string(e.Response))
}

func (e *OrderRejectedError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

const (
	codeOK               = 0
	codeTimestampInvalid = 10002
	codeAPIKeyInvalid    = 10003
	codeSignatureInvalid = 10004
)

// 撤单时表示“订单已成交/已撤销/不存在”的返回码，视为撤单成功
var orderGoneCodes = map[int]struct{}{
	20001:  {}, // order not exists or too late to cancel（币本位）
	30032:  {}, // order has been finished or canceled
	30037:  {}, // order already cancelled
	130010: {}, // order not exists or too late to cancel（USDT 本位）
}

func isOrderGone(code int) bool {
	_, ok := orderGoneCodes[code]
	return ok
}
