package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ParamAPIKey 注入的 API key 字段
	ParamAPIKey = "api_key"
	// ParamTimestamp 注入的毫秒时间戳字段
	ParamTimestamp = "timestamp"
	// ParamSign 签名字段
	ParamSign = "sign"
)

// SignedRequest 单次调用的签名结果，用完即弃
type SignedRequest struct {
	Params    url.Values // 已编码的参数（含 api_key / timestamp / sign）
	Timestamp int64
	Signature string
}

// Encode 返回最终查询串（按 key 排序，sign 与其他字段一起排序编码）
func (r *SignedRequest) Encode() string {
	return r.Params.Encode()
}

// EncodeValue 唯一的参数编码入口
// bool -> "true"/"false"；float -> 十进制字符串（整数值保留 ".0"）；其他按原样转字符串
func EncodeValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", fmt.Errorf("参数值为 nil")
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case decimal.Decimal:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("不支持的参数类型 %T", v)
	}
}

// formatFloat 与交易所参考客户端保持一致：100 -> "100.0"，0.5 -> "0.5"
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("非法浮点数 %v", f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s, nil
}

// EncodeParams 将参数统一编码为 url.Values
func EncodeParams(params map[string]any) (url.Values, error) {
	values := make(url.Values, len(params))
	for k, v := range params {
		s, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("编码参数 %s 失败: %w", k, err)
		}
		values.Set(k, s)
	}
	return values, nil
}

// BuildHmacSignature 对已排序编码的字符串计算 HMAC-SHA256（hex）
func BuildHmacSignature(secret string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams 构建签名请求
// 步骤：注入 api_key 与毫秒时间戳 -> 统一编码 -> 按 key 排序 URL 编码 -> HMAC-SHA256 -> 附加 sign
// 输入相同（params, apiKey, secret, now）则签名相同。调用方的 params 不会被修改。
func SignParams(params map[string]any, apiKey, secret string, now time.Time) (*SignedRequest, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret 为空")
	}
	values, err := EncodeParams(params)
	if err != nil {
		return nil, err
	}
	ts := now.UnixMilli()
	values.Set(ParamAPIKey, apiKey)
	values.Set(ParamTimestamp, strconv.FormatInt(ts, 10))
	values.Del(ParamSign)

	// url.Values.Encode 按 key 排序
	signature := BuildHmacSignature(secret, values.Encode())
	values.Set(ParamSign, signature)

	return &SignedRequest{
		Params:    values,
		Timestamp: ts,
		Signature: signature,
	}, nil
}
