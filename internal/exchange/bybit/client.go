package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/betbot/bybit-adapter/internal/metrics"
	"github.com/betbot/bybit-adapter/internal/signing"
)

// Transport 传输层（超时/重试策略归传输层所有）
// pkg/sdk/http.Client 满足该接口。
type Transport interface {
	Do(ctx context.Context, method, endpoint, rawQuery string) ([]byte, error)
}

// apiResponse Bybit v2 统一响应包
type apiResponse struct {
	RetCode int             `json:"ret_code"`
	RetMsg  string          `json:"ret_msg"`
	ExtCode string          `json:"ext_code"`
	Result  json.RawMessage `json:"result"`
	TimeNow string          `json:"time_now"`

	raw json.RawMessage
}

// hasResult result 字段非空
func (r *apiResponse) hasResult() bool {
	if len(r.Result) == 0 {
		return false
	}
	switch string(r.Result) {
	case "null", "{}", "[]", `""`:
		return false
	}
	return true
}

type restClient struct {
	transport Transport
	apiKey    string
	secret    string
	now       func() time.Time
}

func newRestClient(t Transport, apiKey, secret string) *restClient {
	return &restClient{
		transport: t,
		apiKey:    apiKey,
		secret:    secret,
		now:       time.Now,
	}
}

// publicGet 公共接口，不签名；参数仍走统一编码
func (c *restClient) publicGet(ctx context.Context, path string, params map[string]any) (*apiResponse, error) {
	values, err := signing.EncodeParams(params)
	if err != nil {
		return nil, err
	}
	body, err := c.transport.Do(ctx, http.MethodGet, path, values.Encode())
	if err != nil {
		return nil, err
	}
	return checkResponse(body)
}

func (c *restClient) privateGet(ctx context.Context, path string, params map[string]any) (*apiResponse, error) {
	return c.private(ctx, http.MethodGet, path, params)
}

func (c *restClient) privatePost(ctx context.Context, path string, params map[string]any) (*apiResponse, error) {
	return c.private(ctx, http.MethodPost, path, params)
}

// private 每次调用重新签名（SignedRequest 不复用）
// ret_code != 0 时同时返回响应和 *APIError。
func (c *restClient) private(ctx context.Context, method, path string, params map[string]any) (*apiResponse, error) {
	req, err := signing.SignParams(params, c.apiKey, c.secret, c.now())
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	body, err := c.transport.Do(ctx, method, path, req.Encode())
	if err != nil {
		return nil, err
	}
	resp, err := checkResponse(body)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsSignatureError() {
		// 密钥或时钟配置错误，重试无意义
		metrics.SignatureErrors.Add(1)
		adapterLog.WithField("path", path).Errorf("签名校验失败 ret_code=%d ret_msg=%s", apiErr.Code, apiErr.Message)
	}
	return resp, err
}

func checkResponse(body []byte) (*apiResponse, error) {
	resp, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	if resp.RetCode != codeOK {
		return resp, &APIError{Code: resp.RetCode, Message: resp.RetMsg, Payload: resp.raw}
	}
	return resp, nil
}

func decodeResponse(body []byte) (*apiResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	resp.raw = append(json.RawMessage(nil), body...)
	return &resp, nil
}
