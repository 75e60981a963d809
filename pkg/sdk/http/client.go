package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Client resty 封装。每次逻辑调用只发一次请求：不重试，超时由这里统一控制。
type Client struct {
	client *resty.Client
}

// Options 客户端选项
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

func NewClient(host string, opts *Options) *Client {
	host = strings.TrimSuffix(host, "/")
	timeout := defaultTimeout
	userAgent := "bybit-adapter/1.0"
	if opts != nil {
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.UserAgent != "" {
			userAgent = opts.UserAgent
		}
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &Client{client: client}
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http non-2xx: %s: %s", e.Status, string(e.Body))
}

// Do 发送请求，rawQuery 必须是已编码的查询串（签名后的参数原样发送）
// 返回响应体原文，非 2xx 时返回 *HTTPError。
func (c *Client) Do(ctx context.Context, method, endpoint, rawQuery string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := c.client.R().SetContext(ctx)
	if rawQuery != "" {
		r.SetQueryString(rawQuery)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		resp, err = r.Get(endpoint)
	case http.MethodPost:
		resp, err = r.Post(endpoint)
	default:
		return nil, errors.Errorf("unsupported method: %s", method)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	if !resp.IsSuccess() {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       resp.Body(),
		}
	}
	return resp.Body(), nil
}
