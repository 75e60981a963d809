// Package websocket 行情 WebSocket 连接（gorilla/websocket 封装）
// 只负责连接、心跳与原始消息读取；消息解析与重连策略由调用方决定。
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var wsLog = logrus.WithField("component", "websocket")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultBufferSize       = 4096
)

// Config 连接配置
type Config struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration // <= 0 不发送心跳
	WriteTimeout     time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	ProxyURL         string
	// PingPayload 应用层心跳内容（Bybit: {"op":"ping"}）
	PingPayload []byte
}

func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: defaultHandshakeTimeout,
		PingInterval:     defaultPingInterval,
		WriteTimeout:     defaultWriteTimeout,
		ReadBufferSize:   defaultBufferSize,
		WriteBufferSize:  defaultBufferSize,
		PingPayload:      []byte(`{"op":"ping"}`),
	}
}

// Message 原始消息 + 本地接收时间
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// Conn 单条 WS 连接；写操作串行化，读操作只能由 Run 进行
type Conn struct {
	conn   *websocket.Conn
	config *Config

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial 建立连接
func Dial(ctx context.Context, rawURL string, config *Config) (*Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}
	dialer := websocket.Dialer{
		ReadBufferSize:   config.ReadBufferSize,
		WriteBufferSize:  config.WriteBufferSize,
		HandshakeTimeout: config.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("无效的代理 URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	headers := make(http.Header)
	headers.Set("User-Agent", "bybit-adapter/1.0")
	conn, _, err := dialer.DialContext(ctx, rawURL, headers)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败: %w", rawURL, err)
	}
	wsLog.Infof("已连接 %s", rawURL)
	return &Conn{conn: conn, config: config}, nil
}

// WriteJSON 发送 JSON 消息
func (c *Conn) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *Conn) writeText(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Run 阻塞读取消息直到出错或 ctx 取消
// ctx 取消或对端正常关闭时返回 nil，其余读错误原样返回，由调用方决定是否重连。
func (c *Conn) Run(ctx context.Context, handler func(Message)) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-runCtx.Done()
		_ = c.Close()
	}()
	if c.config.PingInterval > 0 && len(c.config.PingPayload) > 0 {
		go c.pingLoop(runCtx)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				wsLog.Infof("连接正常关闭")
				return nil
			}
			return fmt.Errorf("读取失败: %w", err)
		}
		handler(Message{Data: data, ReceivedAt: time.Now()})
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeText(c.config.PingPayload); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					wsLog.WithError(err).Debug("心跳发送失败")
				}
				return
			}
		}
	}
}

// Close 关闭连接，可重复调用
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
