package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/bybit-adapter/internal/domain"
	"github.com/betbot/bybit-adapter/internal/metrics"
	"github.com/betbot/bybit-adapter/internal/ports"
	"github.com/betbot/bybit-adapter/pkg/persistence"
	"github.com/betbot/bybit-adapter/pkg/sdk/websocket"
	"github.com/betbot/bybit-adapter/pkg/sigchan"
	"github.com/betbot/bybit-adapter/pkg/syncgroup"
)

var log = logrus.WithField("component", "runner")

// Config 轮询与 WS 参数
type Config struct {
	ReconcileInterval time.Duration
	TickPollInterval  time.Duration // <= 0 不轮询成交
	EnableWebsocket   bool
	WSReconnectDelay  time.Duration
	WSConfig          *websocket.Config

	// CursorStore 非空时持久化成交游标，重启后从上次位置继续
	CursorStore persistence.Store
}

type cursorState struct {
	Next int64 `json:"next"`
}

// wsConn Run 期间使用的 WS 连接
type wsConn interface {
	ports.JSONWriter
	Run(ctx context.Context, handler func(websocket.Message)) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (wsConn, error)

// Runner 驱动适配器：定时对账、轮询成交、WS 成交流
// 下单后（无论成功与否）都会触发一次立即对账，以交易所状态为准。
type Runner struct {
	adapter   ports.ExchangeAdapter
	cfg       Config
	reconcile ports.ReconcileHandler
	ticks     ports.TickHandler

	reconcileNow *sigchan.Chan
	dial         dialFunc

	cursorMu sync.Mutex
	cursor   *int64
}

func New(adapter ports.ExchangeAdapter, cfg Config, reconcile ports.ReconcileHandler, ticks ports.TickHandler) *Runner {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 10 * time.Second
	}
	if cfg.WSReconnectDelay <= 0 {
		cfg.WSReconnectDelay = 5 * time.Second
	}
	r := &Runner{
		adapter:      adapter,
		cfg:          cfg,
		reconcile:    reconcile,
		ticks:        ticks,
		reconcileNow: sigchan.New(1),
	}
	r.dial = func(ctx context.Context, url string) (wsConn, error) {
		return websocket.Dial(ctx, url, cfg.WSConfig)
	}
	r.restoreCursor()
	return r
}

// Run 阻塞运行直到 ctx 取消；适配器需已 Initialize
func (r *Runner) Run(ctx context.Context) {
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { r.reconcileLoop(ctx) })
	if r.cfg.TickPollInterval > 0 {
		sg.Add(func() { r.tickPollLoop(ctx) })
	}
	if r.cfg.EnableWebsocket {
		sg.Add(func() { r.wsLoop(ctx) })
	}
	sg.Run()
	sg.Wait()
	log.Infof("runner 已停止")
}

// RequestReconcile 请求尽快对账一次（多次请求会合并）
func (r *Runner) RequestReconcile() {
	r.reconcileNow.Emit()
}

// PlaceOrder 下单并触发对账；传输失败时订单状态未知，对账结果为准
func (r *Runner) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*domain.OrderConfirmation, error) {
	defer r.RequestReconcile()
	return r.adapter.ExecuteOrder(ctx, intent)
}

// CancelOrder 撤单并触发对账
func (r *Runner) CancelOrder(ctx context.Context, order domain.Order) (*domain.CancellationRecord, error) {
	defer r.RequestReconcile()
	return r.adapter.ExecuteCancellation(ctx, order)
}

func (r *Runner) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	r.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.reconcileNow.C():
		}
		r.reconcileOnce(ctx)
	}
}

// reconcileOnce 并发拉取持仓与挂单，两者都成功才交给 handler
func (r *Runner) reconcileOnce(ctx context.Context) {
	metrics.ReconcileRuns.Add(1)

	var (
		pos       *domain.Position
		orders    []domain.Order
		posErr    error
		ordersErr error
	)
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { pos, posErr = r.adapter.FetchPosition(ctx) })
	sg.Add(func() { orders, ordersErr = r.adapter.FetchOpenOrders(ctx) })
	sg.Run()
	sg.Wait()

	if posErr != nil || ordersErr != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ReconcileErrors.Add(1)
		log.Warnf("对账失败: position=%v orders=%v", posErr, ordersErr)
		return
	}
	if r.reconcile != nil {
		r.reconcile.OnReconcile(ctx, pos, orders)
	}
}

func (r *Runner) tickPollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TickPollInterval)
	defer ticker.Stop()
	for {
		r.pollTicksOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cursor 下一次轮询使用的 from 游标
func (r *Runner) Cursor() (int64, bool) {
	r.cursorMu.Lock()
	defer r.cursorMu.Unlock()
	if r.cursor == nil {
		return 0, false
	}
	return *r.cursor, true
}

func (r *Runner) restoreCursor() {
	if r.cfg.CursorStore == nil {
		return
	}
	var st cursorState
	if err := r.cfg.CursorStore.Load(&st); err != nil {
		if !errors.Is(err, persistence.ErrNotExists) {
			log.WithError(err).Warn("读取成交游标失败，从最新成交开始")
		}
		return
	}
	next := st.Next
	r.cursor = &next
	log.Infof("恢复成交游标: from=%d", next)
}

func (r *Runner) saveCursor(next int64) {
	if r.cfg.CursorStore == nil {
		return
	}
	if err := r.cfg.CursorStore.Save(cursorState{Next: next}); err != nil {
		log.WithError(err).Warn("保存成交游标失败")
	}
}

func (r *Runner) pollTicksOnce(ctx context.Context) {
	r.cursorMu.Lock()
	var from *int64
	if r.cursor != nil {
		v := *r.cursor
		from = &v
	}
	r.cursorMu.Unlock()

	batch, err := r.adapter.FetchTicks(ctx, from)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("拉取成交失败，游标保持不变")
		}
		return
	}

	switch batch.Outcome() {
	case domain.TickOutcomeEmpty:
		return
	case domain.TickOutcomeAllMalformed:
		log.Warnf("本批成交全部无法解析: received=%d", batch.Received)
		return
	}

	if last, ok := batch.MaxTradeID(); ok {
		next := last + 1
		r.cursorMu.Lock()
		r.cursor = &next
		r.cursorMu.Unlock()
		r.saveCursor(next)
	}
	if r.ticks != nil {
		r.ticks.OnTicks(ctx, batch)
	}
}

func (r *Runner) wsLoop(ctx context.Context) {
	for {
		if err := r.runWSOnce(ctx); err != nil {
			log.WithError(err).Warnf("WS 连接中断，%s 后重连", r.cfg.WSReconnectDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.WSReconnectDelay):
			metrics.WSReconnects.Add(1)
		}
	}
}

func (r *Runner) runWSOnce(ctx context.Context) error {
	conn, err := r.dial(ctx, r.adapter.WebsocketURL())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := r.adapter.SubscribeWS(conn); err != nil {
		return err
	}
	return conn.Run(ctx, func(m websocket.Message) {
		metrics.WSMessages.Add(1)
		batch, err := r.adapter.HandleWSMessage(m.Data, m.ReceivedAt)
		if err != nil {
			// 订阅回执、pong 等非成交消息
			log.WithError(err).Debugf("忽略 WS 消息: %s", string(m.Data))
			return
		}
		if batch.Outcome() == domain.TickOutcomeOK && r.ticks != nil {
			r.ticks.OnTicks(ctx, batch)
		}
	})
}
