package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/bybit-adapter/internal/domain"
	"github.com/betbot/bybit-adapter/pkg/syncgroup"
)

// rawPosition 交易所单边持仓记录（三种品种字段一致，外层结构不同）
type rawPosition struct {
	Side        string          `json:"side"`
	Size        decimal.Decimal `json:"size"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	Leverage    decimal.Decimal `json:"leverage"`
	LiqPrice    decimal.Decimal `json:"liq_price"`
	PositionIdx flexInt         `json:"position_idx"`
}

// emptyPosition 缺失一侧时的零值占位（size=0, price=0, leverage=0, liq_price=0）
var emptyPosition = rawPosition{}

// positionParser 各品种的持仓解析策略：原始 result -> (多头, 空头)
type positionParser func(result json.RawMessage) (long, short rawPosition, err error)

// parseLinearPosition USDT 本位：一次返回 Buy/Sell 两条记录
func parseLinearPosition(result json.RawMessage) (rawPosition, rawPosition, error) {
	var records []rawPosition
	if err := json.Unmarshal(result, &records); err != nil {
		return emptyPosition, emptyPosition, fmt.Errorf("解析 USDT 本位持仓失败: %w", err)
	}
	long, short := emptyPosition, emptyPosition
	for _, r := range records {
		switch r.Side {
		case "Buy":
			long = r
		case "Sell":
			short = r
		}
	}
	return long, short, nil
}

// parseInversePerpetualPosition 币本位永续：只返回当前持仓方向的一条记录，另一侧补零
func parseInversePerpetualPosition(result json.RawMessage) (rawPosition, rawPosition, error) {
	var r rawPosition
	if err := json.Unmarshal(result, &r); err != nil {
		return emptyPosition, emptyPosition, fmt.Errorf("解析币本位永续持仓失败: %w", err)
	}
	if r.Side == "Buy" {
		return r, emptyPosition, nil
	}
	return emptyPosition, r, nil
}

type futuresPositionItem struct {
	Data *rawPosition `json:"data"`
}

// parseInverseFuturesPosition 币本位交割：双向持仓，position_idx 1=多 2=空；缺失的 idx 按零值占位处理
func parseInverseFuturesPosition(result json.RawMessage) (rawPosition, rawPosition, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(result, &items); err != nil {
		return emptyPosition, emptyPosition, fmt.Errorf("解析币本位交割持仓失败: %w", err)
	}
	long, short := emptyPosition, emptyPosition
	for _, raw := range items {
		var item futuresPositionItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return emptyPosition, emptyPosition, fmt.Errorf("解析币本位交割持仓失败: %w", err)
		}
		r := item.Data
		if r == nil {
			// 兼容不带 data 包装的记录
			var flat rawPosition
			if err := json.Unmarshal(raw, &flat); err != nil {
				return emptyPosition, emptyPosition, fmt.Errorf("解析币本位交割持仓失败: %w", err)
			}
			r = &flat
		}
		switch r.PositionIdx.v {
		case 1:
			long = *r
		case 2:
			short = *r
		}
	}
	return long, short, nil
}

type walletBalance struct {
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

func parseWalletBalance(result json.RawMessage, coin string) (decimal.Decimal, error) {
	var balances map[string]walletBalance
	if err := json.Unmarshal(result, &balances); err != nil {
		return decimal.Zero, fmt.Errorf("解析钱包余额失败: %w", err)
	}
	b, ok := balances[coin]
	if !ok {
		return decimal.Zero, fmt.Errorf("钱包余额中没有币种 %s", coin)
	}
	return b.WalletBalance, nil
}

// positionContext 计算未实现盈亏所需的外部参数
type positionContext struct {
	markPrice          decimal.Decimal
	inverse            bool
	contractMultiplier decimal.Decimal
	pricer             Pricer
}

// buildPosition 多头 size 取正，空头 size 取负；entry_price 为 0 时盈亏为 0
func buildPosition(long, short rawPosition, wallet decimal.Decimal, pc positionContext) domain.Position {
	pos := domain.Position{
		Long: domain.SubPosition{
			Size:             long.Size.Abs(),
			EntryPrice:       long.EntryPrice,
			Leverage:         long.Leverage,
			LiquidationPrice: long.LiqPrice,
		},
		Short: domain.SubPosition{
			Size:             short.Size.Abs().Neg(),
			EntryPrice:       short.EntryPrice,
			Leverage:         short.Leverage,
			LiquidationPrice: short.LiqPrice,
		},
		WalletBalance: wallet,
	}
	if !pos.Long.EntryPrice.IsZero() && pc.pricer != nil {
		pos.Long.UnrealizedPnL = pc.pricer.LongPnL(pos.Long.EntryPrice, pc.markPrice, pos.Long.Size, pc.inverse, pc.contractMultiplier)
	}
	if !pos.Short.EntryPrice.IsZero() && pc.pricer != nil {
		pos.Short.UnrealizedPnL = pc.pricer.ShortPnL(pos.Short.EntryPrice, pc.markPrice, pos.Short.Size, pc.inverse, pc.contractMultiplier)
	}
	pos.ComputeEquity()
	return pos
}

// FetchPosition 并发拉取持仓与余额，二者都完成后合并为一个快照
// 两次读取之间的时间差属于正常现象，不视为错误。
func (a *Adapter) FetchPosition(ctx context.Context) (*domain.Position, error) {
	st, err := a.snapshotState()
	if err != nil {
		return nil, err
	}
	coin := marginCoin(st.marketType, st.info)
	positionPath, err := st.endpoint(OpPosition)
	if err != nil {
		return nil, err
	}
	balancePath, err := st.endpoint(OpBalance)
	if err != nil {
		return nil, err
	}

	var (
		posResp, balResp *apiResponse
		posErr, balErr   error
	)
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() {
		posResp, posErr = a.rest.privateGet(ctx, positionPath, map[string]any{"symbol": a.symbol})
	})
	sg.Add(func() {
		balResp, balErr = a.rest.privateGet(ctx, balancePath, map[string]any{"coin": coin})
	})
	sg.Run()
	sg.Wait()

	if posErr != nil {
		return nil, fmt.Errorf("拉取持仓失败: %w", posErr)
	}
	if balErr != nil {
		return nil, fmt.Errorf("拉取余额失败: %w", balErr)
	}

	long, short, err := st.variant.parsePosition(posResp.Result)
	if err != nil {
		return nil, err
	}
	wallet, err := parseWalletBalance(balResp.Result, coin)
	if err != nil {
		return nil, err
	}

	pos := buildPosition(long, short, wallet, positionContext{
		markPrice:          st.lastPrice,
		inverse:            st.marketType.IsInverse(),
		contractMultiplier: a.contractMultiplier,
		pricer:             a.pricer,
	})
	adapterLog.Debugf("持仓快照: long=%s@%s short=%s@%s wallet=%s equity=%s",
		pos.Long.Size, pos.Long.EntryPrice, pos.Short.Size, pos.Short.EntryPrice, pos.WalletBalance, pos.Equity)
	return &pos, nil
}
