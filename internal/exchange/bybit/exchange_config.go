package bybit

import (
	"context"

	"github.com/betbot/bybit-adapter/internal/domain"
	"github.com/betbot/bybit-adapter/pkg/syncgroup"
)

const (
	pathFuturesLeverageSave = "/futures/private/position/leverage/save"
	pathFuturesSwitchMode   = "/futures/private/position/switch-mode"
	pathLinearSwitchMargin  = "/private/linear/position/switch-isolated"
	pathInverseLeverageSave = "/v2/private/position/leverage/save"

	// 交割合约双向持仓模式
	futuresModeBothSide = 3
)

// InitExchangeConfig 切换为全仓保证金（交割合约同时切换为双向持仓）
// 失败只记录日志，不影响启动：账户可能已经是目标配置。
func (a *Adapter) InitExchangeConfig(ctx context.Context) {
	st, err := a.snapshotState()
	if err != nil {
		adapterLog.WithError(err).Warn("初始化交易所配置前需要先 Initialize")
		return
	}

	post := func(path string, params map[string]any) {
		resp, err := a.rest.privatePost(ctx, path, params)
		if err != nil {
			adapterLog.WithError(err).Warnf("交易所配置 %s 未生效", path)
			return
		}
		adapterLog.Infof("交易所配置 %s: ret_code=%d ret_msg=%s", path, resp.RetCode, resp.RetMsg)
	}

	switch st.marketType {
	case domain.MarketTypeInverseFutures:
		sg := syncgroup.NewSyncGroup()
		for _, idx := range []int{1, 2} {
			sg.Add(func() {
				post(pathFuturesLeverageSave, map[string]any{
					"symbol":        a.symbol,
					"position_idx":  idx,
					"buy_leverage":  0,
					"sell_leverage": 0,
				})
			})
		}
		sg.Run()
		sg.Wait()
		post(pathFuturesSwitchMode, map[string]any{"symbol": a.symbol, "mode": futuresModeBothSide})
	case domain.MarketTypeLinearPerpetual:
		post(pathLinearSwitchMargin, map[string]any{
			"symbol":        a.symbol,
			"is_isolated":   false,
			"buy_leverage":  0,
			"sell_leverage": 0,
		})
	case domain.MarketTypeInversePerpetual:
		post(pathInverseLeverageSave, map[string]any{"symbol": a.symbol, "leverage": 0})
	}
}
