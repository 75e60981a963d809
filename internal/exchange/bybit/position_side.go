package bybit

import (
	"strings"

	"github.com/betbot/bybit-adapter/internal/domain"
)

// DeterminePositionSide 根据 (方向, 自定义 ID 标签) 推断挂单所属持仓方向
//
//	buy  + entry -> long
//	buy  + close -> short
//	sell + entry -> short
//	sell + close -> long
//
// 无法识别标签时：buy 返回 unknown，sell 返回 both。下游持仓核算依赖这张表，不要改动。
func DeterminePositionSide(side, customID string) domain.PositionSide {
	isEntry := strings.Contains(customID, domain.TagEntry)
	isClose := strings.Contains(customID, domain.TagClose)

	if strings.EqualFold(side, string(domain.SideBuy)) {
		switch {
		case isEntry:
			return domain.PositionSideLong
		case isClose:
			return domain.PositionSideShort
		default:
			return domain.PositionSideUnknown
		}
	}
	switch {
	case isEntry:
		return domain.PositionSideShort
	case isClose:
		return domain.PositionSideLong
	default:
		return domain.PositionSideBoth
	}
}
