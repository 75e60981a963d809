package marketmath

import "github.com/shopspring/decimal"

// 未实现盈亏（size 取绝对值参与计算）
//
//	正向合约：long = |size| * (mark - entry)
//	         short = |size| * (entry - mark)
//	反向合约：long = |size| * multiplier * (1/entry - 1/mark)
//	         short = |size| * multiplier * (1/mark - 1/entry)
//
// entry 或 mark 为 0 时返回 0。

// LongPnL 多头未实现盈亏
func LongPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	if entry.IsZero() || mark.IsZero() {
		return decimal.Zero
	}
	qty := size.Abs()
	if inverse {
		return qty.Mul(multiplier).Mul(reciprocal(entry).Sub(reciprocal(mark)))
	}
	return qty.Mul(mark.Sub(entry))
}

// ShortPnL 空头未实现盈亏
func ShortPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	if entry.IsZero() || mark.IsZero() {
		return decimal.Zero
	}
	qty := size.Abs()
	if inverse {
		return qty.Mul(multiplier).Mul(reciprocal(mark).Sub(reciprocal(entry)))
	}
	return qty.Mul(entry.Sub(mark))
}

func reciprocal(d decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(d, 16)
}

// Pricer 默认盈亏计算器
type Pricer struct{}

func (Pricer) LongPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	return LongPnL(entry, mark, size, inverse, multiplier)
}

func (Pricer) ShortPnL(entry, mark, size decimal.Decimal, inverse bool, multiplier decimal.Decimal) decimal.Decimal {
	return ShortPnL(entry, mark, size, inverse, multiplier)
}
