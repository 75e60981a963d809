package marketmath

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLinearPnL(t *testing.T) {
	one := decimal.NewFromInt(1)
	// 多头 0.5 @ 30000，标记价 31000 => +500
	if got := LongPnL(d("30000"), d("31000"), d("0.5"), false, one); !got.Equal(d("500")) {
		t.Fatalf("long pnl got=%s want=500", got)
	}
	// 空头 size 为负，按绝对值计算：-0.5 @ 30000，标记价 31000 => -500
	if got := ShortPnL(d("30000"), d("31000"), d("-0.5"), false, one); !got.Equal(d("-500")) {
		t.Fatalf("short pnl got=%s want=-500", got)
	}
}

func TestInversePnL(t *testing.T) {
	one := decimal.NewFromInt(1)
	// 多头 100 张 @ 20000，标记价 25000 => 100 * (1/20000 - 1/25000) = 0.001
	got := LongPnL(d("20000"), d("25000"), d("100"), true, one)
	if !got.Round(8).Equal(d("0.001")) {
		t.Fatalf("inverse long pnl got=%s want=0.001", got)
	}
	got = ShortPnL(d("20000"), d("25000"), d("-100"), true, one)
	if !got.Round(8).Equal(d("-0.001")) {
		t.Fatalf("inverse short pnl got=%s want=-0.001", got)
	}
	// 合约乘数
	got = LongPnL(d("20000"), d("25000"), d("100"), true, d("10"))
	if !got.Round(8).Equal(d("0.01")) {
		t.Fatalf("inverse long pnl with multiplier got=%s want=0.01", got)
	}
}

func TestPnLZeroEntry(t *testing.T) {
	one := decimal.NewFromInt(1)
	var p Pricer
	if got := p.LongPnL(decimal.Zero, d("100"), d("3"), true, one); !got.IsZero() {
		t.Fatalf("zero entry long pnl got=%s", got)
	}
	if got := p.ShortPnL(decimal.Zero, d("100"), d("-3"), false, one); !got.IsZero() {
		t.Fatalf("zero entry short pnl got=%s", got)
	}
	if got := p.LongPnL(d("100"), decimal.Zero, d("3"), false, one); !got.IsZero() {
		t.Fatalf("zero mark long pnl got=%s", got)
	}
}
