package simulate

import (
	"math"
	"testing"
	"time"
)

func ts() time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func TestPortfolioExecute_AppliesSlippageAndFee(t *testing.T) {
	p := NewPortfolio(10000, PerOrderFee{Amount: 1}, PercentageSlippage{Rate: 0.01})

	fill := p.Execute("SPY", 10, 100, 0, ts())
	if fill.Direction != DirectionBuy {
		t.Errorf("expected buy direction, got %s", fill.Direction)
	}
	if fill.Price != 101 {
		t.Errorf("buy fill price must include slippage: got %v want 101", fill.Price)
	}
	if fill.Fee != 1 {
		t.Errorf("unexpected fee: got %v want 1", fill.Fee)
	}
	wantCash := 10000.0 - 10*101 - 1
	if p.Cash() != wantCash {
		t.Errorf("unexpected cash: got %v want %v", p.Cash(), wantCash)
	}

	fill = p.Execute("SPY", -10, 100, 0, ts())
	if fill.Direction != DirectionSell {
		t.Errorf("expected sell direction, got %s", fill.Direction)
	}
	if fill.Price != 99 {
		t.Errorf("sell fill price must subtract slippage: got %v want 99", fill.Price)
	}
	if _, ok := p.Holding("SPY"); ok {
		t.Errorf("flat position must be removed from holdings")
	}
}

func TestPortfolioExecute_AveragePrice(t *testing.T) {
	p := NewPortfolio(0, nil, nil)

	p.Execute("SPY", 10, 100, 0, ts())
	p.Execute("SPY", 10, 200, 0, ts())
	h, ok := p.Holding("SPY")
	if !ok {
		t.Fatalf("expected SPY holding")
	}
	if h.Quantity != 20 || h.AveragePrice != 150 {
		t.Errorf("same side add must weight average: got qty=%v avg=%v", h.Quantity, h.AveragePrice)
	}

	// Partial reduce keeps the average.
	p.Execute("SPY", -5, 300, 0, ts())
	h, _ = p.Holding("SPY")
	if h.Quantity != 15 || h.AveragePrice != 150 {
		t.Errorf("reduce must keep average: got qty=%v avg=%v", h.Quantity, h.AveragePrice)
	}

	// Crossing zero resets the average to the fill price.
	p.Execute("SPY", -20, 250, 0, ts())
	h, _ = p.Holding("SPY")
	if h.Quantity != -5 || h.AveragePrice != 250 {
		t.Errorf("zero cross must reset average: got qty=%v avg=%v", h.Quantity, h.AveragePrice)
	}
}

func TestPortfolioExecute_AllowsNegativeCash(t *testing.T) {
	p := NewPortfolio(100, nil, nil)
	p.Execute("SPY", 10, 100, 0, ts())
	if p.Cash() != -900 {
		t.Errorf("cash must go negative without buying power checks: got %v", p.Cash())
	}
}

func TestPortfolioSymbols_Sorted(t *testing.T) {
	p := NewPortfolio(0, nil, nil)
	p.Execute("SPY", 1, 1, 0, ts())
	p.Execute("BITO", 1, 1, 0, ts())
	p.Execute("MSTR", 1, 1, 0, ts())

	want := []string{"BITO", "MSTR", "SPY"}
	got := p.Symbols()
	if len(got) != len(want) {
		t.Fatalf("unexpected symbol count: got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d mismatch: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestPortfolioTotalValue(t *testing.T) {
	p := NewPortfolio(1000, nil, nil)
	p.Execute("SPY", 10, 100, 0, ts())

	total := p.TotalValue(func(symbol string) float64 { return 110 })
	if math.Abs(total-1100) > 1e-9 {
		t.Errorf("unexpected total value: got %v want 1100", total)
	}
}
