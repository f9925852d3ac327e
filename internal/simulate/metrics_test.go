package simulate

import (
	"math"
	"testing"
)

func TestCalculateMetrics(t *testing.T) {
	equity := []float64{100, 110, 99}
	returns := []float64{0.1, -0.1}

	m := calculateMetrics(equity, returns)

	if math.Abs(m.TotalReturn-(-0.01)) > 1e-9 {
		t.Errorf("unexpected total return: got %v want -0.01", m.TotalReturn)
	}
	wantDD := (110.0 - 99.0) / 110.0
	if math.Abs(m.MaxDrawdown-wantDD) > 1e-9 {
		t.Errorf("unexpected max drawdown: got %v want %v", m.MaxDrawdown, wantDD)
	}
	// Symmetric returns have zero mean, so the Sharpe ratio is zero.
	if m.SharpeRatio != 0 {
		t.Errorf("unexpected sharpe: got %v want 0", m.SharpeRatio)
	}
}

func TestCalculateMetrics_Empty(t *testing.T) {
	m := calculateMetrics(nil, nil)
	if m.TotalReturn != 0 || m.MaxDrawdown != 0 || m.SharpeRatio != 0 {
		t.Errorf("empty input must produce zero metrics: %+v", m)
	}
}

func TestComputeSharpe_Annualized(t *testing.T) {
	returns := []float64{0.01, 0.03}
	// mean=0.02, sample std=sqrt(2)*0.01
	want := 0.02 / (math.Sqrt2 * 0.01) * math.Sqrt(252)
	got := computeSharpe(returns)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("unexpected sharpe: got %v want %v", got, want)
	}
}

func TestComputeDrawdown_MonotonicEquity(t *testing.T) {
	if got := computeDrawdown([]float64{100, 110, 120}); got != 0 {
		t.Errorf("monotonic equity must have zero drawdown: got %v", got)
	}
}
