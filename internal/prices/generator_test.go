package prices

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"position-match/internal/leandata"
)

type fakeBarSource struct {
	bars map[string][]leandata.Bar
}

func (f *fakeBarSource) ReadDailyBars(symbol string) ([]leandata.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return bars, nil
}

func bar(day string, open, close, volume float64) leandata.Bar {
	return leandata.Bar{Date: date(day), Open: open, Close: close, Volume: volume}
}

func TestGenerate_NextDayShiftAndIntersection(t *testing.T) {
	source := &fakeBarSource{bars: map[string][]leandata.Bar{
		"SPY": {
			bar("2024-01-02", 468, 470, 1000),
			bar("2024-01-03", 470, 471, 2000),
			bar("2024-01-04", 471, 472, 3000),
			bar("2024-01-05", 472, 473, 4000),
		},
		"BITO": {
			// 2024-01-04 missing, must drop out of the intersection.
			bar("2024-01-02", 20, 21, 500),
			bar("2024-01-03", 21, 22, 600),
			bar("2024-01-05", 22, 23, 700),
		},
	}}

	gen, err := NewGenerator(source, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}

	openTable, closeTable, volumeTable, err := gen.Generate([]string{"SPY", "BITO"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	// Common dates: 01-02, 01-03, 01-05. The last one has no next day.
	if got := openTable.Len(); got != 2 {
		t.Fatalf("unexpected open table length: got %d want 2", got)
	}

	// Row 01-02 holds 01-03 prices and volumes.
	if price, ok := openTable.Price(date("2024-01-02"), "SPY"); !ok || price != 470 {
		t.Errorf("open(2024-01-02, SPY) = (%v, %v), want 470", price, ok)
	}
	if price, ok := closeTable.Price(date("2024-01-02"), "BITO"); !ok || price != 22 {
		t.Errorf("close(2024-01-02, BITO) = (%v, %v), want 22", price, ok)
	}
	if volume, ok := volumeTable.Price(date("2024-01-02"), "SPY"); !ok || volume != 2000 {
		t.Errorf("volume(2024-01-02, SPY) = (%v, %v), want 2000", volume, ok)
	}

	// Row 01-03 skips the missing 01-04 and holds 01-05 prices.
	if price, ok := openTable.Price(date("2024-01-03"), "SPY"); !ok || price != 472 {
		t.Errorf("open(2024-01-03, SPY) = (%v, %v), want 472", price, ok)
	}
	if price, ok := closeTable.Price(date("2024-01-03"), "SPY"); !ok || price != 473 {
		t.Errorf("close(2024-01-03, SPY) = (%v, %v), want 473", price, ok)
	}
	if volume, ok := volumeTable.Price(date("2024-01-03"), "BITO"); !ok || volume != 700 {
		t.Errorf("volume(2024-01-03, BITO) = (%v, %v), want 700", volume, ok)
	}

	if _, ok := openTable.Price(date("2024-01-05"), "SPY"); ok {
		t.Errorf("last common date must not produce a row")
	}
}

func TestGenerate_NoCommonDates(t *testing.T) {
	source := &fakeBarSource{bars: map[string][]leandata.Bar{
		"SPY":  {bar("2024-01-02", 468, 470, 1000)},
		"BITO": {bar("2024-01-03", 20, 21, 500)},
	}}

	gen, err := NewGenerator(source, nil)
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	if _, _, _, err := gen.Generate([]string{"SPY", "BITO"}); err == nil {
		t.Fatalf("expected error when no common dates exist")
	}
}

func TestGenerate_EmptySymbols(t *testing.T) {
	gen, err := NewGenerator(&fakeBarSource{}, nil)
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	if _, _, _, err := gen.Generate(nil); err == nil {
		t.Fatalf("expected error for empty symbol list")
	}
}

func TestNewGenerator_NilSource(t *testing.T) {
	if _, err := NewGenerator(nil, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
