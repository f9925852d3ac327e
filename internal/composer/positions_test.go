package composer

import (
	"strings"
	"testing"
	"time"
)

const sampleCSV = `Date,Day Traded,$USD,SPY,MSTR,BITO
Asset Type,"",Cash,Equity,Equity,Equity
2024-01-04,Yes,0,-,50.00%,50.00%
2024-01-02,Yes,0,100.00%,-,-
2024-01-03,No,0,100.00%,0.00%,-
`

func TestParse_SampleFile(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleCSV), "Bitcoin")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if file.Name != "Bitcoin" {
		t.Errorf("unexpected name: got %s", file.Name)
	}
	wantSymbols := []string{"SPY", "MSTR", "BITO"}
	if len(file.Symbols) != len(wantSymbols) {
		t.Fatalf("unexpected symbol count: got %d want %d", len(file.Symbols), len(wantSymbols))
	}
	for i, sym := range wantSymbols {
		if file.Symbols[i] != sym {
			t.Errorf("symbol %d mismatch: got %s want %s", i, file.Symbols[i], sym)
		}
	}

	if len(file.Rows) != 3 {
		t.Fatalf("unexpected row count: got %d want 3", len(file.Rows))
	}
	// Rows must come out sorted ascending even though the file is unordered.
	for i := 1; i < len(file.Rows); i++ {
		if !file.Rows[i-1].Date.Before(file.Rows[i].Date) {
			t.Fatalf("rows not sorted ascending at index %d", i)
		}
	}

	first := file.Rows[0]
	if got := first.Date.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("first row date mismatch: got %s", got)
	}
	if first.DayTraded != "Yes" {
		t.Errorf("day traded mismatch: got %q", first.DayTraded)
	}
	if alloc, ok := first.Allocations["SPY"]; !ok || alloc != 1.0 {
		t.Errorf("expected SPY allocation 1.0, got %v (ok=%v)", alloc, ok)
	}
	if _, ok := first.Allocations["MSTR"]; ok {
		t.Errorf("dash cell must not produce an allocation")
	}

	// 0.00% counts as no position.
	second := file.Rows[1]
	if _, ok := second.Allocations["MSTR"]; ok {
		t.Errorf("0.00%% cell must not produce an allocation")
	}

	third := file.Rows[2]
	if alloc := third.Allocations["MSTR"]; alloc != 0.5 {
		t.Errorf("expected MSTR allocation 0.5, got %v", alloc)
	}
}

func TestParse_RejectsDuplicateDates(t *testing.T) {
	csv := `Date,Day Traded,$USD,SPY
2024-01-02,Yes,0,100.00%
2024-01-02,Yes,0,100.00%
`
	if _, err := Parse(strings.NewReader(csv), "dup"); err == nil {
		t.Fatalf("expected duplicate date error")
	}
}

func TestParse_MissingColumns(t *testing.T) {
	cases := []struct {
		name string
		csv  string
	}{
		{"no date", "Day Traded,SPY\nYes,100.00%\n"},
		{"no day traded", "Date,SPY\n2024-01-02,100.00%\n"},
		{"no symbols", "Date,Day Traded,$USD\n2024-01-02,Yes,0\n"},
	}
	for _, tc := range cases {
		if _, err := Parse(strings.NewReader(tc.csv), "bad"); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParseAllocation(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"-", 0, false},
		{"", 0, false},
		{"0", 0, false},
		{"0.00%", 0, false},
		{"50.00%", 0.5, true},
		{"100.00%", 1.0, true},
		{"12.5%", 0.125, true},
		{`"25.00%"`, 0.25, true},
	}
	for _, tc := range cases {
		got, ok, err := ParseAllocation(tc.in)
		if err != nil {
			t.Errorf("ParseAllocation(%q) returned error: %v", tc.in, err)
			continue
		}
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ParseAllocation(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}

	if _, _, err := ParseAllocation("abc%"); err == nil {
		t.Errorf("expected error for non numeric cell")
	}
}

func TestRebalanced(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleCSV), "Bitcoin")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if !file.Rebalanced(nil, file.Rows[0]) {
		t.Errorf("first day must always count as rebalance")
	}
	// 01-02 -> 01-03: both hold only SPY.
	if file.Rebalanced(&file.Rows[0], file.Rows[1]) {
		t.Errorf("unchanged active set must not count as rebalance")
	}
	// 01-03 -> 01-04: SPY out, MSTR/BITO in.
	if !file.Rebalanced(&file.Rows[1], file.Rows[2]) {
		t.Errorf("changed active set must count as rebalance")
	}
}

func TestParse_CashColumn(t *testing.T) {
	csv := `Date,Day Traded,$USD,SPY
2024-01-02,Yes,50.00%,50.00%
2024-01-03,No,-,100.00%
`
	file, err := Parse(strings.NewReader(csv), "cash")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	first := file.Rows[0]
	if !first.CashHeld || first.Cash != 0.5 {
		t.Errorf("expected cash 0.5 held, got (%v, %v)", first.Cash, first.CashHeld)
	}
	if _, ok := first.Allocations["$USD"]; ok {
		t.Errorf("cash column must not appear in symbol allocations")
	}

	second := file.Rows[1]
	if second.CashHeld || second.Cash != 0 {
		t.Errorf("dash cash cell must be empty, got (%v, %v)", second.Cash, second.CashHeld)
	}
}

func TestRebalanced_CashShift(t *testing.T) {
	csv := `Date,Day Traded,$USD,SPY
2024-01-02,Yes,50.00%,50.00%
2024-01-03,Yes,-,100.00%
2024-01-04,No,-,100.00%
`
	file, err := Parse(strings.NewReader(csv), "cash")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	// SPY stays active both days, but cash goes from 50% to empty.
	if !file.Rebalanced(&file.Rows[0], file.Rows[1]) {
		t.Errorf("cash allocation shift (50%% $USD -> 0) must count as rebalance")
	}
	// Cash stays empty, SPY stays active.
	if file.Rebalanced(&file.Rows[1], file.Rows[2]) {
		t.Errorf("unchanged cash and symbols must not count as rebalance")
	}
}

func TestRowOnOrBefore(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleCSV), "Bitcoin")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	// Exact hit.
	row, ok := file.RowOnOrBefore(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if !ok || row.Date.Format("2006-01-02") != "2024-01-03" {
		t.Errorf("expected exact row, got (%v, %v)", row.Date, ok)
	}
	// Gap day falls back to the previous row.
	row, ok = file.RowOnOrBefore(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if !ok || row.Date.Format("2006-01-02") != "2024-01-04" {
		t.Errorf("expected latest earlier row, got (%v, %v)", row.Date, ok)
	}
	// Before the first row there is nothing to fall back to.
	if _, ok := file.RowOnOrBefore(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); ok {
		t.Errorf("expected miss before first row")
	}
}

func TestNextTwoDates(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleCSV), "Bitcoin")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	first, second, ok := file.NextTwoDates(day)
	if !ok {
		t.Fatalf("expected next dates after %s", day.Format("2006-01-02"))
	}
	if got := first.Format("2006-01-02"); got != "2024-01-03" {
		t.Errorf("first next date mismatch: got %s", got)
	}
	if got := second.Format("2006-01-02"); got != "2024-01-04" {
		t.Errorf("second next date mismatch: got %s", got)
	}

	last := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	if _, _, ok := file.NextTwoDates(last); ok {
		t.Errorf("expected no dates after the last row")
	}
}

func TestRowOn(t *testing.T) {
	file, err := Parse(strings.NewReader(sampleCSV), "Bitcoin")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	row, ok := file.RowOn(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatalf("expected row on 2024-01-03")
	}
	if row.Allocations["SPY"] != 1.0 {
		t.Errorf("unexpected allocation: %v", row.Allocations)
	}
	if _, ok := file.RowOn(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)); ok {
		t.Errorf("expected no row on missing date")
	}
}
