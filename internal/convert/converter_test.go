package convert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "daily_positions_Bitcoin.csv")
	writeFile(t, inputPath, `date,symbol,quantity,avg_price,market_price,holding_value,unrealized_pnl,portfolio_value,cash,Percentage
2024-01-02,SPY,1000,100,100,100000,0,100000,0,100.00
2024-01-03,MSTR,50,400,410,20500,500,41000,0,50.00
2024-01-03,BITO,400,25,25.6,10240,240,41000,0,25.00
`)

	referencePath := filepath.Join(dir, "Bitcoin.csv")
	writeFile(t, referencePath, `Date,Day Traded,$USD,SPY,MSTR,BITO
Asset Type,"",Cash,Equity,Equity,Equity
2024-01-03,Yes,0,-,50.00%,25.00%
2024-01-02,Yes,0,100.00%,-,-
`)

	outputPath := filepath.Join(dir, "out", OutputFileName("Bitcoin"))

	conv := NewConverter(nil)
	if err := conv.ConvertFile(inputPath, referencePath, outputPath); err != nil {
		t.Fatalf("ConvertFile returned error: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected line count: got %d want 4", len(lines))
	}
	if lines[0] != "Date,Day Traded,$USD,SPY,MSTR,BITO" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "Asset Type,,Cash,Equity,Equity,Equity" {
		t.Errorf("unexpected asset type row: %s", lines[1])
	}
	// Newest date first, percentages with one decimal, empty cells as 0.
	if lines[2] != "2024-01-03,Yes,0,0,50.0%,25.0%" {
		t.Errorf("unexpected first data row: %s", lines[2])
	}
	if lines[3] != "2024-01-02,Yes,0,100.0%,0,0" {
		t.Errorf("unexpected second data row: %s", lines[3])
	}
}

func TestConvertFile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	conv := NewConverter(nil)
	err := conv.ConvertFile(filepath.Join(dir, "missing.csv"), filepath.Join(dir, "ref.csv"), filepath.Join(dir, "out.csv"))
	if err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func TestConvertFile_BadReference(t *testing.T) {
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "input.csv")
	writeFile(t, inputPath, "date,symbol,Percentage\n2024-01-02,SPY,100.00\n")

	referencePath := filepath.Join(dir, "ref.csv")
	writeFile(t, referencePath, "Date,Day Traded,$USD\n2024-01-02,Yes,0\n")

	conv := NewConverter(nil)
	err := conv.ConvertFile(inputPath, referencePath, filepath.Join(dir, "out.csv"))
	if err == nil {
		t.Fatalf("expected error for reference without symbol columns")
	}
}

func TestOutputFileName(t *testing.T) {
	if got := OutputFileName("Bitcoin"); got != "converted_positions_Bitcoin.csv" {
		t.Errorf("OutputFileName mismatch: got %s", got)
	}
}
