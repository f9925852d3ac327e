package simulate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DailyRecord 为每日持仓快照的一行，列与下游转换工具约定一致。
type DailyRecord struct {
	Date           time.Time
	Symbol         string
	Quantity       float64
	AvgPrice       float64
	MarketPrice    float64
	HoldingValue   float64
	UnrealizedPnl  float64
	PortfolioValue float64
	Cash           float64
	Percentage     float64
}

// DailyRecordHeader 是每日持仓文件的表头。
var DailyRecordHeader = []string{
	"date", "symbol", "quantity", "avg_price", "market_price",
	"holding_value", "unrealized_pnl", "portfolio_value", "cash", "Percentage",
}

// PositionsFileName 返回策略对应的每日持仓文件名。
func PositionsFileName(strategy string) string {
	return fmt.Sprintf("daily_positions_%s.csv", strategy)
}

// FillsFileName 返回策略对应的成交明细文件名。
func FillsFileName(strategy string) string {
	return fmt.Sprintf("fills_%s.csv", strategy)
}

// WriteDailyRecords 输出每日持仓快照。
func WriteDailyRecords(path string, records []DailyRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("simulate: 创建输出目录失败: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("simulate: 创建持仓文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(DailyRecordHeader); err != nil {
		return fmt.Errorf("simulate: 写入表头失败: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Date.Format("2006-01-02"),
			r.Symbol,
			fmtFloat(r.Quantity),
			fmtFloat(r.AvgPrice),
			fmtFloat(r.MarketPrice),
			fmtFloat(r.HoldingValue),
			fmtFloat(r.UnrealizedPnl),
			fmtFloat(r.PortfolioValue),
			fmtFloat(r.Cash),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("simulate: 写入数据行失败: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteFills 输出成交明细。
func WriteFills(path string, fills []Fill) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("simulate: 创建输出目录失败: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("simulate: 创建成交文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"Symbol", "Direction", "FillQty", "FillPrice", "Fee", "Time"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("simulate: 写入表头失败: %w", err)
	}

	for _, fill := range fills {
		row := []string{
			fill.Symbol,
			string(fill.Direction),
			fmtFloat(fill.Quantity),
			fmtFloat(fill.Price),
			fmtFloat(fill.Fee),
			fill.Time.Format("2006-01-02"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("simulate: 写入数据行失败: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
