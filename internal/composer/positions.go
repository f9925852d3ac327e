package composer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Composer 导出文件的固定列，其余列均视为标的符号。
const (
	ColumnDate      = "Date"
	ColumnDayTraded = "Day Traded"
	ColumnUSD       = "$USD"
	ColumnCash      = "Cash"
)

// Row 表示持仓文件中一天的目标配置。
type Row struct {
	Date        time.Time
	DayTraded   string
	Allocations map[string]float64 // 符号 -> 配置比例(小数)，仅保留非空仓
	Cash        float64            // $USD/Cash 列的配置比例(小数)
	CashHeld    bool               // 该行现金列非空
}

// File 表示解析后的 Composer 持仓文件。
type File struct {
	Name    string   // 文件名(不含扩展名)，同时作为策略标识
	Symbols []string // 表头顺序的标的符号，不含 Date/Day Traded/$USD/Cash
	Rows    []Row    // 按日期升序
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
}

// ParseFile 读取并解析持仓文件。
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("composer: 打开持仓文件失败: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(f, name)
}

// Parse 从数据流解析持仓文件。表头后的资产类型行会被跳过。
func Parse(r io.Reader, name string) (*File, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("composer: 读取表头失败: %w", err)
	}

	dateIdx, dayTradedIdx := -1, -1
	symbolIdx := make(map[int]string)
	cashIdx := make([]int, 0, 2)
	symbols := make([]string, 0, len(header))
	for i, col := range header {
		col = strings.Trim(strings.TrimSpace(col), `"`)
		switch col {
		case ColumnDate:
			dateIdx = i
		case ColumnDayTraded:
			dayTradedIdx = i
		case ColumnUSD, ColumnCash:
			// 现金列不是标的，但参与调仓判断
			cashIdx = append(cashIdx, i)
		default:
			if col == "" {
				continue
			}
			symbolIdx[i] = col
			symbols = append(symbols, col)
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("composer: 表头缺少 %s 列", ColumnDate)
	}
	if dayTradedIdx < 0 {
		return nil, fmt.Errorf("composer: 表头缺少 %s 列", ColumnDayTraded)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("composer: 表头未包含任何标的列")
	}

	rows := make([]Row, 0, 64)
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("composer: 读取第%d行失败: %w", line+1, err)
		}
		line++

		// 表头之后的资产类型行(Asset Type,...)不含持仓数据。
		if strings.EqualFold(strings.TrimSpace(record[0]), "Asset Type") {
			continue
		}
		if len(record) <= dateIdx || strings.TrimSpace(record[dateIdx]) == "" {
			continue
		}

		date, err := parseDate(record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("composer: 第%d行: %w", line, err)
		}
		key := date.Format("2006-01-02")
		if seen[key] {
			return nil, fmt.Errorf("composer: 日期 %s 重复出现", key)
		}
		seen[key] = true

		row := Row{
			Date:        date,
			Allocations: make(map[string]float64),
		}
		if dayTradedIdx < len(record) {
			row.DayTraded = strings.Trim(strings.TrimSpace(record[dayTradedIdx]), `"`)
		}

		for i, symbol := range symbolIdx {
			if i >= len(record) {
				continue
			}
			value, ok, err := ParseAllocation(record[i])
			if err != nil {
				return nil, fmt.Errorf("composer: 第%d行 %s: %w", line, symbol, err)
			}
			if ok {
				row.Allocations[symbol] = value
			}
		}

		for _, i := range cashIdx {
			if i >= len(record) {
				continue
			}
			value, ok, err := ParseAllocation(record[i])
			if err != nil {
				return nil, fmt.Errorf("composer: 第%d行现金列: %w", line, err)
			}
			if ok {
				row.Cash += value
				row.CashHeld = true
			}
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("composer: 持仓文件 %s 不含数据行", name)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	return &File{
		Name:    name,
		Symbols: symbols,
		Rows:    rows,
	}, nil
}

// ParseAllocation 解析百分比单元格。"-"、空串与 0.00% 均视为空仓。
func ParseAllocation(value string) (float64, bool, error) {
	s := strings.Trim(strings.TrimSpace(value), `"`)
	if s == "" || s == "-" || s == "0" || s == "0.00%" {
		return 0, false, nil
	}
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("无法解析配置比例 %q: %w", value, err)
	}
	if f == 0 {
		return 0, false, nil
	}
	return f / 100, true, nil
}

// ActiveSymbols 返回该行持有非空仓位的标的，按表头顺序。
func (f *File) ActiveSymbols(row Row) []string {
	active := make([]string, 0, len(row.Allocations))
	for _, symbol := range f.Symbols {
		if _, ok := row.Allocations[symbol]; ok {
			active = append(active, symbol)
		}
	}
	return active
}

// Rebalanced 判断两行之间是否发生调仓：非空仓集合(含现金列)变化即视为调仓。
// 现金列参与集合比较但不参与下单。prev 为 nil 表示模拟首日，始终视为调仓。
func (f *File) Rebalanced(prev *Row, next Row) bool {
	if prev == nil {
		return true
	}
	if prev.CashHeld != next.CashHeld {
		return true
	}
	prevActive := f.ActiveSymbols(*prev)
	nextActive := f.ActiveSymbols(next)
	if len(prevActive) != len(nextActive) {
		return true
	}
	for i := range prevActive {
		if prevActive[i] != nextActive[i] {
			return true
		}
	}
	return false
}

// RowOn 返回指定日期的持仓行。
func (f *File) RowOn(date time.Time) (Row, bool) {
	target := date.Format("2006-01-02")
	for _, row := range f.Rows {
		if row.Date.Format("2006-01-02") == target {
			return row, true
		}
	}
	return Row{}, false
}

// RowOnOrBefore 返回日期不晚于 date 的最后一个持仓行。
func (f *File) RowOnOrBefore(date time.Time) (Row, bool) {
	idx := sort.Search(len(f.Rows), func(i int) bool {
		return f.Rows[i].Date.After(date)
	})
	if idx == 0 {
		return Row{}, false
	}
	return f.Rows[idx-1], true
}

// NextTwoDates 返回严格晚于 today 的前两个持仓日期。
func (f *File) NextTwoDates(today time.Time) (time.Time, time.Time, bool) {
	idx := sort.Search(len(f.Rows), func(i int) bool {
		return f.Rows[i].Date.After(today)
	})
	if idx >= len(f.Rows) {
		return time.Time{}, time.Time{}, false
	}
	first := f.Rows[idx].Date
	var second time.Time
	if idx+1 < len(f.Rows) {
		second = f.Rows[idx+1].Date
	}
	return first, second, true
}

func parseDate(value string) (time.Time, error) {
	s := strings.Trim(strings.TrimSpace(value), `"`)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// 只保留日期部分
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", value)
}
