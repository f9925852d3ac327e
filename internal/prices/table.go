package prices

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

const dateLayout = "2006-01-02"

// Table 保存一组标的在若干日期上的价格。
// 在次日价格表中，某行日期对应的值是"下一个交易日"的价格。
type Table struct {
	Symbols []string    // 字母序
	Dates   []time.Time // 升序
	values  map[string]map[string]float64
}

// NewTable 创建空价格表。
func NewTable(symbols []string) *Table {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return &Table{
		Symbols: sorted,
		values:  make(map[string]map[string]float64),
	}
}

// Set 写入某日期某标的的价格。
func (t *Table) Set(date time.Time, symbol string, price float64) {
	key := date.Format(dateLayout)
	row, ok := t.values[key]
	if !ok {
		row = make(map[string]float64, len(t.Symbols))
		t.values[key] = row
		t.Dates = append(t.Dates, date)
		sort.Slice(t.Dates, func(i, j int) bool { return t.Dates[i].Before(t.Dates[j]) })
	}
	row[symbol] = price
}

// Price 查询某日期某标的的价格。
func (t *Table) Price(date time.Time, symbol string) (float64, bool) {
	row, ok := t.values[date.Format(dateLayout)]
	if !ok {
		return 0, false
	}
	price, ok := row[symbol]
	return price, ok
}

// Len 返回日期行数。
func (t *Table) Len() int {
	return len(t.Dates)
}

// OpenFileName 返回策略对应的次日开盘价文件名。
func OpenFileName(strategy string) string {
	return fmt.Sprintf("next_day_open_prices_%s.csv", strategy)
}

// CloseFileName 返回策略对应的次日收盘价文件名。
func CloseFileName(strategy string) string {
	return fmt.Sprintf("next_day_close_prices_%s.csv", strategy)
}

// VolumeFileName 返回策略对应的次日成交量文件名。
func VolumeFileName(strategy string) string {
	return fmt.Sprintf("next_day_volumes_%s.csv", strategy)
}

// WriteCSV 输出价格表，列顺序为 Date 加字母序标的。
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prices: 创建输出目录失败: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prices: 创建价格文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"Date"}, t.Symbols...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("prices: 写入表头失败: %w", err)
	}

	for _, date := range t.Dates {
		row := make([]string, 0, len(header))
		row = append(row, date.Format(dateLayout))
		values := t.values[date.Format(dateLayout)]
		for _, symbol := range t.Symbols {
			price, ok := values[symbol]
			if !ok {
				return fmt.Errorf("prices: %s 在 %s 缺少价格", symbol, date.Format(dateLayout))
			}
			row = append(row, strconv.FormatFloat(price, 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("prices: 写入数据行失败: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// ReadCSV 从文件读取价格表。
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prices: 打开价格文件失败: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read 从数据流读取价格表。
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("prices: 读取表头失败: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != "Date" {
		return nil, fmt.Errorf("prices: 表头格式无效")
	}

	symbols := make([]string, 0, len(header)-1)
	for _, col := range header[1:] {
		symbols = append(symbols, strings.TrimSpace(col))
	}

	table := NewTable(symbols)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prices: 读取第%d行失败: %w", line+1, err)
		}
		line++

		date, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("prices: 第%d行日期无效: %w", line, err)
		}

		for i, col := range header[1:] {
			if i+1 >= len(record) {
				return nil, fmt.Errorf("prices: 第%d行字段不足", line)
			}
			price, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("prices: 第%d行 %s 价格无效: %w", line, col, err)
			}
			table.Set(date, strings.TrimSpace(col), price)
		}
	}

	return table, nil
}
