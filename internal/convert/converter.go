package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"position-match/internal/composer"
)

// OutputFileName 返回策略对应的转换结果文件名。
func OutputFileName(strategy string) string {
	return fmt.Sprintf("converted_positions_%s.csv", strategy)
}

// Converter 把每日持仓快照转换为 Composer 持仓文件布局，
// 供与原始持仓文件逐格对比。
type Converter struct {
	logger *zap.Logger
}

// NewConverter 创建转换器。
func NewConverter(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{logger: logger}
}

// ConvertFile 读取模拟输出与参考持仓文件，写出 Composer 布局的结果。
// 标的列与 Day Traded 取值均来自参考文件。
func (c *Converter) ConvertFile(inputPath, referencePath, outputPath string) error {
	allocations, err := readDailyPositions(inputPath)
	if err != nil {
		return err
	}

	symbols, dayTraded, err := readReference(referencePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("convert: 创建输出目录失败: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("convert: 创建输出文件失败: %w", err)
	}
	defer out.Close()

	if err := write(out, allocations, symbols, dayTraded); err != nil {
		return err
	}

	c.logger.Info("持仓格式转换完成",
		zap.String("output", outputPath),
		zap.Int("dates", len(allocations)),
	)

	return nil
}

// write 输出 Composer 布局：表头、资产类型行、按日期降序的数据行。
func write(w io.Writer, allocations map[string]map[string]float64, symbols []string, dayTraded string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append([]string{composer.ColumnDate, composer.ColumnDayTraded, composer.ColumnUSD}, symbols...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("convert: 写入表头失败: %w", err)
	}

	assetTypes := []string{"Asset Type", "", "Cash"}
	for range symbols {
		assetTypes = append(assetTypes, "Equity")
	}
	if err := writer.Write(assetTypes); err != nil {
		return fmt.Errorf("convert: 写入资产类型行失败: %w", err)
	}

	dates := make([]string, 0, len(allocations))
	for date := range allocations {
		dates = append(dates, date)
	}
	// 与 Composer 导出一致，最新日期在前
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates {
		row := []string{date, dayTraded, "0"}
		for _, symbol := range symbols {
			if pct, ok := allocations[date][symbol]; ok {
				row = append(row, fmt.Sprintf("%.1f%%", pct))
			} else {
				row = append(row, "0")
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("convert: 写入数据行失败: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// readDailyPositions 读取模拟输出，仅消费 date/symbol/Percentage 三列。
func readDailyPositions(path string) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("convert: 打开模拟输出失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("convert: 读取表头失败: %w", err)
	}

	dateIdx, symbolIdx, pctIdx := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "date":
			dateIdx = i
		case "symbol":
			symbolIdx = i
		case "Percentage":
			pctIdx = i
		}
	}
	if dateIdx < 0 || symbolIdx < 0 || pctIdx < 0 {
		return nil, fmt.Errorf("convert: 模拟输出缺少 date/symbol/Percentage 列")
	}

	allocations := make(map[string]map[string]float64)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("convert: 读取第%d行失败: %w", line+1, err)
		}
		line++

		if pctIdx >= len(record) || dateIdx >= len(record) || symbolIdx >= len(record) {
			return nil, fmt.Errorf("convert: 第%d行字段不足", line)
		}

		date := strings.TrimSpace(record[dateIdx])
		symbol := strings.TrimSpace(record[symbolIdx])
		pctText := strings.TrimSpace(record[pctIdx])
		if date == "" || symbol == "" || pctText == "" {
			continue
		}

		pct, err := strconv.ParseFloat(pctText, 64)
		if err != nil {
			return nil, fmt.Errorf("convert: 第%d行 Percentage 无效: %w", line, err)
		}

		if allocations[date] == nil {
			allocations[date] = make(map[string]float64)
		}
		allocations[date][symbol] = pct
	}

	return allocations, nil
}

// readReference 从参考持仓文件提取标的列与 Day Traded 取值。
func readReference(path string) ([]string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("convert: 打开参考文件失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, "", fmt.Errorf("convert: 读取参考文件表头失败: %w", err)
	}

	nonSymbol := map[string]bool{
		composer.ColumnDate:      true,
		composer.ColumnDayTraded: true,
		composer.ColumnUSD:       true,
		composer.ColumnCash:      true,
	}

	symbols := make([]string, 0, len(header))
	dayTradedIdx := -1
	for i, col := range header {
		cleaned := strings.Trim(strings.TrimSpace(col), `"`)
		if cleaned == composer.ColumnDayTraded {
			dayTradedIdx = i
		}
		if cleaned == "" || nonSymbol[cleaned] {
			continue
		}
		symbols = append(symbols, cleaned)
	}
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("convert: 参考文件不含标的列")
	}
	if dayTradedIdx < 0 {
		return nil, "", fmt.Errorf("convert: 参考文件缺少 %s 列", composer.ColumnDayTraded)
	}

	// 跳过资产类型行，取第一条数据行的 Day Traded 值
	dayTraded := ""
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("convert: 读取参考文件失败: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(record[0]), "Asset Type") {
			continue
		}
		if dayTradedIdx < len(record) {
			dayTraded = strings.Trim(strings.TrimSpace(record[dayTradedIdx]), `"`)
		}
		break
	}
	if dayTraded == "" {
		return nil, "", fmt.Errorf("convert: 参考文件缺少数据行")
	}

	return symbols, dayTraded, nil
}
