package leandata

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LEAN 日线文件中价格以万分之一美元存储。
const priceScale = 10000.0

// Bar 表示一根日线。价格已换算为美元。
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Reader 从 LEAN 数据目录读取美股日线数据。
type Reader struct {
	dataDir string
}

// NewReader 创建 LEAN 数据读取器。
func NewReader(dataDir string) *Reader {
	return &Reader{dataDir: dataDir}
}

// ArchivePath 返回符号对应的日线压缩包路径。
func (r *Reader) ArchivePath(symbol string) string {
	return filepath.Join(r.dataDir, "equity", "usa", "daily", strings.ToLower(symbol)+".zip")
}

// ReadDailyBars 读取符号的全部日线并按日期升序返回。
func (r *Reader) ReadDailyBars(symbol string) ([]Bar, error) {
	path := r.ArchivePath(symbol)

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("leandata: 打开 %s 数据包失败: %w", symbol, err)
	}
	defer archive.Close()

	if len(archive.File) == 0 {
		return nil, fmt.Errorf("leandata: %s 数据包为空", symbol)
	}

	// 压缩包内约定只有一个 CSV 文件
	entry, err := archive.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("leandata: 读取 %s 数据包内容失败: %w", symbol, err)
	}
	defer entry.Close()

	reader := csv.NewReader(entry)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("leandata: 解析 %s 日线失败: %w", symbol, err)
	}

	bars := make([]Bar, 0, len(records))
	for i, record := range records {
		if len(record) < 6 {
			return nil, fmt.Errorf("leandata: %s 第%d行字段不足", symbol, i+1)
		}

		date, err := parseBarDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("leandata: %s 第%d行: %w", symbol, i+1, err)
		}

		values := make([]float64, 5)
		for j := 1; j < 6; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("leandata: %s 第%d行数值无效: %w", symbol, i+1, err)
			}
			values[j-1] = v
		}

		bars = append(bars, Bar{
			Date:   date,
			Open:   values[0] / priceScale,
			High:   values[1] / priceScale,
			Low:    values[2] / priceScale,
			Close:  values[3] / priceScale,
			Volume: values[4],
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("leandata: %s 日线数据为空", symbol)
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, fmt.Errorf("leandata: %s 日线日期未按升序排列", symbol)
		}
	}

	return bars, nil
}

// parseBarDate 解析 "YYYYMMDD HH:MM" 格式的日期，只保留日期部分。
func parseBarDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日线日期 %q: %w", value, err)
	}
	return t, nil
}
