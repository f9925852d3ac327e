package prices

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"position-match/internal/leandata"
)

// BarSource 提供标的的日线数据。
type BarSource interface {
	ReadDailyBars(symbol string) ([]leandata.Bar, error)
}

// Generator 为策略生成次日开盘价、收盘价与成交量表。
type Generator struct {
	source BarSource
	logger *zap.Logger
}

// NewGenerator 创建价格表生成器。
func NewGenerator(source BarSource, logger *zap.Logger) (*Generator, error) {
	if source == nil {
		return nil, fmt.Errorf("prices: bar source 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{source: source, logger: logger}, nil
}

// Generate 针对给定标的集合构建次日价格表与成交量表。
// 仅保留所有标的共有的交易日；每行日期对应的值为下一个共有交易日的数据。
func (g *Generator) Generate(symbols []string) (openTable, closeTable, volumeTable *Table, err error) {
	if len(symbols) == 0 {
		return nil, nil, nil, fmt.Errorf("prices: 标的列表为空")
	}

	type symbolPrices struct {
		open   map[string]float64
		close  map[string]float64
		volume map[string]float64
	}

	bySymbol := make(map[string]symbolPrices, len(symbols))
	var common map[string]bool

	for _, symbol := range symbols {
		bars, err := g.source.ReadDailyBars(symbol)
		if err != nil {
			return nil, nil, nil, err
		}
		g.logger.Debug("加载日线完成",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)),
		)

		sp := symbolPrices{
			open:   make(map[string]float64, len(bars)),
			close:  make(map[string]float64, len(bars)),
			volume: make(map[string]float64, len(bars)),
		}
		dates := make(map[string]bool, len(bars))
		for _, bar := range bars {
			key := bar.Date.Format(dateLayout)
			sp.open[key] = bar.Open
			sp.close[key] = bar.Close
			sp.volume[key] = bar.Volume
			dates[key] = true
		}
		bySymbol[symbol] = sp

		if common == nil {
			common = dates
		} else {
			for key := range common {
				if !dates[key] {
					delete(common, key)
				}
			}
		}
	}

	if len(common) == 0 {
		return nil, nil, nil, fmt.Errorf("prices: 标的之间没有共同交易日")
	}

	commonDates := make([]string, 0, len(common))
	for key := range common {
		commonDates = append(commonDates, key)
	}
	sort.Strings(commonDates)

	openTable = NewTable(symbols)
	closeTable = NewTable(symbols)
	volumeTable = NewTable(symbols)

	// 最后一个共有交易日没有"次日"，不产生数据行。
	for i := 0; i < len(commonDates)-1; i++ {
		current, err := time.Parse(dateLayout, commonDates[i])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("prices: 内部日期无效: %w", err)
		}
		next := commonDates[i+1]
		for _, symbol := range symbols {
			sp := bySymbol[symbol]
			openTable.Set(current, symbol, sp.open[next])
			closeTable.Set(current, symbol, sp.close[next])
			volumeTable.Set(current, symbol, sp.volume[next])
		}
	}

	g.logger.Info("次日价格表生成完成",
		zap.Int("symbols", len(symbols)),
		zap.Int("rows", openTable.Len()),
	)

	return openTable, closeTable, volumeTable, nil
}
