package simulate

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"position-match/internal/composer"
	"position-match/internal/prices"
)

// Config 定义一次仓位模拟的参数。
type Config struct {
	Strategy    string    // 策略标识(持仓文件名)
	InitialCash float64   // 初始资金
	StartDate   time.Time // 模拟开始日期
	EndDate     time.Time // 模拟结束日期
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = 100000
	}
	return cfg
}

// Result 汇总一次模拟的输出。
type Result struct {
	Records     []DailyRecord
	Fills       []Fill
	Metrics     Metrics
	EquityCurve []float64
	FinalValue  float64
	Trades      int
}

// Engine 按 Composer 持仓文件驱动逐日仓位模拟。
//
// 时序与回测平台保持一致：某交易日的调仓指令在下一交易日以开盘价清仓、
// 收盘价建仓成交，当日盘后快照反映的是成交前的持仓。
type Engine struct {
	cfg         Config
	file        *composer.File
	openPrices  *prices.Table
	closePrices *prices.Table
	volumes     *prices.Table
	portfolio   *Portfolio
	logger      *zap.Logger
}

// NewEngine 构建模拟引擎。
func NewEngine(cfg Config, file *composer.File, openTable, closeTable, volumeTable *prices.Table, fees FeeModel, slippage SlippageModel, logger *zap.Logger) (*Engine, error) {
	if file == nil {
		return nil, fmt.Errorf("simulate: 持仓文件不能为空")
	}
	if openTable == nil || closeTable == nil || volumeTable == nil {
		return nil, fmt.Errorf("simulate: 价格表不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()

	return &Engine{
		cfg:         cfg,
		file:        file,
		openPrices:  openTable,
		closePrices: closeTable,
		volumes:     volumeTable,
		portfolio:   NewPortfolio(cfg.InitialCash, fees, slippage),
		logger:      logger,
	}, nil
}

// Run 执行完整模拟流程。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	dates := e.tradingDates()
	if len(dates) == 0 {
		return Result{}, fmt.Errorf("simulate: 模拟窗口内没有可用交易日")
	}

	var (
		records     []DailyRecord
		equity      []float64
		returns     []float64
		prevDate    time.Time
		havePrev    bool
		firstDay    = true
		tradingDone = false
	)

	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		// 盘后快照：反映上一交易日指令成交后的持仓，标价为当日收盘价。
		mark := func(symbol string) (float64, bool) {
			if !havePrev {
				return 0, false
			}
			return e.closePrices.Price(prevDate, symbol)
		}

		dayRecords, totalValue, err := e.snapshot(day, mark)
		if err != nil {
			return Result{}, err
		}
		records = append(records, dayRecords...)

		if len(equity) > 0 {
			prev := equity[len(equity)-1]
			if prev != 0 {
				returns = append(returns, totalValue/prev-1)
			}
		}
		equity = append(equity, totalValue)

		if !tradingDone {
			done, err := e.decide(day, firstDay)
			if err != nil {
				return Result{}, err
			}
			if done {
				tradingDone = true
			} else {
				firstDay = false
			}
		}

		prevDate = day
		havePrev = true
	}

	fills := e.portfolio.Fills()
	metrics := calculateMetrics(equity, returns)

	e.logger.Info("仓位模拟完成",
		zap.String("strategy", e.cfg.Strategy),
		zap.Int("days", len(dates)),
		zap.Int("fills", len(fills)),
		zap.Float64("final_value", equity[len(equity)-1]),
	)

	return Result{
		Records:     records,
		Fills:       fills,
		Metrics:     metrics,
		EquityCurve: equity,
		FinalValue:  equity[len(equity)-1],
		Trades:      len(fills),
	}, nil
}

// decide 处理某交易日的调仓判断与下单。返回 true 表示持仓文件已无后续日期。
func (e *Engine) decide(day time.Time, firstDay bool) (bool, error) {
	next, _, ok := e.file.NextTwoDates(day)
	if !ok {
		return true, nil
	}

	nextRow, ok := e.file.RowOn(next)
	if !ok {
		return false, fmt.Errorf("simulate: 持仓文件缺少 %s 的数据行", next.Format("2006-01-02"))
	}

	// 当日没有持仓行时(节假日等空档日)沿用之前最近一行，避免空档日被误判为调仓。
	var currentRow *composer.Row
	if !firstDay {
		if row, found := e.file.RowOnOrBefore(day); found {
			currentRow = &row
		}
	}

	if !firstDay && !e.file.Rebalanced(currentRow, nextRow) {
		return false, nil
	}

	// 清仓：按当日行对应的次日开盘价成交。
	base := 0.0
	held := e.portfolio.Symbols()
	cashBefore := e.portfolio.Cash()
	for _, symbol := range held {
		exitPrice, ok := e.openPrices.Price(day, symbol)
		if !ok {
			return false, fmt.Errorf("simulate: %s 在 %s 缺少次日开盘价", symbol, day.Format("2006-01-02"))
		}
		volume, ok := e.volumes.Price(day, symbol)
		if !ok {
			return false, fmt.Errorf("simulate: %s 在 %s 缺少次日成交量", symbol, day.Format("2006-01-02"))
		}
		holding, _ := e.portfolio.Holding(symbol)
		base += holding.Quantity * exitPrice
		e.portfolio.Execute(symbol, -holding.Quantity, exitPrice, volume, day)
		e.logger.Debug("清仓指令成交",
			zap.String("symbol", symbol),
			zap.Float64("quantity", holding.Quantity),
			zap.Float64("price", exitPrice),
		)
	}
	if len(held) == 0 {
		base = cashBefore
	} else {
		base += cashBefore
	}

	// 建仓：按次日收盘价，目标数量 = 组合基数 * 配置比例 / 价格。
	for _, symbol := range e.file.ActiveSymbols(nextRow) {
		price, ok := e.closePrices.Price(day, symbol)
		if !ok {
			return false, fmt.Errorf("simulate: %s 在 %s 缺少次日收盘价", symbol, day.Format("2006-01-02"))
		}
		volume, ok := e.volumes.Price(day, symbol)
		if !ok {
			return false, fmt.Errorf("simulate: %s 在 %s 缺少次日成交量", symbol, day.Format("2006-01-02"))
		}
		allocation := nextRow.Allocations[symbol]
		quantity := base * allocation / price
		if quantity == 0 {
			continue
		}
		e.portfolio.Execute(symbol, quantity, price, volume, day)
		e.logger.Debug("建仓指令成交",
			zap.String("symbol", symbol),
			zap.Float64("quantity", quantity),
			zap.Float64("price", price),
		)
	}

	return false, nil
}

// snapshot 生成某交易日的盘后持仓快照。
func (e *Engine) snapshot(day time.Time, mark func(symbol string) (float64, bool)) ([]DailyRecord, float64, error) {
	cash := e.portfolio.Cash()
	held := e.portfolio.Symbols()

	if len(held) == 0 {
		return nil, cash, nil
	}

	markPrices := make(map[string]float64, len(held))
	totalAbsExposure := 0.0
	totalValue := cash
	for _, symbol := range held {
		price, ok := mark(symbol)
		if !ok {
			return nil, 0, fmt.Errorf("simulate: %s 在 %s 缺少标价", symbol, day.Format("2006-01-02"))
		}
		markPrices[symbol] = price
		holding, _ := e.portfolio.Holding(symbol)
		totalAbsExposure += math.Abs(holding.Quantity) * price
		totalValue += holding.Quantity * price
	}

	// 百分比基数取敞口与组合价值中的较大者；现金为正且组合价值
	// 高于敞口时直接使用组合价值。
	portfolioBase := math.Max(totalAbsExposure, math.Abs(totalValue))
	if cash > 0 && totalValue > totalAbsExposure {
		portfolioBase = totalValue
	}

	records := make([]DailyRecord, 0, len(held))
	for _, symbol := range held {
		holding, _ := e.portfolio.Holding(symbol)
		price := markPrices[symbol]
		exposure := math.Abs(holding.Quantity) * price
		percentage := 0.0
		if portfolioBase != 0 {
			percentage = math.Round(exposure/portfolioBase*10000) / 100
		}

		records = append(records, DailyRecord{
			Date:           day,
			Symbol:         symbol,
			Quantity:       holding.Quantity,
			AvgPrice:       holding.AveragePrice,
			MarketPrice:    price,
			HoldingValue:   holding.Quantity * price,
			UnrealizedPnl:  (price - holding.AveragePrice) * holding.Quantity,
			PortfolioValue: portfolioBase,
			Cash:           cash,
			Percentage:     percentage,
		})
	}

	return records, totalValue, nil
}

// tradingDates 返回模拟窗口内的交易日序列(价格表日期的子集)。
func (e *Engine) tradingDates() []time.Time {
	dates := make([]time.Time, 0, len(e.openPrices.Dates))
	for _, d := range e.openPrices.Dates {
		if d.Before(e.cfg.StartDate) || d.After(e.cfg.EndDate) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
