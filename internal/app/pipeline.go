package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"position-match/internal/catalog"
	"position-match/internal/composer"
	"position-match/internal/config"
	"position-match/internal/convert"
	"position-match/internal/indicator"
	"position-match/internal/journal"
	"position-match/internal/leandata"
	"position-match/internal/prices"
	"position-match/internal/simulate"
	"position-match/internal/store"
)

type stage int

const (
	stagePrices stage = iota
	stageSimulate
	stageConvert
)

// pipeline 串联持仓解析、价格表生成、仓位模拟与格式转换。
type pipeline struct {
	cfg       *config.Config
	logger    *zap.Logger
	journal   *journal.Service
	catalog   *catalog.Catalog
	reader    *leandata.Reader
	generator *prices.Generator
	converter *convert.Converter
	indicator *indicator.Calculator
	fees      simulate.FeeModel
	slippage  simulate.SlippageModel
}

func newPipeline(cfg *config.Config, logger *zap.Logger, store *store.Store) (*pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	journalSvc, err := journal.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化流水线日志失败: %w", err)
	}

	strategyCatalog, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("加载策略映射表失败: %w", err)
	}

	reader := leandata.NewReader(cfg.Paths.LeanDataDir)
	generator, err := prices.NewGenerator(reader, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化价格表生成器失败: %w", err)
	}

	fees, err := simulate.NewFeeModel(cfg.Simulation.Fee)
	if err != nil {
		return nil, fmt.Errorf("初始化手续费模型失败: %w", err)
	}
	slippage, err := simulate.NewSlippageModel(cfg.Simulation.Slippage)
	if err != nil {
		return nil, fmt.Errorf("初始化滑点模型失败: %w", err)
	}

	return &pipeline{
		cfg:       cfg,
		logger:    logger,
		journal:   journalSvc,
		catalog:   strategyCatalog,
		reader:    reader,
		generator: generator,
		converter: convert.NewConverter(logger),
		indicator: indicator.NewCalculator(cfg.Indicators),
		fees:      fees,
		slippage:  slippage,
	}, nil
}

// RunAll 并发处理持仓目录中的全部策略，单个策略失败不影响其他策略。
func (p *pipeline) RunAll(ctx context.Context) error {
	paths, err := p.discover("")
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs error
	)

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Pipeline.Parallelism)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := p.runStrategy(ctx, path); err != nil {
				name := strategyName(path)
				p.journal.RecordError(ctx, "策略流水线失败", err, map[string]interface{}{"strategy": name})
				p.logger.Error("策略流水线失败",
					zap.String("strategy", name),
					zap.Error(err),
				)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("策略 %s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if errs != nil {
		return fmt.Errorf("部分策略处理失败: %w", errs)
	}
	return nil
}

// RunStage 针对单个策略(或全部)只执行指定阶段。
func (p *pipeline) RunStage(ctx context.Context, strategy string, target stage) error {
	paths, err := p.discover(strategy)
	if err != nil {
		return err
	}

	var errs error
	for _, path := range paths {
		file, err := composer.ParseFile(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		switch target {
		case stagePrices:
			_, _, _, err = p.pricesStage(ctx, file)
		case stageSimulate:
			var openTable, closeTable, volumeTable *prices.Table
			openTable, closeTable, volumeTable, err = p.loadTables(file.Name)
			if err == nil {
				_, err = p.simulateStage(ctx, file, openTable, closeTable, volumeTable)
			}
		case stageConvert:
			_, err = p.convertStage(ctx, file, path)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("策略 %s: %w", file.Name, err))
		}
	}

	return errs
}

// runStrategy 对单个持仓文件执行完整流水线。
func (p *pipeline) runStrategy(ctx context.Context, path string) error {
	start := time.Now()

	file, err := composer.ParseFile(path)
	if err != nil {
		return err
	}

	entry, known := p.catalog.Lookup(file.Name)
	if !known {
		p.logger.Warn("映射表中未登记该持仓文件，使用文件名作为策略名",
			zap.String("strategy", file.Name),
		)
		entry = catalog.Entry{File: file.Name, Strategy: file.Name}
	}

	p.logger.Info("开始处理策略",
		zap.String("strategy", entry.Strategy),
		zap.String("file", file.Name),
		zap.Strings("symbols", file.Symbols),
	)

	openTable, closeTable, volumeTable, err := p.pricesStage(ctx, file)
	if err != nil {
		return err
	}

	if _, err := p.simulateStage(ctx, file, openTable, closeTable, volumeTable); err != nil {
		return err
	}

	if _, err := p.convertStage(ctx, file, path); err != nil {
		return err
	}

	if p.cfg.Indicators.Enabled {
		if err := p.indicatorStage(ctx, file); err != nil {
			// 指标快照只是辅助核对信息，失败不阻断流水线
			p.logger.Warn("指标快照计算失败", zap.String("strategy", file.Name), zap.Error(err))
		}
	}

	p.journal.RecordStrategyFinished(ctx, entry, file.Name, time.Since(start))
	p.logger.Info("策略处理完成",
		zap.String("strategy", file.Name),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

func (p *pipeline) pricesStage(ctx context.Context, file *composer.File) (*prices.Table, *prices.Table, *prices.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	openTable, closeTable, volumeTable, err := p.generator.Generate(file.Symbols)
	if err != nil {
		return nil, nil, nil, err
	}

	openPath := filepath.Join(p.cfg.Paths.PricesDir, prices.OpenFileName(file.Name))
	closePath := filepath.Join(p.cfg.Paths.PricesDir, prices.CloseFileName(file.Name))
	volumePath := filepath.Join(p.cfg.Paths.PricesDir, prices.VolumeFileName(file.Name))
	if err := openTable.WriteCSV(openPath); err != nil {
		return nil, nil, nil, err
	}
	if err := closeTable.WriteCSV(closePath); err != nil {
		return nil, nil, nil, err
	}
	if err := volumeTable.WriteCSV(volumePath); err != nil {
		return nil, nil, nil, err
	}

	p.journal.RecordPrices(ctx, journal.PricesPayload{
		Strategy:   file.Name,
		Symbols:    file.Symbols,
		Rows:       openTable.Len(),
		OpenFile:   openPath,
		CloseFile:  closePath,
		VolumeFile: volumePath,
	})

	return openTable, closeTable, volumeTable, nil
}

func (p *pipeline) simulateStage(ctx context.Context, file *composer.File, openTable, closeTable, volumeTable *prices.Table) (simulate.Result, error) {
	engine, err := simulate.NewEngine(simulate.Config{
		Strategy:    file.Name,
		InitialCash: p.cfg.Simulation.InitialCash,
		StartDate:   p.cfg.Simulation.StartDate,
		EndDate:     p.cfg.Simulation.EndDate,
	}, file, openTable, closeTable, volumeTable, p.fees, p.slippage, p.logger)
	if err != nil {
		return simulate.Result{}, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return simulate.Result{}, err
	}

	recordsPath := filepath.Join(p.cfg.Paths.ResultsDir, simulate.PositionsFileName(file.Name))
	if err := simulate.WriteDailyRecords(recordsPath, result.Records); err != nil {
		return simulate.Result{}, err
	}

	fillsPath := filepath.Join(p.cfg.Paths.ResultsDir, simulate.FillsFileName(file.Name))
	if err := simulate.WriteFills(fillsPath, result.Fills); err != nil {
		return simulate.Result{}, err
	}

	p.journal.RecordSimulation(ctx, file.Name, result)

	return result, nil
}

func (p *pipeline) convertStage(ctx context.Context, file *composer.File, referencePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	recordsPath := filepath.Join(p.cfg.Paths.ResultsDir, simulate.PositionsFileName(file.Name))
	outputPath := filepath.Join(p.cfg.Paths.ConvertedDir, convert.OutputFileName(file.Name))

	if err := p.converter.ConvertFile(recordsPath, referencePath, outputPath); err != nil {
		return "", err
	}

	p.journal.RecordConversion(ctx, file.Name, outputPath)
	return outputPath, nil
}

func (p *pipeline) indicatorStage(ctx context.Context, file *composer.File) error {
	snapshots := make([]indicator.Snapshot, 0, len(file.Symbols))
	for _, symbol := range file.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		bars, err := p.reader.ReadDailyBars(symbol)
		if err != nil {
			return err
		}
		snapshot, err := p.indicator.Compute(symbol, bars)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, snapshot)
	}

	p.journal.RecordIndicators(ctx, file.Name, snapshots)
	return nil
}

// loadTables 从价格目录读取已生成的次日价格表与成交量表。
func (p *pipeline) loadTables(strategy string) (*prices.Table, *prices.Table, *prices.Table, error) {
	openPath := filepath.Join(p.cfg.Paths.PricesDir, prices.OpenFileName(strategy))
	closePath := filepath.Join(p.cfg.Paths.PricesDir, prices.CloseFileName(strategy))
	volumePath := filepath.Join(p.cfg.Paths.PricesDir, prices.VolumeFileName(strategy))

	openTable, err := prices.ReadCSV(openPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("读取次日开盘价表失败(请先执行 prices 阶段): %w", err)
	}
	closeTable, err := prices.ReadCSV(closePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("读取次日收盘价表失败(请先执行 prices 阶段): %w", err)
	}
	volumeTable, err := prices.ReadCSV(volumePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("读取次日成交量表失败(请先执行 prices 阶段): %w", err)
	}

	return openTable, closeTable, volumeTable, nil
}

// discover 扫描持仓目录，strategy 非空时只保留同名文件。
func (p *pipeline) discover(strategy string) ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Paths.ComposerDir)
	if err != nil {
		return nil, fmt.Errorf("扫描持仓目录失败: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		if strategy != "" && strategyName(entry.Name()) != strategy {
			continue
		}
		paths = append(paths, filepath.Join(p.cfg.Paths.ComposerDir, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		if strategy != "" {
			return nil, fmt.Errorf("持仓目录中没有策略 %q 的文件", strategy)
		}
		return nil, fmt.Errorf("持仓目录 %s 中没有持仓文件", p.cfg.Paths.ComposerDir)
	}

	return paths, nil
}

func strategyName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
