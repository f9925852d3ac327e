package app

import (
	"context"

	"go.uber.org/zap"

	"position-match/internal/config"
	"position-match/internal/store"
)

// App 聚合核心依赖并驱动流水线生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 对持仓目录中的全部策略执行完整流水线。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("校验流水线已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("composer_dir", a.cfg.Paths.ComposerDir),
		zap.String("lean_data_dir", a.cfg.Paths.LeanDataDir),
	)

	pipe, err := newPipeline(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	return pipe.RunAll(ctx)
}

// RunPrices 仅执行价格表生成阶段。strategy 为空时处理全部策略。
func (a *App) RunPrices(ctx context.Context, strategy string) error {
	pipe, err := newPipeline(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	return pipe.RunStage(ctx, strategy, stagePrices)
}

// RunSimulate 仅执行仓位模拟阶段，要求价格表已生成。
func (a *App) RunSimulate(ctx context.Context, strategy string) error {
	pipe, err := newPipeline(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	return pipe.RunStage(ctx, strategy, stageSimulate)
}

// RunConvert 仅执行格式转换阶段，要求模拟输出已生成。
func (a *App) RunConvert(ctx context.Context, strategy string) error {
	pipe, err := newPipeline(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	return pipe.RunStage(ctx, strategy, stageConvert)
}
