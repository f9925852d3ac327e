package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"position-match/internal/app"
	"position-match/internal/catalog"
	"position-match/internal/config"
	"position-match/internal/log"
	"position-match/internal/store"
)

var (
	version    = "0.1.0"
	configPath string
	strategy   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "posmatch",
		Short: "Composer 持仓与 LEAN 回测数据的核对流水线",
		Long: `posmatch 读取 Composer 导出的持仓文件和 LEAN 格式的日线数据，
生成次日价格表、执行仓位模拟，并把模拟结果转换回 Composer 持仓格式，
用于逐日核对两边的仓位差异。`,
		RunE: runAll,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，默认使用 configs/config.yaml")

	rootCmd.AddCommand(stageCmd("prices", "仅生成次日开盘/收盘价表", (*app.App).RunPrices))
	rootCmd.AddCommand(stageCmd("simulate", "仅执行仓位模拟，要求价格表已生成", (*app.App).RunSimulate))
	rootCmd.AddCommand(stageCmd("convert", "仅把模拟输出转换为 Composer 持仓格式", (*app.App).RunConvert))
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runAll 对持仓目录中的全部策略执行完整流水线。
func runAll(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		return a.Run(ctx)
	})
}

func stageCmd(use, short string, run func(*app.App, context.Context, string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return run(a, ctx, strategy)
			})
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "只处理指定策略，默认处理全部")
	return cmd
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "列出映射表中登记的策略",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			table, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}

			for _, entry := range table.Entries() {
				fmt.Printf("%-40s %-30s %s\n", entry.File, entry.Strategy, entry.Source)
			}
			fmt.Printf("共 %d 个策略\n", table.Len())
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("posmatch version %s\n", version)
		},
	}
}

// withApp 完成配置、日志与数据库的初始化，再执行具体任务。
func withApp(fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, app.New(cfg, logger, sqliteStore)); err != nil {
		logger.Error("流水线执行失败", zap.Error(err))
		return err
	}

	logger.Info("流水线执行完成")
	return nil
}
