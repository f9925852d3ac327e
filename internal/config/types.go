package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了流水线运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Indicators IndicatorConfig  `mapstructure:"indicators"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// PathsConfig 描述输入输出目录布局。
type PathsConfig struct {
	ComposerDir  string `mapstructure:"composer_dir"`
	LeanDataDir  string `mapstructure:"lean_data_dir"`
	PricesDir    string `mapstructure:"prices_dir"`
	ResultsDir   string `mapstructure:"results_dir"`
	ConvertedDir string `mapstructure:"converted_dir"`
}

// CatalogConfig 描述策略映射表文件位置。
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// FeeConfig 选择手续费模型。
type FeeConfig struct {
	Model string  `mapstructure:"model"` // per_order | per_share | percentage
	Value float64 `mapstructure:"value"`
}

// SlippageConfig 选择滑点模型。
type SlippageConfig struct {
	Model string  `mapstructure:"model"` // fixed | percentage | volume_impact
	Value float64 `mapstructure:"value"`
}

// SimulationConfig 控制仓位模拟参数。
type SimulationConfig struct {
	InitialCash float64        `mapstructure:"initial_cash"`
	StartDate   time.Time      `mapstructure:"start_date"`
	EndDate     time.Time      `mapstructure:"end_date"`
	Fee         FeeConfig      `mapstructure:"fee"`
	Slippage    SlippageConfig `mapstructure:"slippage"`
}

// IndicatorConfig 控制指标快照计算。
type IndicatorConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	SMAPeriod int  `mapstructure:"sma_period"`
	EMAPeriod int  `mapstructure:"ema_period"`
	RSIPeriod int  `mapstructure:"rsi_period"`
}

// PipelineConfig 控制流水线并发度。
type PipelineConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var feeModels = map[string]bool{
	"per_order":  true,
	"per_share":  true,
	"percentage": true,
}

var slippageModels = map[string]bool{
	"fixed":         true,
	"percentage":    true,
	"volume_impact": true,
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Paths.ComposerDir == "" {
		err = multierr.Append(err, errors.New("paths.composer_dir 不能为空"))
	}
	if c.Paths.LeanDataDir == "" {
		err = multierr.Append(err, errors.New("paths.lean_data_dir 不能为空"))
	}
	if c.Paths.PricesDir == "" {
		err = multierr.Append(err, errors.New("paths.prices_dir 不能为空"))
	}
	if c.Paths.ResultsDir == "" {
		err = multierr.Append(err, errors.New("paths.results_dir 不能为空"))
	}
	if c.Paths.ConvertedDir == "" {
		err = multierr.Append(err, errors.New("paths.converted_dir 不能为空"))
	}
	if c.Simulation.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("simulation.initial_cash 必须大于0"))
	}
	if c.Simulation.StartDate.IsZero() {
		err = multierr.Append(err, errors.New("simulation.start_date 不能为空"))
	}
	if c.Simulation.EndDate.IsZero() {
		err = multierr.Append(err, errors.New("simulation.end_date 不能为空"))
	}
	if !c.Simulation.StartDate.IsZero() && !c.Simulation.EndDate.IsZero() &&
		c.Simulation.EndDate.Before(c.Simulation.StartDate) {
		err = multierr.Append(err, errors.New("simulation.end_date 不能早于 start_date"))
	}
	if !feeModels[c.Simulation.Fee.Model] {
		err = multierr.Append(err, fmt.Errorf("simulation.fee.model 不支持 %q", c.Simulation.Fee.Model))
	}
	if c.Simulation.Fee.Value < 0 {
		err = multierr.Append(err, errors.New("simulation.fee.value 不能为负"))
	}
	if c.Simulation.Fee.Model == "percentage" && c.Simulation.Fee.Value > 1 {
		err = multierr.Append(err, errors.New("simulation.fee.value 百分比模型必须位于[0,1]"))
	}
	if !slippageModels[c.Simulation.Slippage.Model] {
		err = multierr.Append(err, fmt.Errorf("simulation.slippage.model 不支持 %q", c.Simulation.Slippage.Model))
	}
	if c.Simulation.Slippage.Value < 0 {
		err = multierr.Append(err, errors.New("simulation.slippage.value 不能为负"))
	}
	if c.Simulation.Slippage.Model == "percentage" && c.Simulation.Slippage.Value > 1 {
		err = multierr.Append(err, errors.New("simulation.slippage.value 百分比模型必须位于[0,1]"))
	}
	if c.Indicators.Enabled {
		if c.Indicators.SMAPeriod <= 0 {
			err = multierr.Append(err, errors.New("indicators.sma_period 必须大于0"))
		}
		if c.Indicators.EMAPeriod <= 0 {
			err = multierr.Append(err, errors.New("indicators.ema_period 必须大于0"))
		}
		if c.Indicators.RSIPeriod <= 0 {
			err = multierr.Append(err, errors.New("indicators.rsi_period 必须大于0"))
		}
	}
	if c.Pipeline.Parallelism <= 0 {
		err = multierr.Append(err, errors.New("pipeline.parallelism 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
