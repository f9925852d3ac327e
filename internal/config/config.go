package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "posmatch"

	dateLayout = "2006-01-02"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("paths.composer_dir", "data/composer_positions")
	v.SetDefault("paths.lean_data_dir", "data/lean")
	v.SetDefault("paths.prices_dir", "out/next_day_prices")
	v.SetDefault("paths.results_dir", "out/daily_positions")
	v.SetDefault("paths.converted_dir", "out/converted")

	v.SetDefault("catalog.path", "configs/catalog.yaml")

	v.SetDefault("simulation.initial_cash", 100000.0)
	v.SetDefault("simulation.fee.model", "percentage")
	v.SetDefault("simulation.fee.value", 0.0)
	v.SetDefault("simulation.slippage.model", "percentage")
	v.SetDefault("simulation.slippage.value", 0.0)

	v.SetDefault("indicators.enabled", true)
	v.SetDefault("indicators.sma_period", 200)
	v.SetDefault("indicators.ema_period", 15)
	v.SetDefault("indicators.rsi_period", 10)

	v.SetDefault("pipeline.parallelism", 4)

	v.SetDefault("database.path", "data/position_match.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(dateLayout),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// ParseDate 按配置使用的日期格式解析字符串。
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("解析日期 %q 失败: %w", value, err)
	}
	return t, nil
}
