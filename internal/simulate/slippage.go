package simulate

import (
	"fmt"
	"math"

	"position-match/internal/config"
)

// SlippageModel 估算一笔成交相对报价的价格偏移，返回值恒为非负。
// 买入按偏移抬价、卖出按偏移压价。
type SlippageModel interface {
	Slippage(price, quantity, volume float64) float64
}

// FixedSlippage 固定滑点。
type FixedSlippage struct {
	Value float64
}

func (m FixedSlippage) Slippage(price, quantity, volume float64) float64 {
	return m.Value
}

// PercentageSlippage 按价格比例滑点。
type PercentageSlippage struct {
	Rate float64
}

func (m PercentageSlippage) Slippage(price, quantity, volume float64) float64 {
	return price * m.Rate
}

// VolumeImpactSlippage 按成交量冲击估算滑点。
type VolumeImpactSlippage struct {
	Factor float64
}

func (m VolumeImpactSlippage) Slippage(price, quantity, volume float64) float64 {
	vol := math.Max(volume, 1)
	return price * m.Factor * (math.Abs(quantity) / vol)
}

// NewSlippageModel 根据配置构建滑点模型。
func NewSlippageModel(cfg config.SlippageConfig) (SlippageModel, error) {
	if cfg.Value < 0 {
		return nil, fmt.Errorf("simulate: 滑点参数不能为负")
	}
	switch cfg.Model {
	case "fixed":
		return FixedSlippage{Value: cfg.Value}, nil
	case "percentage":
		if cfg.Value > 1 {
			return nil, fmt.Errorf("simulate: 百分比滑点必须位于[0,1]")
		}
		return PercentageSlippage{Rate: cfg.Value}, nil
	case "volume_impact":
		return VolumeImpactSlippage{Factor: cfg.Value}, nil
	default:
		return nil, fmt.Errorf("simulate: 未知滑点模型 %q", cfg.Model)
	}
}
