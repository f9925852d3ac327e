package simulate

import (
	"fmt"
	"math"

	"position-match/internal/config"
)

// FeeModel 计算一笔成交的手续费。
type FeeModel interface {
	Fee(quantity, price float64) float64
}

// PerOrderFee 每笔订单收取固定费用，与成交数量无关。
type PerOrderFee struct {
	Amount float64
}

func (m PerOrderFee) Fee(quantity, price float64) float64 {
	if quantity == 0 {
		return 0
	}
	return m.Amount
}

// PerShareFee 按成交股数计费。
type PerShareFee struct {
	PerShare float64
}

func (m PerShareFee) Fee(quantity, price float64) float64 {
	return m.PerShare * math.Abs(quantity)
}

// PercentageFee 按成交金额比例计费。
type PercentageFee struct {
	Rate float64
}

func (m PercentageFee) Fee(quantity, price float64) float64 {
	return math.Abs(quantity*price) * m.Rate
}

// NewFeeModel 根据配置构建手续费模型。
func NewFeeModel(cfg config.FeeConfig) (FeeModel, error) {
	if cfg.Value < 0 {
		return nil, fmt.Errorf("simulate: 手续费参数不能为负")
	}
	switch cfg.Model {
	case "per_order":
		return PerOrderFee{Amount: cfg.Value}, nil
	case "per_share":
		return PerShareFee{PerShare: cfg.Value}, nil
	case "percentage":
		if cfg.Value > 1 {
			return nil, fmt.Errorf("simulate: 百分比手续费必须位于[0,1]")
		}
		return PercentageFee{Rate: cfg.Value}, nil
	default:
		return nil, fmt.Errorf("simulate: 未知手续费模型 %q", cfg.Model)
	}
}
