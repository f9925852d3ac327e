package indicator

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"position-match/internal/config"
	"position-match/internal/leandata"
)

// Value 是可序列化的指标值，NaN 在 JSON 中输出为 null。
type Value float64

// MarshalJSON 实现 json.Marshaler。
func (v Value) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(v)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

// Snapshot 为单个标的的指标快照。
// Composer 策略逻辑以这些日线指标定义，快照用于核对模拟输入。
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Bars      int       `json:"bars"`
	Close     Value     `json:"close"`
	SMA       Value     `json:"sma"`
	SMAPeriod int       `json:"sma_period"`
	EMA       Value     `json:"ema"`
	EMAPeriod int       `json:"ema_period"`
	RSI       Value     `json:"rsi"`
	RSIPeriod int       `json:"rsi_period"`
}

// Calculator 计算标的的日线指标快照。
type Calculator struct {
	smaPeriod int
	emaPeriod int
	rsiPeriod int
}

// NewCalculator 根据配置创建 Calculator。
func NewCalculator(cfg config.IndicatorConfig) *Calculator {
	return &Calculator{
		smaPeriod: cfg.SMAPeriod,
		emaPeriod: cfg.EMAPeriod,
		rsiPeriod: cfg.RSIPeriod,
	}
}

// Compute 依据给定日线计算指标快照。数据不足某周期时对应值为 NaN。
func (c *Calculator) Compute(symbol string, bars []leandata.Bar) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, fmt.Errorf("indicator: %s 输入日线为空", symbol)
	}

	series := NewSeries(bars)
	closePrices := series.Close

	snapshot := Snapshot{
		Symbol:    symbol,
		Date:      series.Timestamps[series.Len()-1],
		Bars:      series.Len(),
		Close:     Value(Last(closePrices)),
		SMA:       Value(math.NaN()),
		SMAPeriod: c.smaPeriod,
		EMA:       Value(math.NaN()),
		EMAPeriod: c.emaPeriod,
		RSI:       Value(math.NaN()),
		RSIPeriod: c.rsiPeriod,
	}

	if c.smaPeriod > 0 && series.Len() >= c.smaPeriod {
		snapshot.SMA = Value(Last(talib.Sma(closePrices, c.smaPeriod)))
	}
	if c.emaPeriod > 0 && series.Len() >= c.emaPeriod {
		snapshot.EMA = Value(Last(talib.Ema(closePrices, c.emaPeriod)))
	}
	// RSI 需要 period+1 根K线才能产生首个值
	if c.rsiPeriod > 0 && series.Len() > c.rsiPeriod {
		snapshot.RSI = Value(Last(talib.Rsi(closePrices, c.rsiPeriod)))
	}

	return snapshot, nil
}
