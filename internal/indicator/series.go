package indicator

import (
	"math"
	"time"

	"position-match/internal/leandata"
)

// Series 将日线数据拆分为便于指标计算的序列。
type Series struct {
	Timestamps []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
}

// NewSeries 从日线创建 Series，按时间升序排列。
func NewSeries(bars []leandata.Bar) Series {
	length := len(bars)
	series := Series{
		Timestamps: make([]time.Time, length),
		Open:       make([]float64, length),
		High:       make([]float64, length),
		Low:        make([]float64, length),
		Close:      make([]float64, length),
		Volume:     make([]float64, length),
	}

	for i := 0; i < length; i++ {
		bar := bars[i]
		series.Timestamps[i] = bar.Date.UTC()
		series.Open[i] = bar.Open
		series.High[i] = bar.High
		series.Low[i] = bar.Low
		series.Close[i] = bar.Close
		series.Volume[i] = bar.Volume
	}

	return series
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Close)
}

// Last 返回序列最后一个值，若为空则返回 NaN。
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Prev 返回序列倒数第二个值，若不足两个元素则返回 NaN。
func Prev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return values[len(values)-2]
}
