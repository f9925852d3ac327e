package journal

import (
	"time"

	"position-match/internal/indicator"
	"position-match/internal/simulate"
)

// EventType 表示流水线事件类型。
type EventType string

const (
	EventPricesGenerated  EventType = "prices_generated"
	EventSimulationDone   EventType = "simulation_done"
	EventConversionDone   EventType = "conversion_done"
	EventIndicatorRecord  EventType = "indicator_snapshot"
	EventPipelineError    EventType = "error"
	EventStrategyFinished EventType = "strategy_finished"
)

// Event 封装通用流水线事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PricesPayload 记录价格表生成结果。
type PricesPayload struct {
	Strategy   string   `json:"strategy"`
	Symbols    []string `json:"symbols"`
	Rows       int      `json:"rows"`
	OpenFile   string   `json:"open_file"`
	CloseFile  string   `json:"close_file"`
	VolumeFile string   `json:"volume_file"`
}

// SimulationPayload 记录仓位模拟结果。
type SimulationPayload struct {
	Strategy   string           `json:"strategy"`
	Days       int              `json:"days"`
	Fills      int              `json:"fills"`
	FinalValue float64          `json:"final_value"`
	Metrics    simulate.Metrics `json:"metrics"`
}

// ConversionPayload 记录格式转换结果。
type ConversionPayload struct {
	Strategy string `json:"strategy"`
	Output   string `json:"output"`
}

// IndicatorPayload 记录策略标的的指标快照。
type IndicatorPayload struct {
	Strategy  string               `json:"strategy"`
	Snapshots []indicator.Snapshot `json:"snapshots"`
}

// StrategyPayload 记录单个策略流水线的整体结果。
type StrategyPayload struct {
	Strategy string `json:"strategy"`
	Name     string `json:"name,omitempty"`
	Source   string `json:"source,omitempty"`
	Duration string `json:"duration"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
