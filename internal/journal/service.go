package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"position-match/internal/catalog"
	"position-match/internal/indicator"
	"position-match/internal/simulate"
	"position-match/internal/store"
)

// Service 负责持久化流水线事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化流水线日志服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS pipeline_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_events_type ON pipeline_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordPrices 记录价格表生成。
func (s *Service) RecordPrices(ctx context.Context, payload PricesPayload) {
	if err := s.Record(ctx, Event{Type: EventPricesGenerated, Payload: payload}); err != nil {
		s.logger.Warn("记录价格表事件失败", zap.Error(err))
	}
}

// RecordSimulation 记录仓位模拟完成。
func (s *Service) RecordSimulation(ctx context.Context, strategy string, result simulate.Result) {
	payload := SimulationPayload{
		Strategy:   strategy,
		Days:       len(result.EquityCurve),
		Fills:      len(result.Fills),
		FinalValue: result.FinalValue,
		Metrics:    result.Metrics,
	}
	if err := s.Record(ctx, Event{Type: EventSimulationDone, Payload: payload}); err != nil {
		s.logger.Warn("记录模拟事件失败", zap.Error(err))
	}
}

// RecordConversion 记录格式转换完成。
func (s *Service) RecordConversion(ctx context.Context, strategy, output string) {
	payload := ConversionPayload{Strategy: strategy, Output: output}
	if err := s.Record(ctx, Event{Type: EventConversionDone, Payload: payload}); err != nil {
		s.logger.Warn("记录转换事件失败", zap.Error(err))
	}
}

// RecordIndicators 记录指标快照。
func (s *Service) RecordIndicators(ctx context.Context, strategy string, snapshots []indicator.Snapshot) {
	payload := IndicatorPayload{Strategy: strategy, Snapshots: snapshots}
	if err := s.Record(ctx, Event{Type: EventIndicatorRecord, Payload: payload}); err != nil {
		s.logger.Warn("记录指标事件失败", zap.Error(err))
	}
}

// RecordStrategyFinished 记录单个策略流水线完成。
func (s *Service) RecordStrategyFinished(ctx context.Context, entry catalog.Entry, strategy string, elapsed time.Duration) {
	payload := StrategyPayload{
		Strategy: strategy,
		Name:     entry.Strategy,
		Source:   entry.Source,
		Duration: elapsed.String(),
	}
	if err := s.Record(ctx, Event{Type: EventStrategyFinished, Payload: payload}); err != nil {
		s.logger.Warn("记录策略完成事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{Type: EventPipelineError, Payload: payload}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM pipeline_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}
