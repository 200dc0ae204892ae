package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/engine"
	"quantopen/internal/store"
)

// Service 负责把回测过程事件与权益曲线持久化到 SQLite。
// 同一个数据库可以累积多次运行的结果，按 run_id 区分。
type Service struct {
	db     *sql.DB
	runID  string
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构并分配本次运行的 run_id。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		runID:  time.Now().UTC().Format("20060102T150405.000"),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS run_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run_type ON run_events(run_id, event_type);

CREATE TABLE IF NOT EXISTS equity_curve (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	equity REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equity_curve_run ON equity_curve(run_id);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// RecordEvents 批量写入调度器事件。
func (s *Service) RecordEvents(ctx context.Context, events []engine.StepEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("monitor: 开启事务失败: %w", err)
	}

	for _, ev := range events {
		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, event_type, symbol, detail, occurred_at) VALUES (?, ?, ?, ?, ?)`,
			s.runID, ev.Type, ev.Symbol, ev.Detail, ev.Timestamp.Format(time.RFC3339),
		); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("monitor: 写入事件失败: %w", execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("monitor: 提交事件失败: %w", err)
	}
	return nil
}

// RecordEquity 写入单点权益。
func (s *Service) RecordEquity(ctx context.Context, ts time.Time, equity float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO equity_curve (run_id, occurred_at, equity) VALUES (?, ?, ?)`,
		s.runID, ts.Format(time.RFC3339), equity,
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入权益失败: %w", err)
	}
	return nil
}

// RecordError 记录运行异常。失败只告警，不影响主流程。
func (s *Service) RecordError(ctx context.Context, ts time.Time, msg string, cause error) {
	detail := msg
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", msg, cause)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, event_type, symbol, detail, occurred_at) VALUES (?, ?, '', ?, ?)`,
		s.runID, "error", detail, ts.Format(time.RFC3339),
	); err != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(err))
	}
}

// RunID 返回本次运行的标识。
func (s *Service) RunID() string { return s.runID }

// CountEvents 统计本次运行中指定类型的事件数量。
func (s *Service) CountEvents(ctx context.Context, eventType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_events WHERE run_id = ? AND event_type = ?`,
		s.runID, eventType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("monitor: 统计事件失败: %w", err)
	}
	return count, nil
}

// ListEvents 按类型检索本次运行的最近事件，eventType 为空时返回全部。
func (s *Service) ListEvents(ctx context.Context, eventType string, limit int) ([]engine.StepEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, symbol, detail, occurred_at FROM run_events WHERE run_id = ?`
	args := []interface{}{s.runID}
	if eventType != "" {
		query += ` AND event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]engine.StepEvent, 0, limit)
	for rows.Next() {
		var (
			ev       engine.StepEvent
			occurred string
		)
		if scanErr := rows.Scan(&ev.Type, &ev.Symbol, &ev.Detail, &occurred); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}
		if ts, parseErr := time.Parse(time.RFC3339, occurred); parseErr == nil {
			ev.Timestamp = ts
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}

// EquityCurve 返回本次运行按时间升序的权益序列。
func (s *Service) EquityCurve(ctx context.Context) ([]EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred_at, equity FROM equity_curve WHERE run_id = ? ORDER BY id ASC`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询权益曲线失败: %w", err)
	}
	defer rows.Close()

	var points []EquityPoint
	for rows.Next() {
		var (
			occurred string
			point    EquityPoint
		)
		if scanErr := rows.Scan(&occurred, &point.Equity); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析权益失败: %w", scanErr)
		}
		if ts, parseErr := time.Parse(time.RFC3339, occurred); parseErr == nil {
			point.Timestamp = ts
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取权益曲线失败: %w", err)
	}

	return points, nil
}

// EquityPoint 为权益曲线上的一个采样点。
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}
