package monitor

import (
	"context"
	"testing"
	"time"

	"quantopen/internal/config"
	"quantopen/internal/engine"
	"quantopen/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("初始化监控服务失败: %v", err)
	}
	return svc
}

func TestService_RecordAndListEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 6, 9, 35, 0, 0, time.UTC)

	events := []engine.StepEvent{
		{Type: engine.EventRebalance, Timestamp: ts, Detail: "candidates=3 positions=3"},
		{Type: engine.EventTimeoutClose, Timestamp: ts.Add(time.Minute), Symbol: "600000", Detail: "hold_minutes=60"},
	}
	if err := svc.RecordEvents(ctx, events); err != nil {
		t.Fatalf("写入事件失败: %v", err)
	}

	got, err := svc.ListEvents(ctx, engine.EventTimeoutClose, 10)
	if err != nil {
		t.Fatalf("查询事件失败: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("事件数量: got %d, want 1", len(got))
	}
	if got[0].Symbol != "600000" {
		t.Errorf("标的: got %s, want 600000", got[0].Symbol)
	}
	if !got[0].Timestamp.Equal(ts.Add(time.Minute)) {
		t.Errorf("时间戳: got %v", got[0].Timestamp)
	}

	all, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("全部事件: got %d, want 2", len(all))
	}
}

func TestService_RecordEventsEmptyIsNoop(t *testing.T) {
	svc := newTestService(t)
	if err := svc.RecordEvents(context.Background(), nil); err != nil {
		t.Errorf("空事件批不应报错: %v", err)
	}
}

func TestService_EquityCurveOrdered(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 31, 0, 0, time.UTC)

	for i, equity := range []float64{1_000_000, 1_001_500, 998_200} {
		if err := svc.RecordEquity(ctx, base.Add(time.Duration(i)*time.Minute), equity); err != nil {
			t.Fatalf("写入权益失败: %v", err)
		}
	}

	points, err := svc.EquityCurve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("采样点数量: got %d, want 3", len(points))
	}
	if points[0].Equity != 1_000_000 || points[2].Equity != 998_200 {
		t.Errorf("权益顺序错误: %+v", points)
	}
	if !points[1].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("时间戳: got %v", points[1].Timestamp)
	}
}

func TestService_CountEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	events := []engine.StepEvent{
		{Type: engine.EventRiskOff, Timestamp: ts},
		{Type: engine.EventRiskOff, Timestamp: ts.Add(time.Minute)},
		{Type: engine.EventRebalance, Timestamp: ts},
	}
	if err := svc.RecordEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	count, err := svc.CountEvents(ctx, engine.EventRiskOff)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("熔断次数: got %d, want 2", count)
	}
}

func TestService_RunIDNotEmpty(t *testing.T) {
	svc := newTestService(t)
	if svc.RunID() == "" {
		t.Error("run_id 不应为空")
	}
}

func TestService_RecordErrorDoesNotPanic(t *testing.T) {
	svc := newTestService(t)
	svc.RecordError(context.Background(), time.Now(), "打分失败", context.DeadlineExceeded)

	events, err := svc.ListEvents(context.Background(), "error", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("异常事件数量: got %d, want 1", len(events))
	}
}
