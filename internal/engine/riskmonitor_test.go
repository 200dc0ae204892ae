package engine

import "testing"

func TestRiskMonitor_NoHistoryNeverBreaches(t *testing.T) {
	risk := NewRiskMonitor()
	if risk.Breached(0.08) {
		t.Error("无权益历史时不应触发熔断")
	}
}

func TestRiskMonitor_DrawdownBoundary(t *testing.T) {
	risk := NewRiskMonitor()
	risk.Update(100)

	risk.Update(92.01)
	if risk.Breached(0.08) {
		t.Error("回撤 7.99% 不应触发 8% 熔断")
	}

	risk.Update(92.0)
	if !risk.Breached(0.08) {
		t.Error("回撤恰好 8% 应触发熔断")
	}
}

func TestRiskMonitor_PeakOnlyRises(t *testing.T) {
	risk := NewRiskMonitor()
	for _, equity := range []float64{100, 90, 110, 95} {
		risk.Update(equity)
	}
	if risk.Peak() != 110 {
		t.Errorf("峰值: got %v, want 110", risk.Peak())
	}
	if risk.Equity() != 95 {
		t.Errorf("当前权益: got %v, want 95", risk.Equity())
	}
}

func TestRiskMonitor_BreachPersistsUntilRecovery(t *testing.T) {
	risk := NewRiskMonitor()
	risk.Update(100)
	risk.Update(90)
	if !risk.Breached(0.08) {
		t.Fatal("回撤 10% 应触发熔断")
	}
	// 峰值不降，只有权益回升到阈值以内才解除。
	risk.Update(91)
	if !risk.Breached(0.08) {
		t.Error("权益 91 仍在熔断区间")
	}
	risk.Update(93)
	if risk.Breached(0.08) {
		t.Error("权益回升到 93 应解除熔断")
	}
}

func TestRiskMonitor_ValidateCorruptPeak(t *testing.T) {
	risk := NewRiskMonitor()
	if err := risk.Validate(); err != nil {
		t.Errorf("无历史时校验应通过: %v", err)
	}
	risk.Update(-5)
	if err := risk.Validate(); err == nil {
		t.Error("峰值非正应返回错误")
	}
}
