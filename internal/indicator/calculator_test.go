package indicator

import (
	"math"
	"testing"
	"time"

	"quantopen/internal/datafeed"
)

func barsWithCloses(closes ...float64) []datafeed.Bar {
	base := time.Date(2024, 5, 6, 9, 31, 0, 0, time.Local)
	bars := make([]datafeed.Bar, len(closes))
	for i, close := range closes {
		bars[i] = datafeed.Bar{
			Symbol:    "600000",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Close:     close,
			Volume:    100,
			Amount:    close * 100,
		}
	}
	return bars
}

func TestCompute_EmptyInput(t *testing.T) {
	c := NewCalculator()
	if _, err := c.Compute(nil); err == nil {
		t.Error("空输入应报错")
	}
}

func TestCompute_ShortSeriesSkipsIndicators(t *testing.T) {
	c := NewCalculator()
	result, err := c.Compute(barsWithCloses(10, 10.1))
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}
	// 长度不足时不调用底层指标库，均线与RSI为NaN。
	if !math.IsNaN(result.EMA5) || !math.IsNaN(result.EMA20) || !math.IsNaN(result.RSI) {
		t.Errorf("短序列指标应为NaN: %+v", result)
	}
	if math.Abs(result.Ret1-(10.1/10-1)) > 1e-9 {
		t.Errorf("Ret1: got %v", result.Ret1)
	}
}

func TestCompute_ReturnsAndVolume(t *testing.T) {
	c := NewCalculator()
	closes := []float64{10, 10.2, 10.1, 10.3, 10.4, 10.5, 10.6}
	result, err := c.Compute(barsWithCloses(closes...))
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}

	wantRet1 := 10.6/10.5 - 1
	if math.Abs(result.Ret1-wantRet1) > 1e-9 {
		t.Errorf("Ret1: got %v, want %v", result.Ret1, wantRet1)
	}
	wantRet5 := 10.6/10.2 - 1
	if math.Abs(result.Ret5-wantRet5) > 1e-9 {
		t.Errorf("Ret5: got %v, want %v", result.Ret5, wantRet5)
	}
	if result.Close != 10.6 {
		t.Errorf("Close: got %v", result.Close)
	}
	if result.EMA5 == 0 {
		t.Error("长度足够时应计算EMA5")
	}
	if result.Volume.Ratio <= 0 {
		t.Errorf("量比应为正: %v", result.Volume.Ratio)
	}
	if result.Amount != 10.6*100 {
		t.Errorf("Amount: got %v", result.Amount)
	}
}
