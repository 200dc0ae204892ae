package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"quantopen/internal/datafeed"
)

// VolumeResult 保存成交量相关统计。
type VolumeResult struct {
	Current   float64
	Average20 float64
	Ratio     float64
}

// Result 为一次分钟级指标计算的汇总。
type Result struct {
	EMA5   float64
	EMA20  float64
	RSI    float64
	Ret1   float64
	Ret5   float64
	Volume VolumeResult
	Close  float64
	Amount float64
}

// Calculator 提供分钟级技术指标计算。
type Calculator struct{}

// NewCalculator 创建 Calculator。
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute 依据给定标的的历史K线计算动量打分所需的指标。
func (c *Calculator) Compute(bars []datafeed.Bar) (Result, error) {
	if len(bars) == 0 {
		return Result{}, fmt.Errorf("计算指标失败: 输入K线为空")
	}

	series := NewSeries(bars)
	closePrices := series.Close
	volumes := series.Volume

	var ema5, ema20, rsi []float64
	if len(closePrices) >= 5 {
		ema5 = talib.Ema(closePrices, 5)
	}
	if len(closePrices) >= 20 {
		ema20 = talib.Ema(closePrices, 20)
	}
	if len(closePrices) >= 15 {
		rsi = talib.Rsi(closePrices, 14)
	}

	volumeAvg20 := average(SliceTail(volumes, 20))
	volumeCurrent := Last(volumes)
	volumeRatio := SafeDivide(volumeCurrent, volumeAvg20)

	lastClose := Last(closePrices)
	prevClose := Prev(closePrices)

	ret1 := 0.0
	if !math.IsNaN(prevClose) && prevClose != 0 {
		ret1 = lastClose/prevClose - 1
	}

	ret5 := 0.0
	if len(closePrices) > 5 {
		base := closePrices[len(closePrices)-6]
		if base != 0 {
			ret5 = lastClose/base - 1
		}
	}

	result := Result{
		EMA5:   Last(ema5),
		EMA20:  Last(ema20),
		RSI:    Last(rsi),
		Ret1:   ret1,
		Ret5:   ret5,
		Volume: VolumeResult{Current: volumeCurrent, Average20: volumeAvg20, Ratio: volumeRatio},
		Close:  lastClose,
		Amount: Last(series.Amount),
	}

	return result, nil
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
