package feature

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quantopen/internal/datafeed"
	"quantopen/internal/indicator"
)

// 滚动窗口上限：一个完整交易日的分钟数即可覆盖全部日内指标。
const maxHistoryBars = 240

// Row 为单标的在当前分钟的特征快照。
type Row struct {
	Symbol       string
	Close        float64
	PrevClose    float64
	HasPrevClose bool
	Amount       float64
	Ret1         float64
	Ret5         float64
	EMA5         float64
	EMA20        float64
	RSI          float64
	VolumeRatio  float64
}

// Snapshot 汇总一个分钟内全部标的的特征行。
type Snapshot struct {
	Timestamp time.Time
	Rows      map[string]Row
}

// Extractor 维护各标的的滚动K线窗口并逐分钟产出特征快照。
type Extractor struct {
	calc    *indicator.Calculator
	history map[string][]datafeed.Bar
	logger  *zap.Logger
}

// NewExtractor 创建特征提取器。
func NewExtractor(calc *indicator.Calculator, logger *zap.Logger) *Extractor {
	if calc == nil {
		calc = indicator.NewCalculator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		calc:    calc,
		history: make(map[string][]datafeed.Bar),
		logger:  logger,
	}
}

// Extract 吸收当前分钟的K线并计算特征。
// 各标的的指标计算相互独立，可并行；返回前必须汇合，
// 排序选股需要同一分钟内全体标的的完整截面。
func (e *Extractor) Extract(ctx context.Context, tick datafeed.Tick) (Snapshot, error) {
	symbols := make([]string, 0, len(tick.Bars))
	for symbol, bar := range tick.Bars {
		e.append(symbol, bar)
		symbols = append(symbols, symbol)
	}

	rows := make([]Row, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bars := e.history[symbol]
			result, err := e.calc.Compute(bars)
			if err != nil {
				return err
			}
			rows[i] = buildRow(symbol, bars, result)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Timestamp: tick.Timestamp,
		Rows:      make(map[string]Row, len(rows)),
	}
	for _, row := range rows {
		snapshot.Rows[row.Symbol] = row
	}

	return snapshot, nil
}

func (e *Extractor) append(symbol string, bar datafeed.Bar) {
	bars := append(e.history[symbol], bar)
	if len(bars) > maxHistoryBars {
		bars = bars[len(bars)-maxHistoryBars:]
	}
	e.history[symbol] = bars
}

func buildRow(symbol string, bars []datafeed.Bar, result indicator.Result) Row {
	// 指标窗口未满时底层返回NaN。特征行只承载有限值，
	// 打分与JSON序列化都依赖这一点。
	row := Row{
		Symbol:      symbol,
		Close:       result.Close,
		Amount:      result.Amount,
		Ret1:        finiteOrZero(result.Ret1),
		Ret5:        finiteOrZero(result.Ret5),
		EMA5:        finiteOrZero(result.EMA5),
		EMA20:       finiteOrZero(result.EMA20),
		RSI:         finiteOrZero(result.RSI),
		VolumeRatio: finiteOrZero(result.Volume.Ratio),
	}

	// 当日首根K线没有可比的前收盘，涨停过滤放行。
	if n := len(bars); n >= 2 && sameDay(bars[n-1].Timestamp, bars[n-2].Timestamp) {
		row.PrevClose = bars[n-2].Close
		row.HasPrevClose = true
		if row.PrevClose != 0 {
			row.Ret1 = row.Close/row.PrevClose - 1
		}
	} else {
		row.Ret1 = 0
	}

	return row
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
