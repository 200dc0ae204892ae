package backtest

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/config"
	"quantopen/internal/datafeed"
	"quantopen/internal/engine"
	"quantopen/internal/feature"
	"quantopen/internal/strategy"
)

type fixedScorer struct {
	scores map[string]float64
}

func (s *fixedScorer) Score(ctx context.Context, ts time.Time, snap feature.Snapshot, hot map[string]int, themes *datafeed.ThemeTable) (map[string]float64, error) {
	out := make(map[string]float64, len(s.scores))
	for symbol, score := range s.scores {
		out[symbol] = score
	}
	return out, nil
}

type captureSink struct {
	events   []engine.StepEvent
	equities []float64
}

func (c *captureSink) RecordEvents(ctx context.Context, events []engine.StepEvent) error {
	c.events = append(c.events, events...)
	return nil
}

func (c *captureSink) RecordEquity(ctx context.Context, ts time.Time, equity float64) error {
	c.equities = append(c.equities, equity)
	return nil
}

func (c *captureSink) count(eventType string) int {
	n := 0
	for _, ev := range c.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

var e2eDay = time.Date(2024, 5, 6, 9, 31, 0, 0, time.Local)

func e2eStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		TopK:                   3,
		MaxWeightPerSymbol:     0.10,
		HotTopN:                50,
		MinAmount1m:            2_000_000,
		LimitUpThreshold:       0.095,
		RebalanceEveryNMinutes: 5,
		HoldMinutes:            60,
		MaxAccountDrawdown:     0.08,
		RiskOffWeight:          0,
	}
}

func newE2EScheduler(cfg config.StrategyConfig, scorer strategy.Scorer, hotSymbols []string) *engine.Scheduler {
	logger := zap.NewNop()
	hotlist := datafeed.NewHotlistTable()
	for i, symbol := range hotSymbols {
		hotlist.Set(e2eDay, symbol, i+1)
	}
	return engine.NewScheduler(
		cfg,
		scorer,
		strategy.NewFilterChain(cfg, logger),
		feature.NewExtractor(nil, logger),
		hotlist,
		nil,
		engine.NewLedger(),
		engine.NewRiskMonitor(),
		logger,
	)
}

func bar(symbol string, ts time.Time, close, amount float64) datafeed.Bar {
	return datafeed.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      close, High: close, Low: close, Close: close,
		Volume: amount / close,
		Amount: amount,
	}
}

// 六标的全链路场景：每个过滤环节各淘汰一个标的，剩余前三等权建仓。
//
//	600000 人气1、流动性好、得分高   -> 入选
//	000001 人气2、流动性好、得分中   -> 入选
//	300750 人气3、流动性好、得分低   -> 第二次调仓入选
//	002594 不在人气榜               -> 剔除
//	600519 成交额不足               -> 剔除
//	601318 得分最高但尾盘触及涨停   -> 第二次调仓剔除
func TestEngine_EndToEndScenario(t *testing.T) {
	hotSymbols := []string{"600000", "000001", "300750", "600519", "601318"}
	scores := map[string]float64{
		"600000": 3, "000001": 2, "300750": 1,
		"002594": 4, "600519": 5, "601318": 10,
	}

	liquid := 10_000_000.0
	thin := 1_000_000.0

	var ticks []datafeed.Tick
	for i := 0; i < 6; i++ {
		ts := e2eDay.Add(time.Duration(i) * time.Minute)
		fClose := 10.0
		if i == 5 {
			fClose = 10.96 // +9.6%，触发涨停剔除
		}
		ticks = append(ticks, datafeed.Tick{
			Timestamp: ts,
			Bars: map[string]datafeed.Bar{
				"600000": bar("600000", ts, 10, liquid),
				"000001": bar("000001", ts, 20, liquid),
				"300750": bar("300750", ts, 50, liquid),
				"002594": bar("002594", ts, 30, liquid),
				"600519": bar("600519", ts, 1500, thin),
				"601318": bar("601318", ts, fClose, liquid),
			},
		})
	}

	sched := newE2EScheduler(e2eStrategyConfig(), &fixedScorer{scores: scores}, hotSymbols)
	sink := &captureSink{}
	eng, err := NewEngine(testCostConfig(), datafeed.NewSliceProvider(ticks), sched, sink, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// N=5，6个tick恰好两次调仓。
	if got := sink.count(engine.EventRebalance); got != 2 {
		t.Errorf("调仓次数: got %d, want 2", got)
	}

	// 第二次调仓后 601318 因涨停被剔除，300750 顶替入选。
	held := sched.Ledger().Held()
	want := []string{"000001", "300750", "600000"}
	if len(held) != len(want) {
		t.Fatalf("期末持仓: got %v, want %v", held, want)
	}
	for i := range want {
		if held[i] != want[i] {
			t.Errorf("持仓[%d]: got %s, want %s", i, held[i], want[i])
		}
	}

	for _, symbol := range want {
		pos, ok := sched.Ledger().Get(symbol)
		if !ok {
			t.Fatalf("应持有 %s", symbol)
		}
		if pos.Weight != 0.10 {
			t.Errorf("%s 权重: got %v, want 0.10 (等权并封顶)", symbol, pos.Weight)
		}
	}

	// 601318 在持有期内上涨9.6%后被卖出，期末权益应为正收益。
	if result.FinalEquity <= testCostConfig().InitialCash {
		t.Errorf("期末权益应高于初始资金: got %v", result.FinalEquity)
	}
	if result.Trades == 0 {
		t.Error("应有成交记录")
	}
	if len(sink.equities) != 6 {
		t.Errorf("权益落库次数: got %d, want 6", len(sink.equities))
	}
}

func TestEngine_PeakSeededFromInitialCash(t *testing.T) {
	cfg := e2eStrategyConfig()
	var ticks []datafeed.Tick
	for i := 0; i < 3; i++ {
		ts := e2eDay.Add(time.Duration(i) * time.Minute)
		ticks = append(ticks, datafeed.Tick{
			Timestamp: ts,
			Bars:      map[string]datafeed.Bar{"600000": bar("600000", ts, 10, 10_000_000)},
		})
	}

	sched := newE2EScheduler(cfg, &fixedScorer{scores: map[string]float64{"600000": 1}}, []string{"600000"})
	eng, err := NewEngine(testCostConfig(), datafeed.NewSliceProvider(ticks), sched, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 价格不动时权益只被佣金侵蚀，峰值必须停留在初始资金上，
	// 而不是首笔成交结算后的金额。
	if got := sched.Risk().Peak(); got != testCostConfig().InitialCash {
		t.Errorf("峰值权益: got %v, want %v", got, testCostConfig().InitialCash)
	}
}

func TestEngine_RiskOffEndToEnd(t *testing.T) {
	cfg := e2eStrategyConfig()
	cfg.TopK = 1
	cfg.MaxWeightPerSymbol = 0.50
	cfg.RebalanceEveryNMinutes = 100 // 只在第0个tick调仓

	var ticks []datafeed.Tick
	closes := []float64{10, 8, 8, 8} // 第1根K线暴跌20%，账户回撤约10%
	for i, close := range closes {
		ts := e2eDay.Add(time.Duration(i) * time.Minute)
		ticks = append(ticks, datafeed.Tick{
			Timestamp: ts,
			Bars:      map[string]datafeed.Bar{"600000": bar("600000", ts, close, 10_000_000)},
		})
	}

	sched := newE2EScheduler(cfg, &fixedScorer{scores: map[string]float64{"600000": 1}}, []string{"600000"})
	sink := &captureSink{}
	eng, err := NewEngine(testCostConfig(), datafeed.NewSliceProvider(ticks), sched, sink, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if sink.count(engine.EventRiskOff) == 0 {
		t.Error("暴跌后应出现 risk_off 事件")
	}
	if sched.Ledger().Len() != 0 {
		t.Error("熔断后账本应清空")
	}
}
