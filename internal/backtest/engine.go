package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/datafeed"
	"quantopen/internal/engine"
)

// EventSink 接收回测过程事件，由监控侧实现落库。
type EventSink interface {
	RecordEvents(ctx context.Context, events []engine.StepEvent) error
	RecordEquity(ctx context.Context, ts time.Time, equity float64) error
}

// Result 汇总回测结果。
type Result struct {
	Metrics         Metrics
	EquityCurve     []float64
	ReturnSeries    []float64
	Trades          int
	TotalCommission float64
	FinalEquity     float64
}

// Engine 串联数据源、调度器与模拟账户，逐分钟驱动回测。
type Engine struct {
	cfg       Config
	feed      datafeed.TickProvider
	scheduler *engine.Scheduler
	simulator *Simulator
	sink      EventSink
	logger    *zap.Logger
}

// NewEngine 构建回测引擎。sink 允许为空，此时事件只进日志。
func NewEngine(cfg Config, feed datafeed.TickProvider, scheduler *engine.Scheduler, sink EventSink, logger *zap.Logger) (*Engine, error) {
	if feed == nil {
		return nil, fmt.Errorf("backtest: 数据源不能为空")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("backtest: 调度器不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()
	return &Engine{
		cfg:       cfg,
		feed:      feed,
		scheduler: scheduler,
		simulator: NewSimulator(cfg),
		sink:      sink,
		logger:    logger,
	}, nil
}

// Run 执行完整回测流程。
// 每根K线的处理次序固定：刷新价格 → 调度器产出目标权重 →
// 收盘价成交 → 登记权益并回写风控 → 事件落库。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	// 回撤基线从初始资金起算，首根K线的亏损同样以其为峰值比较。
	e.scheduler.Risk().Update(e.simulator.Equity())

	for {
		tick, ok, err := e.feed.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		e.simulator.UpdatePrices(tick.Bars)

		targets, err := e.scheduler.Step(ctx, tick)
		if err != nil {
			return Result{}, err
		}

		e.simulator.Apply(targets)
		e.simulator.Record()

		equity := e.simulator.Equity()
		e.scheduler.Risk().Update(equity)

		if e.sink != nil {
			if err := e.sink.RecordEvents(ctx, e.scheduler.DrainEvents()); err != nil {
				e.logger.Warn("事件落库失败", zap.Error(err))
			}
			if err := e.sink.RecordEquity(ctx, tick.Timestamp, equity); err != nil {
				e.logger.Warn("权益落库失败", zap.Error(err))
			}
		} else {
			e.scheduler.DrainEvents()
		}
	}

	// 期末清算只是报表口径，方便对比纯现金收益。
	e.simulator.Liquidate()
	e.simulator.Record()

	result := Result{
		Metrics:         calculateMetrics(e.simulator.EquityHistory(), e.simulator.ReturnHistory()),
		EquityCurve:     e.simulator.EquityHistory(),
		ReturnSeries:    e.simulator.ReturnHistory(),
		Trades:          e.simulator.TradeCount(),
		TotalCommission: e.simulator.TotalCommission(),
		FinalEquity:     e.simulator.Equity(),
	}

	e.logger.Info("回测完成",
		zap.Float64("final_equity", result.FinalEquity),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Float64("sharpe", result.Metrics.SharpeRatio),
		zap.Int("trades", result.Trades),
		zap.Float64("commission", result.TotalCommission))

	return result, nil
}
