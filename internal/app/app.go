package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/ai"
	"quantopen/internal/backtest"
	"quantopen/internal/config"
	"quantopen/internal/datafeed"
	"quantopen/internal/engine"
	"quantopen/internal/feature"
	"quantopen/internal/monitor"
	"quantopen/internal/signal"
	"quantopen/internal/store"
	"quantopen/internal/strategy"
)

// App 聚合核心依赖并驱动一次完整回测。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 装配数据源、打分器与执行引擎并跑完整个回测区间。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("策略系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("scorer", a.cfg.Scorer.Type),
		zap.Strings("symbols", a.cfg.Data.Symbols),
	)

	feed, hotlist, themes, err := a.loadData()
	if err != nil {
		return err
	}

	scorer, err := a.buildScorer(ctx)
	if err != nil {
		return err
	}

	monitorSvc, err := monitor.NewService(a.store, a.logger.Named("monitor"))
	if err != nil {
		return err
	}

	scheduler := engine.NewScheduler(
		a.cfg.Strategy,
		scorer,
		strategy.NewFilterChain(a.cfg.Strategy, a.logger.Named("filter")),
		feature.NewExtractor(nil, a.logger.Named("feature")),
		hotlist,
		themes,
		engine.NewLedger(),
		engine.NewRiskMonitor(),
		a.logger.Named("engine"),
	)

	backtestCfg := backtest.Config{
		InitialCash:    a.cfg.Backtest.InitialCash,
		CommissionRate: a.cfg.Backtest.CommissionRate,
		MinCommission:  a.cfg.Backtest.MinCommission,
		StampDuty:      a.cfg.Backtest.StampDuty,
	}
	runner, err := backtest.NewEngine(backtestCfg, feed, scheduler, monitorSvc, a.logger.Named("backtest"))
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		monitorSvc.RecordError(ctx, time.Now(), "回测执行失败", err)
		return fmt.Errorf("回测执行失败: %w", err)
	}

	riskOffCount, err := monitorSvc.CountEvents(ctx, engine.EventRiskOff)
	if err != nil {
		a.logger.Warn("统计熔断次数失败", zap.Error(err))
	}

	a.logger.Info("回测报告",
		zap.String("run_id", monitorSvc.RunID()),
		zap.Float64("initial_cash", backtestCfg.InitialCash),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Float64("sharpe", result.Metrics.SharpeRatio),
		zap.Int("trades", result.Trades),
		zap.Float64("commission", result.TotalCommission),
		zap.Int("risk_off_count", riskOffCount),
	)

	a.logRunDetail(ctx, monitorSvc)

	return nil
}

// logRunDetail 回读落库结果，输出权益曲线概况与最近的强制动作。
func (a *App) logRunDetail(ctx context.Context, svc *monitor.Service) {
	curve, err := svc.EquityCurve(ctx)
	if err != nil {
		a.logger.Warn("读取权益曲线失败", zap.Error(err))
	} else if len(curve) > 0 {
		first, last := curve[0], curve[len(curve)-1]
		a.logger.Info("权益曲线",
			zap.Int("samples", len(curve)),
			zap.Time("from", first.Timestamp),
			zap.Time("to", last.Timestamp),
			zap.Float64("first_equity", first.Equity),
			zap.Float64("last_equity", last.Equity),
		)
	}

	for _, eventType := range []string{engine.EventTimeoutClose, engine.EventRiskOff} {
		events, err := svc.ListEvents(ctx, eventType, 5)
		if err != nil {
			a.logger.Warn("读取事件失败", zap.String("type", eventType), zap.Error(err))
			continue
		}
		for _, ev := range events {
			a.logger.Info("强制动作回放",
				zap.String("type", ev.Type),
				zap.Time("timestamp", ev.Timestamp),
				zap.String("symbol", ev.Symbol),
				zap.String("detail", ev.Detail),
			)
		}
	}
}

func (a *App) loadData() (*datafeed.Feed, *datafeed.HotlistTable, *datafeed.ThemeTable, error) {
	bars, err := datafeed.LoadAllBars(a.cfg.Data.BarsDir, a.cfg.Data.Symbols, a.logger.Named("datafeed"))
	if err != nil {
		return nil, nil, nil, err
	}

	feed, err := datafeed.NewFeed(bars)
	if err != nil {
		return nil, nil, nil, err
	}

	var hotlist *datafeed.HotlistTable
	if a.cfg.Data.HotlistCSV != "" {
		hotlist, err = datafeed.LoadHotlist(a.cfg.Data.HotlistCSV, a.logger.Named("datafeed"))
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		a.logger.Warn("未配置人气榜文件，过滤链将剔除所有候选")
	}

	var themes *datafeed.ThemeTable
	if a.cfg.Data.ThemesCSV != "" {
		themes, err = datafeed.LoadThemes(a.cfg.Data.ThemesCSV, a.logger.Named("datafeed"))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	a.logger.Info("行情数据加载完成",
		zap.Int("symbols", len(bars)),
		zap.Int("minutes", feed.Len()),
	)

	return feed, hotlist, themes, nil
}

func (a *App) buildScorer(ctx context.Context) (strategy.Scorer, error) {
	switch a.cfg.Scorer.Type {
	case config.ScorerMomentum, "":
		return strategy.NewMomentumScorer(a.logger.Named("scorer")), nil
	case config.ScorerOpenAI:
		return ai.NewClient(a.cfg.Scorer.OpenAI, a.logger.Named("scorer"))
	case config.ScorerRemote:
		client, err := signal.NewClient(a.cfg.Scorer.Remote, a.logger.Named("scorer"))
		if err != nil {
			return nil, err
		}
		if err := client.Health(ctx); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("不支持的打分器类型: %s", a.cfg.Scorer.Type)
	}
}
