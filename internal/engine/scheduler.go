package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/config"
	"quantopen/internal/datafeed"
	"quantopen/internal/feature"
	"quantopen/internal/strategy"
)

// StepEvent 描述某分钟内调度器作出的动作，供监控侧落库。
type StepEvent struct {
	Type      string
	Timestamp time.Time
	Symbol    string
	Detail    string
}

const (
	EventRebalance    = "rebalance"
	EventTimeoutClose = "timeout_close"
	EventRiskOff      = "risk_off"
)

// Scheduler 是每分钟 tick 的驱动者，按固定优先级串联
// 风控检查、调仓节奏、组合构建与持仓时限四个环节。
// 非并发安全，调用方需逐 tick 串行驱动。
type Scheduler struct {
	cfg       config.StrategyConfig
	scorer    strategy.Scorer
	filters   *strategy.FilterChain
	extractor *feature.Extractor
	hotlist   *datafeed.HotlistTable
	themes    *datafeed.ThemeTable
	ledger    *Ledger
	risk      *RiskMonitor
	logger    *zap.Logger

	tickIndex   int
	lastTargets map[string]float64
	events      []StepEvent
}

// NewScheduler 组装调度器。cfg 必须已通过启动期校验。
func NewScheduler(
	cfg config.StrategyConfig,
	scorer strategy.Scorer,
	filters *strategy.FilterChain,
	extractor *feature.Extractor,
	hotlist *datafeed.HotlistTable,
	themes *datafeed.ThemeTable,
	ledger *Ledger,
	risk *RiskMonitor,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		scorer:      scorer,
		filters:     filters,
		extractor:   extractor,
		hotlist:     hotlist,
		themes:      themes,
		ledger:      ledger,
		risk:        risk,
		logger:      logger,
		lastTargets: make(map[string]float64),
	}
}

// Ledger 暴露内部账本，供回测引擎和测试读取持仓状态。
func (s *Scheduler) Ledger() *Ledger { return s.ledger }

// Risk 暴露风控监视器，回测引擎在每根 bar 结算后写入权益。
func (s *Scheduler) Risk() *RiskMonitor { return s.risk }

// DrainEvents 取走本步累积的事件并清空缓冲。
func (s *Scheduler) DrainEvents() []StepEvent {
	events := s.events
	s.events = nil
	return events
}

// Step 处理一个分钟 tick，返回全量目标权重。
// 各环节严格按以下次序执行，前序结果决定后序是否运行：
//  1. 特征提取（推进内部时钟）
//  2. 风控检查：熔断时所有标的统一降至避险权重，跳过 3~5
//  3. 节奏门：tickIndex % N == 0 才允许调仓
//  4. 调仓：打分 → 过滤 → 构建目标权重，未入选的在持标的平仓
//  5. 持仓时限：不论是否调仓，每根 bar 都检查
//  6. 产出目标权重
func (s *Scheduler) Step(ctx context.Context, tick datafeed.Tick) (map[string]float64, error) {
	snap, err := s.extractor.Extract(ctx, tick)
	if err != nil {
		return nil, fmt.Errorf("engine: 特征提取失败: %w", err)
	}

	defer func() { s.tickIndex++ }()

	if err := s.risk.Validate(); err != nil {
		return nil, err
	}
	if s.risk.Breached(s.cfg.MaxAccountDrawdown) {
		return s.stepRiskOff(tick), nil
	}

	targets := make(map[string]float64, len(s.lastTargets))
	for symbol, weight := range s.lastTargets {
		if weight > 0 {
			targets[symbol] = weight
		}
	}

	if s.tickIndex%s.cfg.RebalanceEveryNMinutes == 0 {
		targets, err = s.rebalance(ctx, tick, snap)
		if err != nil {
			return nil, err
		}
	}

	s.enforceTimeouts(tick.Timestamp, targets)

	s.lastTargets = targets
	return targets, nil
}

// stepRiskOff 把所有标的统一压到避险权重。
// 覆盖范围取当期行情、在持标的与上期目标的并集：在持标的即使本分钟
// 缺K线也要收到明确权重，否则成交侧的仓位会被遗留。
// 风控动作优先于时限检查，同一根 bar 上不再重复平仓。
func (s *Scheduler) stepRiskOff(tick datafeed.Tick) map[string]float64 {
	universe := make(map[string]struct{}, len(tick.Bars)+s.ledger.Len())
	for symbol := range tick.Bars {
		universe[symbol] = struct{}{}
	}
	for _, symbol := range s.ledger.Held() {
		universe[symbol] = struct{}{}
	}
	for symbol := range s.lastTargets {
		universe[symbol] = struct{}{}
	}

	targets := make(map[string]float64, len(universe))
	for symbol := range universe {
		targets[symbol] = s.cfg.RiskOffWeight
	}

	// 权重与账本保持一一对应：正权重一律登记，零权重全部平仓。
	if s.cfg.RiskOffWeight > 0 {
		for symbol := range universe {
			s.ledger.OpenOrRefresh(symbol, tick.Timestamp, s.cfg.RiskOffWeight)
		}
	} else {
		for _, symbol := range s.ledger.Held() {
			s.ledger.Close(symbol)
		}
	}
	s.logger.Warn("触发账户回撤熔断，全仓切换避险权重",
		zap.Time("timestamp", tick.Timestamp),
		zap.Float64("drawdown", s.risk.Drawdown()),
		zap.Float64("risk_off_weight", s.cfg.RiskOffWeight))
	s.events = append(s.events, StepEvent{
		Type:      EventRiskOff,
		Timestamp: tick.Timestamp,
		Detail:    fmt.Sprintf("drawdown=%.4f weight=%.4f", s.risk.Drawdown(), s.cfg.RiskOffWeight),
	})

	s.lastTargets = targets
	return targets
}

// rebalance 执行一次完整的选股调仓，返回新的目标权重。
func (s *Scheduler) rebalance(ctx context.Context, tick datafeed.Tick, snap feature.Snapshot) (map[string]float64, error) {
	hot := s.hotlist.Lookup(tick.Timestamp)
	if hot == nil {
		// 热榜缺失时过滤链兜底剔除全部候选，这里只提示数据质量问题。
		s.logger.Warn("当日热榜数据缺失，过滤链将剔除所有候选",
			zap.Time("timestamp", tick.Timestamp))
	}

	scores, err := s.scorer.Score(ctx, tick.Timestamp, snap, hot, s.themes)
	if err != nil {
		return nil, fmt.Errorf("engine: 打分失败: %w", err)
	}

	candidates := s.filters.Apply(scores, snap.Rows, hot)
	targets := strategy.BuildTargetWeights(candidates, s.cfg)

	for symbol, weight := range targets {
		s.ledger.OpenOrRefresh(symbol, tick.Timestamp, weight)
	}
	// 未入选的在持标的按正常调仓路径退出。
	for _, symbol := range s.ledger.Held() {
		if _, ok := targets[symbol]; ok {
			continue
		}
		s.ledger.Close(symbol)
		targets[symbol] = 0
	}

	s.logger.Info("完成调仓",
		zap.Time("timestamp", tick.Timestamp),
		zap.Int("candidates", len(candidates)),
		zap.Int("positions", s.ledger.Len()))
	s.events = append(s.events, StepEvent{
		Type:      EventRebalance,
		Timestamp: tick.Timestamp,
		Detail:    fmt.Sprintf("candidates=%d positions=%d", len(candidates), s.ledger.Len()),
	})
	return targets, nil
}

// enforceTimeouts 对所有在持标的做持有时限检查，到期的强制平仓。
func (s *Scheduler) enforceTimeouts(ts time.Time, targets map[string]float64) {
	for _, symbol := range s.ledger.Held() {
		if !s.ledger.IsTimedOut(symbol, ts, s.cfg.HoldMinutes) {
			continue
		}
		s.ledger.Close(symbol)
		targets[symbol] = 0
		s.logger.Info("持仓到达时限，强制平仓",
			zap.Time("timestamp", ts),
			zap.String("symbol", symbol),
			zap.Int("hold_minutes", s.cfg.HoldMinutes))
		s.events = append(s.events, StepEvent{
			Type:      EventTimeoutClose,
			Timestamp: ts,
			Symbol:    symbol,
			Detail:    fmt.Sprintf("hold_minutes=%d", s.cfg.HoldMinutes),
		})
	}
}
