package strategy

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"quantopen/internal/config"
	"quantopen/internal/feature"
)

// FilterChain 将若干布尔掩码按与关系叠加，产出可选候选集。
// 各掩码相互独立，先后顺序只影响日志可读性，不影响结果。
type FilterChain struct {
	cfg    config.StrategyConfig
	logger *zap.Logger
}

// NewFilterChain 创建过滤链。
func NewFilterChain(cfg config.StrategyConfig, logger *zap.Logger) *FilterChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterChain{cfg: cfg, logger: logger}
}

// Apply 返回通过全部掩码的候选，按分数降序排列，
// 同分按标的代码升序，保证回测可复现。
// 候选集为空是合法结果，表示本分钟不持仓。
func (f *FilterChain) Apply(scores map[string]float64, rows map[string]feature.Row, hot map[string]int) []Candidate {
	candidates := make([]Candidate, 0, len(scores))

	for symbol, score := range scores {
		row, ok := rows[symbol]
		if !ok {
			continue
		}
		if !f.hotRankOK(symbol, hot) {
			continue
		}
		if !f.limitUpOK(row) {
			continue
		}
		if !f.liquidityOK(row) {
			continue
		}
		if !scoreOK(score) {
			continue
		}
		candidates = append(candidates, Candidate{Symbol: symbol, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	return candidates
}

// 人气榜掩码：当日排名进入前 hot_topn 方可入选；不在榜上按失效关闭处理。
func (f *FilterChain) hotRankOK(symbol string, hot map[string]int) bool {
	if hot == nil {
		return false
	}
	rank, ok := hot[symbol]
	if !ok {
		return false
	}
	return rank <= f.cfg.HotTopN
}

// 近似涨停掩码：用前收盘估计涨幅；当日首根K线没有判断依据，放行。
func (f *FilterChain) limitUpOK(row feature.Row) bool {
	if !row.HasPrevClose || row.PrevClose <= 0 {
		return true
	}
	pct := row.Close/row.PrevClose - 1
	return pct < f.cfg.LimitUpThreshold
}

// 流动性掩码：本分钟成交额达到阈值。
func (f *FilterChain) liquidityOK(row feature.Row) bool {
	return row.Amount >= f.cfg.MinAmount1m
}

// 分数有效性：严格为正的有限值才可交易。
func scoreOK(score float64) bool {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return false
	}
	return score > 0
}
