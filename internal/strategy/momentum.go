package strategy

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"quantopen/internal/datafeed"
	"quantopen/internal/feature"
)

// MomentumScorer 是默认打分器：短周期动量乘以量能倾斜，再乘题材权重。
// 人气榜排名越靠前加成越大，榜外不加成（是否剔除由过滤链决定）。
type MomentumScorer struct {
	logger *zap.Logger
}

// NewMomentumScorer 创建动量打分器。
func NewMomentumScorer(logger *zap.Logger) *MomentumScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MomentumScorer{logger: logger}
}

// Score 实现 Scorer。
func (s *MomentumScorer) Score(ctx context.Context, ts time.Time, snap feature.Snapshot, hot map[string]int, themes *datafeed.ThemeTable) (map[string]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	scores := make(map[string]float64, len(snap.Rows))
	for symbol, row := range snap.Rows {
		score := momentum(row)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			s.logger.Warn("动量分数非有限值，丢弃",
				zap.String("symbol", symbol), zap.Time("ts", ts))
			continue
		}

		score *= themes.Boost(symbol)
		score *= hotBoost(hot, symbol)
		scores[symbol] = score
	}

	return scores, nil
}

// 动量主项：5分钟收益为主、1分钟收益为辅，量能放大时倾斜加强。
func momentum(row feature.Row) float64 {
	base := row.Ret5 + 0.5*row.Ret1

	tilt := 1.0
	if row.VolumeRatio > 1 {
		tilt += math.Min(row.VolumeRatio-1, 1.0) * 0.5
	}

	return base * tilt
}

// 榜内排名加成：rank=1 加成最大，随排名衰减趋近1。
func hotBoost(hot map[string]int, symbol string) float64 {
	if hot == nil {
		return 1.0
	}
	rank, ok := hot[symbol]
	if !ok || rank < 1 {
		return 1.0
	}
	return 1.0 + 0.5/float64(rank)
}
