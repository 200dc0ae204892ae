package strategy

import (
	"context"
	"time"

	"quantopen/internal/datafeed"
	"quantopen/internal/feature"
)

// Scorer 是核心打分能力的接口。任何实现都可替换，
// 引擎只依赖该接口，不感知具体打分逻辑。
// 对相同时间戳与输入，实现必须是纯函数，否则回测不可复现。
type Scorer interface {
	// Score 返回 symbol -> 分数 的映射，分数越大越强。
	// 某标的缺失分数按不可交易处理；非有限值由过滤链剔除。
	Score(ctx context.Context, ts time.Time, snap feature.Snapshot, hot map[string]int, themes *datafeed.ThemeTable) (map[string]float64, error)
}

// Candidate 为通过过滤后的候选标的，仍携带分数。
type Candidate struct {
	Symbol string
	Score  float64
}
