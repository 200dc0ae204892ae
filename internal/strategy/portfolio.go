package strategy

import "quantopen/internal/config"

// BuildTargetWeights 将过滤排序后的候选集转换为目标权重。
// 取前 topk 名（不足不补），每只分配 min(1/topk, max_weight_per_symbol)，
// 权重各自封顶，不归一化；上限生效时总仓位可以不足100%，引擎从不强制满仓。
// 未入选的标的隐含目标权重为0。
func BuildTargetWeights(candidates []Candidate, cfg config.StrategyConfig) map[string]float64 {
	if len(candidates) == 0 {
		return map[string]float64{}
	}

	pick := candidates
	if len(pick) > cfg.TopK {
		pick = pick[:cfg.TopK]
	}

	weight := 1.0 / float64(cfg.TopK)
	if cfg.MaxWeightPerSymbol < weight {
		weight = cfg.MaxWeightPerSymbol
	}

	targets := make(map[string]float64, len(pick))
	for _, c := range pick {
		targets[c.Symbol] = weight
	}

	return targets
}
