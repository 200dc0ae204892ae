package strategy

import (
	"testing"
)

func TestBuildTargetWeights_TopKAndCap(t *testing.T) {
	cfg := testStrategyConfig() // topk=3, max_weight=0.10

	candidates := []Candidate{
		{Symbol: "600000", Score: 5},
		{Symbol: "000001", Score: 4},
		{Symbol: "000002", Score: 3},
		{Symbol: "000003", Score: 2},
		{Symbol: "000004", Score: 1},
	}

	targets := BuildTargetWeights(candidates, cfg)
	if len(targets) != 3 {
		t.Fatalf("入选数量应不超过 topk: %v", targets)
	}

	// 1/topk = 0.333 超过单票上限，上限先于等权生效
	for symbol, weight := range targets {
		if weight != 0.10 {
			t.Errorf("%s 权重应为0.10, 实际 %f", symbol, weight)
		}
	}
	if _, ok := targets["000003"]; ok {
		t.Errorf("第4名不应入选")
	}
}

func TestBuildTargetWeights_FewerThanTopK(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.TopK = 20
	cfg.MaxWeightPerSymbol = 0.10

	candidates := []Candidate{
		{Symbol: "600000", Score: 2},
		{Symbol: "000001", Score: 1},
	}

	targets := BuildTargetWeights(candidates, cfg)
	if len(targets) != 2 {
		t.Fatalf("候选不足时不补位: %v", targets)
	}
	// 1/topk = 0.05 小于上限，等权生效
	for symbol, weight := range targets {
		if weight != 0.05 {
			t.Errorf("%s 权重应为0.05, 实际 %f", symbol, weight)
		}
	}
}

func TestBuildTargetWeights_EmptyCandidates(t *testing.T) {
	targets := BuildTargetWeights(nil, testStrategyConfig())
	if len(targets) != 0 {
		t.Fatalf("空候选集应产出空权重: %v", targets)
	}
}
