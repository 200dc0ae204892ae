package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ScoreSet 表示大模型返回的截面打分。
type ScoreSet struct {
	Scores    map[string]float64 `json:"scores"`
	Reasoning string             `json:"reasoning"`
}

// Validate 校验打分字段合法性。分值必须有限，代码不能为空。
func (s ScoreSet) Validate() error {
	if len(s.Scores) == 0 {
		return errors.New("scores 不能为空")
	}
	for symbol, score := range s.Scores {
		if strings.TrimSpace(symbol) == "" {
			return errors.New("scores 中存在空标的代码")
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return fmt.Errorf("标的 %s 的分值非法: %f", symbol, score)
		}
	}
	return nil
}

func parseScoreSet(content string) (ScoreSet, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return ScoreSet{}, err
	}

	var set ScoreSet
	if err = json.Unmarshal(payload, &set); err != nil {
		return ScoreSet{}, fmt.Errorf("解析打分JSON失败: %w", err)
	}

	return set, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
