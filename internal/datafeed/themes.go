package datafeed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// ThemeTable 保存静态或低频更新的题材权重，1.0 为中性。
type ThemeTable struct {
	boosts map[string]float64
}

// LoadThemes 读取 (symbol,theme_boost) 格式的题材权重CSV。
// boost 缺失或解析失败时取中性值 1.0。
func LoadThemes(path string, logger *zap.Logger) (*ThemeTable, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开题材权重文件 %q 失败: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取题材权重表头失败: %w", err)
	}
	if header[0] != "symbol" || header[1] != "theme_boost" {
		return nil, fmt.Errorf("题材权重文件 %q 列不匹配: 期望 [symbol theme_boost], 实际 %v", path, header)
	}

	table := &ThemeTable{boosts: make(map[string]float64)}
	line := 1
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			return nil, fmt.Errorf("读取题材权重记录失败 (%s:%d): %w", path, line, readErr)
		}

		sym, symErr := NormalizeSymbol(record[0])
		if symErr != nil {
			logger.Warn("题材权重标的代码非法，丢弃该行",
				zap.String("path", path), zap.Int("line", line), zap.Error(symErr))
			continue
		}

		boost, boostErr := strconv.ParseFloat(record[1], 64)
		if boostErr != nil || boost < 0 {
			logger.Warn("题材权重非法，取中性值",
				zap.String("path", path), zap.Int("line", line), zap.String("boost", record[1]))
			boost = 1.0
		}

		table.boosts[sym] = boost
	}

	return table, nil
}

// Boost 返回标的的题材权重，未收录时返回中性值 1.0。
func (t *ThemeTable) Boost(symbol string) float64 {
	if t == nil {
		return 1.0
	}
	if boost, ok := t.boosts[symbol]; ok {
		return boost
	}
	return 1.0
}
