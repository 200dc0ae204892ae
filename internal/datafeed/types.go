package datafeed

import (
	"fmt"
	"strings"
	"time"
)

// Bar 代表某个标的一分钟的 OHLCV 与成交额记录，入库后不可变。
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Amount    float64
}

// Tick 聚合同一分钟内全部标的的K线，是引擎处理的最小单元。
type Tick struct {
	Timestamp time.Time
	Bars      map[string]Bar
}

// NormalizeSymbol 接受 "600000" 或 "sh600000"/"sz000001" 风格代码，统一为6位数字。
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, "sh")
	s = strings.TrimPrefix(s, "sz")
	if len(s) > 6 {
		return "", fmt.Errorf("非法标的代码: %q", symbol)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("非法标的代码: %q", symbol)
		}
	}
	if s == "" {
		return "", fmt.Errorf("非法标的代码: %q", symbol)
	}
	for len(s) < 6 {
		s = "0" + s
	}
	return s, nil
}
