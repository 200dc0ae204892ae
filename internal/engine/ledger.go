package engine

import (
	"sort"
	"time"
)

// Position 记录一笔在持仓位。opened_at 在建仓时写入一次，
// 持有期间重复入选不会重置。
type Position struct {
	Symbol   string
	OpenedAt time.Time
	Weight   float64
}

// Ledger 维护各标的的持仓生命周期，归引擎独占，只在每分钟的处理步骤内变更。
type Ledger struct {
	positions map[string]*Position
}

// NewLedger 创建空账本。
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// OpenOrRefresh 在目标权重为正时登记或刷新持仓。
// 已持有的标的只更新权重，开仓时间保持不变。
func (l *Ledger) OpenOrRefresh(symbol string, ts time.Time, weight float64) {
	if pos, ok := l.positions[symbol]; ok {
		pos.Weight = weight
		return
	}
	l.positions[symbol] = &Position{Symbol: symbol, OpenedAt: ts, Weight: weight}
}

// IsTimedOut 判断持仓是否到达持有时限。
// 边界取闭区间：T 时刻开仓、时限60分钟，在 T+60 恰好超时。
func (l *Ledger) IsTimedOut(symbol string, ts time.Time, holdMinutes int) bool {
	pos, ok := l.positions[symbol]
	if !ok {
		return false
	}
	return ts.Sub(pos.OpenedAt) >= time.Duration(holdMinutes)*time.Minute
}

// Close 移除持仓记录。
func (l *Ledger) Close(symbol string) {
	delete(l.positions, symbol)
}

// Has 返回标的是否在持。
func (l *Ledger) Has(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// Held 返回全部在持标的，按代码升序，保证遍历顺序确定。
func (l *Ledger) Held() []string {
	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Get 返回指定标的的持仓快照。
func (l *Ledger) Get(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Len 返回在持标的数量。
func (l *Ledger) Len() int {
	return len(l.positions)
}
