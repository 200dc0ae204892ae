package backtest

import (
	"math"
	"sort"

	"quantopen/internal/datafeed"
)

// 权重差小于该值视为未变化，不触发成交。
const weightEpsilon = 1e-9

// Simulator 以股数为单位模拟多标的账户。
// 成交发生在当根K线收盘价，买卖各计佣金，卖出另计印花税。
// 目标权重只在发生变化时执行，持仓在两次调整之间随价格自然漂移。
type Simulator struct {
	cfg Config

	cash      float64
	positions map[string]float64 // symbol -> 股数
	lastPrice map[string]float64
	applied   map[string]float64 // 最近一次实际执行的目标权重

	equityHistory   []float64
	returnHistory   []float64
	tradeCount      int
	totalCommission float64
}

// NewSimulator 创建模拟账户。
func NewSimulator(cfg Config) *Simulator {
	cfg = cfg.normalize()
	return &Simulator{
		cfg:           cfg,
		cash:          cfg.InitialCash,
		positions:     make(map[string]float64),
		lastPrice:     make(map[string]float64),
		applied:       make(map[string]float64),
		equityHistory: []float64{cfg.InitialCash},
	}
}

// UpdatePrices 吸收当根K线的收盘价。缺席标的沿用旧价。
func (s *Simulator) UpdatePrices(bars map[string]datafeed.Bar) {
	for symbol, bar := range bars {
		if bar.Close > 0 {
			s.lastPrice[symbol] = bar.Close
		}
	}
}

// Apply 按目标权重调整持仓。
// 只有权重相对上次执行发生变化的标的才会成交，股数取整。
func (s *Simulator) Apply(targets map[string]float64) {
	symbols := make([]string, 0, len(targets))
	for symbol := range targets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	equity := s.Equity()
	for _, symbol := range symbols {
		target := targets[symbol]
		if math.Abs(target-s.applied[symbol]) < weightEpsilon {
			continue
		}

		price := s.lastPrice[symbol]
		if price <= 0 {
			continue
		}

		targetShares := math.Floor(equity * target / price)
		delta := targetShares - s.positions[symbol]
		if delta > 0 {
			s.buy(symbol, delta, price)
		} else if delta < 0 {
			s.sell(symbol, -delta, price)
		}

		if target < weightEpsilon {
			delete(s.applied, symbol)
		} else {
			s.applied[symbol] = target
		}
	}
}

func (s *Simulator) buy(symbol string, shares, price float64) {
	value := shares * price
	commission := math.Max(value*s.cfg.CommissionRate, s.cfg.MinCommission)
	s.cash -= value + commission
	s.positions[symbol] += shares
	s.tradeCount++
	s.totalCommission += commission
}

func (s *Simulator) sell(symbol string, shares, price float64) {
	value := shares * price
	commission := math.Max(value*s.cfg.CommissionRate, s.cfg.MinCommission) + value*s.cfg.StampDuty
	s.cash += value - commission
	s.positions[symbol] -= shares
	if s.positions[symbol] <= 0 {
		delete(s.positions, symbol)
	}
	s.tradeCount++
	s.totalCommission += commission
}

// Record 在当根K线处理完毕后登记权益与单步收益。
func (s *Simulator) Record() {
	prev := s.equityHistory[len(s.equityHistory)-1]
	equity := s.Equity()
	s.equityHistory = append(s.equityHistory, equity)
	if prev != 0 {
		s.returnHistory = append(s.returnHistory, equity/prev-1)
	}
}

// Liquidate 按最新价清算全部持仓。仅作期末报表口径，不代表实际交易动作。
func (s *Simulator) Liquidate() {
	symbols := make([]string, 0, len(s.positions))
	for symbol := range s.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		price := s.lastPrice[symbol]
		if price <= 0 {
			continue
		}
		s.sell(symbol, s.positions[symbol], price)
		delete(s.applied, symbol)
	}
}

// Equity 返回现金与持仓市值之和。
func (s *Simulator) Equity() float64 {
	equity := s.cash
	for symbol, shares := range s.positions {
		equity += shares * s.lastPrice[symbol]
	}
	return equity
}

// Cash 返回可用现金。
func (s *Simulator) Cash() float64 { return s.cash }

// Shares 返回指定标的的持仓股数。
func (s *Simulator) Shares(symbol string) float64 { return s.positions[symbol] }

// TradeCount 返回累计成交笔数。
func (s *Simulator) TradeCount() int { return s.tradeCount }

// TotalCommission 返回累计交易成本，含佣金与印花税。
func (s *Simulator) TotalCommission() float64 { return s.totalCommission }

// EquityHistory 返回每根K线处理后的权益序列副本。
func (s *Simulator) EquityHistory() []float64 {
	return append([]float64(nil), s.equityHistory...)
}

// ReturnHistory 返回单步收益序列副本。
func (s *Simulator) ReturnHistory() []float64 {
	return append([]float64(nil), s.returnHistory...)
}
