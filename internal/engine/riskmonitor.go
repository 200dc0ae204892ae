package engine

import "fmt"

// RiskMonitor 跟踪账户权益峰值并判断回撤熔断。
// 峰值只升不降，熔断一旦触发在峰值不变的情况下持续生效。
type RiskMonitor struct {
	current    float64
	peak       float64
	hasHistory bool
}

// NewRiskMonitor 创建无历史的风控监视器。有持仓结算之前不会触发熔断。
func NewRiskMonitor() *RiskMonitor {
	return &RiskMonitor{}
}

// Update 在当期成交结算后写入最新权益，并抬升峰值。
func (r *RiskMonitor) Update(equity float64) {
	r.current = equity
	if !r.hasHistory || equity > r.peak {
		r.peak = equity
	}
	r.hasHistory = true
}

// Breached 判断当前回撤是否达到阈值：(peak-current)/peak >= maxDD。
// 无权益历史时恒为 false。
func (r *RiskMonitor) Breached(maxDD float64) bool {
	if !r.hasHistory {
		return false
	}
	return (r.peak-r.current)/r.peak >= maxDD
}

// Validate 校验内部状态。有历史但峰值非正说明上游权益计算已经出错。
func (r *RiskMonitor) Validate() error {
	if r.hasHistory && r.peak <= 0 {
		return fmt.Errorf("engine: 账户峰值权益非正(%.4f)，状态已损坏", r.peak)
	}
	return nil
}

// Equity 返回最近一次写入的权益。
func (r *RiskMonitor) Equity() float64 { return r.current }

// Peak 返回历史峰值权益。
func (r *RiskMonitor) Peak() float64 { return r.peak }

// Drawdown 返回当前相对峰值的回撤比例。
func (r *RiskMonitor) Drawdown() float64 {
	if !r.hasHistory || r.peak <= 0 {
		return 0
	}
	return (r.peak - r.current) / r.peak
}
