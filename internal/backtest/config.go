package backtest

// Config 定义撮合模拟参数。费率均为成交金额的比例。
type Config struct {
	InitialCash    float64 // 初始资金
	CommissionRate float64 // 双边佣金率
	MinCommission  float64 // 单笔最低佣金
	StampDuty      float64 // 卖出印花税率
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = 1_000_000
	}
	if cfg.CommissionRate < 0 {
		cfg.CommissionRate = 0
	}
	if cfg.MinCommission < 0 {
		cfg.MinCommission = 0
	}
	if cfg.StampDuty < 0 {
		cfg.StampDuty = 0
	}
	return cfg
}
