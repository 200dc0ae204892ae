package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:  AppConfig{Environment: "test"},
		Data: DataConfig{BarsDir: "data/bars", Symbols: []string{"600000"}},
		Strategy: StrategyConfig{
			TopK:                   3,
			MaxWeightPerSymbol:     0.10,
			HotTopN:                50,
			MinAmount1m:            2_000_000,
			LimitUpThreshold:       0.095,
			RebalanceEveryNMinutes: 5,
			HoldMinutes:            60,
			MaxAccountDrawdown:     0.08,
			RiskOffWeight:          0,
		},
		Scorer: ScorerConfig{Type: ScorerMomentum},
		Backtest: BacktestConfig{
			InitialCash:    1_000_000,
			CommissionRate: 0.0003,
			MinCommission:  5,
			StampDuty:      0.001,
		},
		Database: DatabaseConfig{
			Path:            "data/test.db",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
	}
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidate_RejectsStrategyViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"topk为零", func(c *Config) { c.Strategy.TopK = 0 }, "strategy.topk"},
		{"权重超过1", func(c *Config) { c.Strategy.MaxWeightPerSymbol = 1.5 }, "max_weight_per_symbol"},
		{"权重为零", func(c *Config) { c.Strategy.MaxWeightPerSymbol = 0 }, "max_weight_per_symbol"},
		{"负流动性阈值", func(c *Config) { c.Strategy.MinAmount1m = -1 }, "min_amount_1m"},
		{"负涨停阈值", func(c *Config) { c.Strategy.LimitUpThreshold = -0.01 }, "limit_up_threshold"},
		{"调仓周期为零", func(c *Config) { c.Strategy.RebalanceEveryNMinutes = 0 }, "rebalance_every_n_minutes"},
		{"持仓时限为零", func(c *Config) { c.Strategy.HoldMinutes = 0 }, "hold_minutes"},
		{"回撤阈值超过1", func(c *Config) { c.Strategy.MaxAccountDrawdown = 1.2 }, "max_account_drawdown"},
		{"风控权重超过单票上限", func(c *Config) { c.Strategy.RiskOffWeight = 0.2 }, "risk_off_weight"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("期望校验失败，实际通过")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("错误信息缺少 %q: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_ScorerSelection(t *testing.T) {
	cfg := validConfig()
	cfg.Scorer.Type = "unknown"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "scorer.type") {
		t.Fatalf("期望 scorer.type 校验失败，got %v", err)
	}

	cfg = validConfig()
	cfg.Scorer.Type = ScorerOpenAI
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "scorer.openai.api_key") {
		t.Fatalf("期望缺少 api_key 校验失败，got %v", err)
	}

	cfg.Scorer.OpenAI = OpenAIConfig{APIKey: "sk-test", Model: "gpt-4.1", Timeout: 15 * time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("openai 配置齐全仍校验失败: %v", err)
	}

	cfg = validConfig()
	cfg.Scorer.Type = ScorerRemote
	cfg.Scorer.Remote = RemoteConfig{BaseURL: "http://127.0.0.1:8000/v1", APIKey: "key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("remote 配置齐全仍校验失败: %v", err)
	}
}

func TestValidate_DataAndAccount(t *testing.T) {
	cfg := validConfig()
	cfg.Data.Symbols = nil
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "data.symbols") {
		t.Fatalf("期望 data.symbols 校验失败，got %v", err)
	}

	cfg = validConfig()
	cfg.Backtest.InitialCash = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "initial_cash") {
		t.Fatalf("期望 initial_cash 校验失败，got %v", err)
	}
}
