package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// 可用的打分器类型。
const (
	ScorerMomentum = "momentum"
	ScorerOpenAI   = "openai"
	ScorerRemote   = "remote"
)

// Config 聚合了一次回测运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Data     DataConfig     `mapstructure:"data"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Scorer   ScorerConfig   `mapstructure:"scorer"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// DataConfig 描述本地行情缓存与情绪数据文件位置。
type DataConfig struct {
	BarsDir    string   `mapstructure:"bars_dir"`
	HotlistCSV string   `mapstructure:"hotlist_csv"`
	ThemesCSV  string   `mapstructure:"themes_csv"`
	Symbols    []string `mapstructure:"symbols"`
}

// StrategyConfig 为策略执行引擎的不可变参数快照。
// 权重各自封顶，不做归一化；topk*max_weight_per_symbol 允许超过 1，由调用方负责。
type StrategyConfig struct {
	TopK                   int     `mapstructure:"topk"`
	MaxWeightPerSymbol     float64 `mapstructure:"max_weight_per_symbol"`
	HotTopN                int     `mapstructure:"hot_topn"`
	MinAmount1m            float64 `mapstructure:"min_amount_1m"`
	LimitUpThreshold       float64 `mapstructure:"limit_up_threshold"`
	RebalanceEveryNMinutes int     `mapstructure:"rebalance_every_n_minutes"`
	HoldMinutes            int     `mapstructure:"hold_minutes"`
	MaxAccountDrawdown     float64 `mapstructure:"max_account_drawdown"`
	RiskOffWeight          float64 `mapstructure:"risk_off_weight"`
}

// ScorerConfig 选择并配置打分器实现。
type ScorerConfig struct {
	Type   string       `mapstructure:"type"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Remote RemoteConfig `mapstructure:"remote"`
}

// OpenAIConfig 描述大模型打分器的调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RemoteConfig 描述云端信号服务的连接参数。
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BacktestConfig 控制撮合模拟与成本模型。
type BacktestConfig struct {
	InitialCash    float64 `mapstructure:"initial_cash"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	MinCommission  float64 `mapstructure:"min_commission"`
	StampDuty      float64 `mapstructure:"stamp_duty"`
}

// DatabaseConfig 管理结果数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行启动期校验，任何违例都在处理首根K线之前失败。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Data.BarsDir == "" {
		err = multierr.Append(err, errors.New("data.bars_dir 不能为空"))
	}
	if len(c.Data.Symbols) == 0 {
		err = multierr.Append(err, errors.New("data.symbols 至少包含一个标的"))
	}

	err = multierr.Append(err, c.Strategy.validate())

	switch c.Scorer.Type {
	case ScorerMomentum:
	case ScorerOpenAI:
		if c.Scorer.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("scorer.openai.api_key 不能为空"))
		}
		if c.Scorer.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("scorer.openai.model 不能为空"))
		}
		if c.Scorer.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("scorer.openai.timeout 必须大于0"))
		}
	case ScorerRemote:
		if c.Scorer.Remote.BaseURL == "" {
			err = multierr.Append(err, errors.New("scorer.remote.base_url 不能为空"))
		}
		if c.Scorer.Remote.APIKey == "" {
			err = multierr.Append(err, errors.New("scorer.remote.api_key 不能为空"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("scorer.type 取值非法: %q", c.Scorer.Type))
	}

	if c.Backtest.InitialCash <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_cash 必须大于0"))
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.CommissionRate > 0.01 {
		err = multierr.Append(err, errors.New("backtest.commission_rate 应位于[0,0.01]"))
	}
	if c.Backtest.MinCommission < 0 {
		err = multierr.Append(err, errors.New("backtest.min_commission 不能为负"))
	}
	if c.Backtest.StampDuty < 0 || c.Backtest.StampDuty > 0.01 {
		err = multierr.Append(err, errors.New("backtest.stamp_duty 应位于[0,0.01]"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (s StrategyConfig) validate() error {
	var err error

	if s.TopK < 1 {
		err = multierr.Append(err, errors.New("strategy.topk 必须大于等于1"))
	}
	if s.MaxWeightPerSymbol <= 0 || s.MaxWeightPerSymbol > 1 {
		err = multierr.Append(err, errors.New("strategy.max_weight_per_symbol 必须位于(0,1]"))
	}
	if s.HotTopN < 0 {
		err = multierr.Append(err, errors.New("strategy.hot_topn 不能为负"))
	}
	if s.MinAmount1m < 0 {
		err = multierr.Append(err, errors.New("strategy.min_amount_1m 不能为负"))
	}
	if s.LimitUpThreshold < 0 {
		err = multierr.Append(err, errors.New("strategy.limit_up_threshold 不能为负"))
	}
	if s.RebalanceEveryNMinutes < 1 {
		err = multierr.Append(err, errors.New("strategy.rebalance_every_n_minutes 必须大于等于1"))
	}
	if s.HoldMinutes < 1 {
		err = multierr.Append(err, errors.New("strategy.hold_minutes 必须大于等于1"))
	}
	if s.MaxAccountDrawdown < 0 || s.MaxAccountDrawdown > 1 {
		err = multierr.Append(err, errors.New("strategy.max_account_drawdown 必须位于[0,1]"))
	}
	if s.RiskOffWeight < 0 || s.RiskOffWeight > s.MaxWeightPerSymbol {
		err = multierr.Append(err, errors.New("strategy.risk_off_weight 必须位于[0,max_weight_per_symbol]"))
	}

	return err
}
