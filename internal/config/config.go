package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "quantopen"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("data.bars_dir", "data/bars")
	v.SetDefault("data.hotlist_csv", "data/raw/hotlist.csv")
	v.SetDefault("data.themes_csv", "configs/themes.csv")

	v.SetDefault("strategy.topk", 5)
	v.SetDefault("strategy.max_weight_per_symbol", 0.10)
	v.SetDefault("strategy.hot_topn", 50)
	v.SetDefault("strategy.min_amount_1m", 2_000_000.0)
	v.SetDefault("strategy.limit_up_threshold", 0.095)
	v.SetDefault("strategy.rebalance_every_n_minutes", 5)
	v.SetDefault("strategy.hold_minutes", 60)
	v.SetDefault("strategy.max_account_drawdown", 0.08)
	v.SetDefault("strategy.risk_off_weight", 0.0)

	v.SetDefault("scorer.type", ScorerMomentum)
	v.SetDefault("scorer.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("scorer.openai.model", "gpt-4.1")
	v.SetDefault("scorer.openai.timeout", "15s")
	v.SetDefault("scorer.remote.base_url", "http://127.0.0.1:8000/v1")
	v.SetDefault("scorer.remote.timeout", "10s")

	v.SetDefault("backtest.initial_cash", 1_000_000.0)
	v.SetDefault("backtest.commission_rate", 0.0003)
	v.SetDefault("backtest.min_commission", 5.0)
	v.SetDefault("backtest.stamp_duty", 0.001)

	v.SetDefault("database.path", "data/quantopen.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
