package signal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"quantopen/internal/config"
	"quantopen/internal/datafeed"
	"quantopen/internal/feature"
)

// scoreRequest 为云端信号服务的打分请求体。
type scoreRequest struct {
	Timestamp string   `json:"timestamp"`
	Symbols   []string `json:"symbols"`
}

// scoreResponse 为云端信号服务的打分响应体。
type scoreResponse struct {
	Scores  map[string]float64 `json:"scores"`
	Message string             `json:"message"`
}

// Client 对接云端 alpha 信号服务，实现截面打分。
// resty 会自动从环境变量读取代理配置。
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient 创建云端信号客户端。
func NewClient(cfg config.RemoteConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote base_url 不能为空")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("remote api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("X-API-Key", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{http: http, logger: logger}, nil
}

// Health 探活。启动时调用一次，失败视为配置错误。
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/v1/health")
	if err != nil {
		return fmt.Errorf("信号服务探活失败: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("信号服务探活失败: %s", resp.Status())
	}
	return nil
}

// Score 请求云端服务对当前截面打分。
// 响应中未覆盖的标的视为无观点，不出现在结果里。
func (c *Client) Score(ctx context.Context, ts time.Time, snap feature.Snapshot, hot map[string]int, themes *datafeed.ThemeTable) (map[string]float64, error) {
	symbols := make([]string, 0, len(snap.Rows))
	for symbol := range snap.Rows {
		symbols = append(symbols, symbol)
	}

	var result scoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(scoreRequest{
			Timestamp: ts.Format(time.RFC3339),
			Symbols:   symbols,
		}).
		SetResult(&result).
		Post("/v1/scores")
	if err != nil {
		return nil, fmt.Errorf("调用信号服务失败: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("信号服务返回 %s: %s", resp.Status(), result.Message)
	}

	scores := make(map[string]float64, len(result.Scores))
	for symbol, score := range result.Scores {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("信号服务返回非法分值: %s=%f", symbol, score)
		}
		if _, ok := snap.Rows[symbol]; !ok {
			c.logger.Warn("信号服务返回截面外标的，已丢弃", zap.String("symbol", symbol))
			continue
		}
		scores[symbol] = score
	}

	c.logger.Debug("云端打分完成",
		zap.Time("timestamp", ts),
		zap.Int("scored", len(scores)))

	return scores, nil
}
