package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"quantopen/internal/config"
	"quantopen/internal/datafeed"
	"quantopen/internal/feature"
)

// Client 封装 OpenAI 调用逻辑，实现截面打分。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建 AI 打分客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	sdkCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkCfg),
	}, nil
}

// Score 请求模型对当前截面打分。
// 未在截面中出现的标的代码会被丢弃并告警，其余分值原样透传，
// 过滤链负责剔除非正分与不满足硬性条件的标的。
func (c *Client) Score(ctx context.Context, ts time.Time, snap feature.Snapshot, hot map[string]int, themes *datafeed.ThemeTable) (map[string]float64, error) {
	if c.cfg.Model == "" {
		return nil, errors.New("openai model 不能为空")
	}

	prompt, err := BuildPrompt(ts, snap.Rows, hot)
	if err != nil {
		return nil, err
	}

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return nil, fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return nil, errors.New("OpenAI 返回内容为空")
	}

	set, err := parseScoreSet(rawContent)
	if err != nil {
		c.logger.Error("解析模型打分失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return nil, err
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(set.Scores))
	for symbol, score := range set.Scores {
		if _, ok := snap.Rows[symbol]; !ok {
			c.logger.Warn("模型打分包含截面外标的，已丢弃", zap.String("symbol", symbol))
			continue
		}
		scores[symbol] = score
	}

	c.logger.Info("AI 打分生成成功",
		zap.Time("timestamp", ts),
		zap.Int("scored", len(scores)),
	)

	return scores, nil
}
