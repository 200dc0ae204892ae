package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"quantopen/internal/feature"
)

const scoreTemplate = `
你是一个专业的A股日内量化交易员。你的任务是根据提供的分钟级截面特征，对候选标的给出做多吸引力打分。

当前时间: {{ .Timestamp }}

截面特征（按标的）：
{{ .RowsJSON }}

当日人气榜名次（rank=1 表示关注度最高，未上榜的标的不会出现）：
{{ .HotJSON }}

打分时请遵循：
1. 只考虑做多方向，分值越大代表越值得买入；
2. 结合短期动量（ret1/ret5）、均线形态（ema5/ema20）与量能（volume_ratio）；
3. 人气榜名次靠前可以适度加分，但不要只看人气；
4. 不看好的标的请给出 0 或负分，切勿勉强给正分；
5. 临近涨停（ret1 接近 9.5%）的标的追高风险大，应降低分值。

请严格输出唯一的 JSON 对象，格式如下：
{
  "scores": {"600000": 1.25, "000001": -0.3},   // 标的代码到分值的映射，必须覆盖你有观点的标的
  "reasoning": "..."                             // 简述打分依据
}

注意事项：
- 分值为任意有限实数，正分代表候选，非正分会被过滤。
- 只允许使用截面特征中出现过的标的代码。
`

var tmpl = template.Must(template.New("score").Parse(scoreTemplate))

type promptContext struct {
	Timestamp string
	RowsJSON  string
	HotJSON   string
}

// BuildPrompt 将截面特征与人气榜渲染成提示词字符串。
func BuildPrompt(ts time.Time, rows map[string]feature.Row, hot map[string]int) (string, error) {
	rowsJSON, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化截面特征失败: %w", err)
	}
	hotJSON, err := json.MarshalIndent(hot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化人气榜失败: %w", err)
	}

	ctx := promptContext{
		Timestamp: ts.Format("2006-01-02 15:04"),
		RowsJSON:  string(rowsJSON),
		HotJSON:   string(hotJSON),
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}
