package datafeed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HotlistTable 按交易日索引人气榜数据，rank=1 表示关注度最高。
type HotlistTable struct {
	byDate map[string]map[string]int
}

// NewHotlistTable 构造空表，供程序内注入或测试使用。
func NewHotlistTable() *HotlistTable {
	return &HotlistTable{byDate: make(map[string]map[string]int)}
}

// Set 写入某交易日单个标的的榜单名次。
func (t *HotlistTable) Set(day time.Time, symbol string, rank int) {
	key := day.Format("2006-01-02")
	if t.byDate[key] == nil {
		t.byDate[key] = make(map[string]int)
	}
	t.byDate[key][symbol] = rank
}

// LoadHotlist 读取 (date,symbol,rank) 格式的人气榜CSV。
// rank 解析失败的行丢弃并告警，属于数据质量问题而非致命错误。
func LoadHotlist(path string, logger *zap.Logger) (*HotlistTable, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开人气榜文件 %q 失败: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取人气榜表头失败: %w", err)
	}
	if header[0] != "date" || header[1] != "symbol" || header[2] != "rank" {
		return nil, fmt.Errorf("人气榜文件 %q 列不匹配: 期望 [date symbol rank], 实际 %v", path, header)
	}

	table := &HotlistTable{byDate: make(map[string]map[string]int)}
	line := 1
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			return nil, fmt.Errorf("读取人气榜记录失败 (%s:%d): %w", path, line, readErr)
		}

		day, parseErr := time.Parse("2006-01-02", record[0])
		if parseErr != nil {
			logger.Warn("人气榜日期解析失败，丢弃该行",
				zap.String("path", path), zap.Int("line", line), zap.Error(parseErr))
			continue
		}

		sym, symErr := NormalizeSymbol(record[1])
		if symErr != nil {
			logger.Warn("人气榜标的代码非法，丢弃该行",
				zap.String("path", path), zap.Int("line", line), zap.Error(symErr))
			continue
		}

		rank, rankErr := strconv.Atoi(record[2])
		if rankErr != nil || rank < 1 {
			logger.Warn("人气榜排名非法，丢弃该行",
				zap.String("path", path), zap.Int("line", line), zap.String("rank", record[2]))
			continue
		}

		key := day.Format("2006-01-02")
		if table.byDate[key] == nil {
			table.byDate[key] = make(map[string]int)
		}
		table.byDate[key][sym] = rank
	}

	return table, nil
}

// Lookup 返回指定交易日的 symbol -> rank 映射；无数据时返回 nil，下游按失效关闭处理。
func (t *HotlistTable) Lookup(day time.Time) map[string]int {
	if t == nil {
		return nil
	}
	return t.byDate[day.Format("2006-01-02")]
}
