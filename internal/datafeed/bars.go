package datafeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// 本地缓存K线文件的列顺序。
var barColumns = []string{"datetime", "open", "high", "low", "close", "volume", "amount"}

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// LoadBars 读取 <barsDir>/<symbol>.csv 并返回按时间升序的K线序列。
// 同一标的出现乱序或重复时间戳视为数据损坏，直接报错终止。
func LoadBars(barsDir, symbol string) ([]Bar, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	fp := filepath.Join(barsDir, sym+".csv")
	f, err := os.Open(fp)
	if err != nil {
		return nil, fmt.Errorf("打开K线文件 %q 失败: %w", fp, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(barColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取K线表头失败 (%s): %w", fp, err)
	}
	for i, col := range barColumns {
		if header[i] != col {
			return nil, fmt.Errorf("K线文件 %q 列不匹配: 期望 %v, 实际 %v", fp, barColumns, header)
		}
	}

	var bars []Bar
	line := 1
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			return nil, fmt.Errorf("读取K线记录失败 (%s:%d): %w", fp, line, readErr)
		}

		ts, parseErr := parseBarTime(record[0])
		if parseErr != nil {
			return nil, fmt.Errorf("解析K线时间失败 (%s:%d): %w", fp, line, parseErr)
		}

		values := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, convErr := strconv.ParseFloat(record[i+1], 64)
			if convErr != nil {
				return nil, fmt.Errorf("解析K线数值失败 (%s:%d 列 %s): %w", fp, line, barColumns[i+1], convErr)
			}
			values[i] = v
		}

		if n := len(bars); n > 0 && !ts.After(bars[n-1].Timestamp) {
			return nil, fmt.Errorf("K线时间戳乱序或重复 (%s:%d): %s 不晚于 %s",
				fp, line, ts.Format(time.RFC3339), bars[n-1].Timestamp.Format(time.RFC3339))
		}

		bars = append(bars, Bar{
			Symbol:    sym,
			Timestamp: ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
			Amount:    values[5],
		})
	}

	return bars, nil
}

// LoadAllBars 加载全部配置标的的K线，缺失文件的标的跳过并告警。
func LoadAllBars(barsDir string, symbols []string, logger *zap.Logger) (map[string][]Bar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	result := make(map[string][]Bar, len(symbols))
	for _, symbol := range symbols {
		bars, err := LoadBars(barsDir, symbol)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("标的缺少K线文件，跳过", zap.String("symbol", symbol))
				continue
			}
			return nil, err
		}
		if len(bars) == 0 {
			logger.Warn("标的K线为空，跳过", zap.String("symbol", symbol))
			continue
		}
		result[bars[0].Symbol] = bars
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("目录 %q 下没有任何可用K线", barsDir)
	}

	return result, nil
}

func parseBarTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range barTimeLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
