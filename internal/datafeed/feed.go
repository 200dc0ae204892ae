package datafeed

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TickProvider 按时间顺序提供行情切片，流结束时第二个返回值为 false。
type TickProvider interface {
	Next(ctx context.Context) (Tick, bool, error)
}

// Feed 将多个标的的K线序列归并为全序的分钟流。
// 某标的在某分钟缺K线时，该分钟的 Tick 中没有它的条目，引擎对其不做决策。
type Feed struct {
	ticks []Tick
	index int
}

// NewFeed 对每个标的的K线做严格递增校验后按分钟归并。
func NewFeed(barsBySymbol map[string][]Bar) (*Feed, error) {
	tickMap := make(map[time.Time]map[string]Bar)

	for symbol, bars := range barsBySymbol {
		var prev time.Time
		for i, bar := range bars {
			// 校验按归并后的分钟粒度做：同一分钟内的两根K线
			// 会在 tickMap 中互相覆盖，必须视为重复。
			ts := bar.Timestamp.Truncate(time.Minute)
			if i > 0 && !ts.After(prev) {
				return nil, fmt.Errorf("标的 %s 的K线时间戳乱序或重复: %s 不晚于 %s",
					symbol, bar.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
			}
			prev = ts

			if tickMap[ts] == nil {
				tickMap[ts] = make(map[string]Bar)
			}
			tickMap[ts][symbol] = bar
		}
	}

	timestamps := make([]time.Time, 0, len(tickMap))
	for ts := range tickMap {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	ticks := make([]Tick, 0, len(timestamps))
	for _, ts := range timestamps {
		ticks = append(ticks, Tick{Timestamp: ts, Bars: tickMap[ts]})
	}

	return &Feed{ticks: ticks}, nil
}

// Next 返回下一分钟的行情切片。
func (f *Feed) Next(ctx context.Context) (Tick, bool, error) {
	select {
	case <-ctx.Done():
		return Tick{}, false, ctx.Err()
	default:
	}

	if f.index >= len(f.ticks) {
		return Tick{}, false, nil
	}
	tick := f.ticks[f.index]
	f.index++
	return tick, true, nil
}

// Len 返回总分钟数。
func (f *Feed) Len() int {
	return len(f.ticks)
}

// SliceProvider 以固定序列提供行情切片，测试用。
type SliceProvider struct {
	ticks []Tick
	index int
}

// NewSliceProvider 创建 SliceProvider。
func NewSliceProvider(ticks []Tick) *SliceProvider {
	return &SliceProvider{ticks: ticks}
}

// Next 实现 TickProvider。
func (p *SliceProvider) Next(ctx context.Context) (Tick, bool, error) {
	if p.index >= len(p.ticks) {
		return Tick{}, false, nil
	}
	tick := p.ticks[p.index]
	p.index++
	return tick, true, nil
}
