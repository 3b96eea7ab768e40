package model

import (
	"errors"
	"fmt"
	"sort"
)

// Candle.Time 是 K 线开始时间，毫秒
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

var ErrInvalidCandles = errors.New("invalid candle series")

func (c Candle) Valid() bool {
	if c.Open <= 0 || c.Close <= 0 || c.Low <= 0 || c.Volume < 0 {
		return false
	}
	return c.Low <= min(c.Open, c.Close) && c.High >= max(c.Open, c.Close)
}

// ValidateCandles 校验 OHLC 关系和时间严格递增
func ValidateCandles(cs []Candle) error {
	for i, c := range cs {
		if !c.Valid() {
			return fmt.Errorf("%w: candle %d at %d violates ohlc bounds", ErrInvalidCandles, i, c.Time)
		}
		if i > 0 && c.Time <= cs[i-1].Time {
			return fmt.Errorf("%w: candle %d time %d not after %d", ErrInvalidCandles, i, c.Time, cs[i-1].Time)
		}
	}
	return nil
}

// NormalizeCandles 按时间排序并去掉重复时间戳（保留后出现的那根）
func NormalizeCandles(cs []Candle) []Candle {
	if len(cs) < 2 {
		return cs
	}
	out := make([]Candle, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	n := 0
	for i := range out {
		if n > 0 && out[n-1].Time == out[i].Time {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
