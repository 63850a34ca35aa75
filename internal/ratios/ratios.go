// Package ratios derives technical indicators from a closing-price series.
// All computation is pure and in-memory; values are recomputed on every run.
package ratios

import (
	"math"

	"github.com/sells-group/equity-cli/internal/model"
)

const rsiPeriod = 14

// Compute derives SMA20, SMA50, and RSI14 from the history's closes.
func Compute(history *model.PriceHistory) model.Ratios {
	closes := history.Closes()
	return model.Ratios{
		SMA20:       SMA(closes, 20),
		SMA50:       SMA(closes, 50),
		RSI14:       RSI(closes, rsiPeriod),
		LatestClose: latest(closes),
	}
}

// SMA returns the arithmetic mean of the trailing k closes, rounded to two
// decimals. Fewer than k points averages all available points; an empty
// series returns 0.0 as a defined sentinel.
func SMA(closes []float64, k int) float64 {
	if len(closes) > k {
		closes = closes[len(closes)-k:]
	}
	if len(closes) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range closes {
		sum += c
	}
	return round2(sum / float64(len(closes)))
}

// RSI returns the simplified Wilder relative-strength index over the
// trailing period intervals. Fewer than period+1 points returns the
// neutral value 50.0; zero average loss returns 100.0.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}
	var gains, losses float64
	n := len(closes)
	for i := 1; i <= period; i++ {
		change := closes[n-i] - closes[n-i-1]
		if change >= 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return round2(100 - (100 / (1 + rs)))
}

func latest(closes []float64) float64 {
	if len(closes) == 0 {
		return 0.0
	}
	return closes[len(closes)-1]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
