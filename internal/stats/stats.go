// Package stats derives per-user performance metrics from ledger records.
//
// Both percentages guard their denominators: a zeroed period baseline
// yields performance 0.0 and a user with no trades yields win rate 0.0.
// The computation is pure and never fails.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Metrics is the derived view of one user record.
type Metrics struct {
	Performance        float64 `json:"performance"`
	WinRate            float64 `json:"win_rate"`
	TradesThisPeriod   int     `json:"trades_this_period"`
	Wins               int     `json:"wins"`
	PeriodStartBalance float64 `json:"period_start_balance"`
	Balance            float64 `json:"balance"`
}

// Compute derives the metrics for one record.
//
// Performance is the percent change from the period start balance to the
// current balance; win rate is wins over trades. Both are rounded to 2
// decimal places.
func Compute(u *model.UserRecord) Metrics {
	perf := decimal.Zero
	if u.PeriodStartBalance != 0 {
		balance := decimal.NewFromFloat(u.Balance)
		start := decimal.NewFromFloat(u.PeriodStartBalance)
		perf = balance.Sub(start).Div(start).Mul(hundred).Round(2)
	}

	winRate := decimal.Zero
	if u.Trades > 0 {
		winRate = decimal.NewFromInt(int64(u.Wins)).
			Div(decimal.NewFromInt(int64(u.Trades))).
			Mul(hundred).
			Round(2)
	}

	return Metrics{
		Performance:        perf.InexactFloat64(),
		WinRate:            winRate.InexactFloat64(),
		TradesThisPeriod:   u.Trades,
		Wins:               u.Wins,
		PeriodStartBalance: model.Round2(u.PeriodStartBalance),
		Balance:            model.Round2(u.Balance),
	}
}
