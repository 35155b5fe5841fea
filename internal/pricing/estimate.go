// Package pricing turns tier definitions into credit and monetary cost
// estimates for display. Estimates assume continuous uptime; actual
// consumption is whatever the meter settles.
package pricing

import (
	"github.com/skyhook-dev/skyhook/internal/meter"
	"github.com/skyhook-dev/skyhook/internal/tier"
)

// HoursPerMonth is the conventional 30-day month used for estimates.
const HoursPerMonth = 720

// Estimate is the projected cost of running one tier continuously.
type Estimate struct {
	TierName       string  `json:"tierName"`
	HourlyCredits  float64 `json:"hourlyCredits"`
	DailyCredits   float64 `json:"dailyCredits"`
	MonthlyCredits float64 `json:"monthlyCredits"`

	// EstimatedMonthlyUSD is MonthlyCredits valued at the configured
	// credit price. Zero when no price is configured.
	EstimatedMonthlyUSD float64 `json:"estimatedMonthlyUsd"`

	MinimumBalance float64 `json:"minimumBalance"`
}

// ForTier estimates costs for a tier name. Unknown names resolve to the
// default tier, same as provisioning.
func ForTier(name string, creditPriceUSD float64) Estimate {
	def := tier.DefinitionFor(name)
	hourly := meter.HourlyRate(def)
	monthly := hourly * HoursPerMonth
	return Estimate{
		TierName:            string(def.Name),
		HourlyCredits:       hourly,
		DailyCredits:        hourly * 24,
		MonthlyCredits:      monthly,
		EstimatedMonthlyUSD: monthly * creditPriceUSD,
		MinimumBalance:      def.MinimumBalance,
	}
}

// All estimates every catalogue tier.
func All(creditPriceUSD float64) []Estimate {
	names := tier.Names()
	out := make([]Estimate, 0, len(names))
	for _, n := range names {
		out = append(out, ForTier(string(n), creditPriceUSD))
	}
	return out
}
