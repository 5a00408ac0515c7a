package analysis

import (
	"fmt"
	"strings"

	"github.com/Alias1177/Aura/models"
)

// offsets of a fixed-percentage target table, as multipliers of the price
type offsets struct {
	signal     models.Signal
	confidence string
	tp1        float64
	tp2        float64
	tp3        float64
	sl         float64
	rr         string
}

var (
	buyTable  = offsets{models.SignalBuy, "High", 1.005, 1.01, 1.02, 0.99, "1:2.0"}
	sellTable = offsets{models.SignalSell, "Medium", 0.995, 0.99, 0.98, 1.01, "1:1.5"}
	holdTable = offsets{models.SignalHold, "Moderate", 1.002, 1.005, 1.01, 0.998, "1:1.0"}
)

// Targets computes entry, take-profit and stop-loss levels from the current
// price with fixed percentage offsets. Without a live price the result is
// NEUTRAL with zeroed levels.
func Targets(tradeType string, price float64, leverage string) models.AnalysisPayload {
	if price <= 0 {
		return models.AnalysisPayload{
			Signal:     models.SignalNeutral,
			Confidence: "Low (No live price) Confidence",
			RRRatio:    "N/A",
			Leverage:   leverage,
		}
	}

	table := holdTable
	switch models.TradeType(strings.ToUpper(strings.TrimSpace(tradeType))) {
	case models.TradeTypeBuy:
		table = buyTable
	case models.TradeTypeSell:
		table = sellTable
	}

	return models.AnalysisPayload{
		Signal:     table.signal,
		Confidence: table.confidence + " Confidence",
		Entry:      price,
		TP1:        roundPrice(price * table.tp1),
		TP2:        roundPrice(price * table.tp2),
		TP3:        roundPrice(price * table.tp3),
		SL:         roundPrice(price * table.sl),
		RRRatio:    table.rr,
		Leverage:   leverage,
	}
}

// DeterministicText is the narrative that accompanies Targets
func DeterministicText(req models.AnalysisRequest, p models.AnalysisPayload) string {
	confidence := strings.TrimSuffix(p.Confidence, " Confidence")
	return fmt.Sprintf(
		"Based on your request for %s across %s timeframes, utilizing %s indicators, "+
			"and considering a '%s' trade style with a balance range of '%s' and '%s' leverage, "+
			"Aura suggests a **%s** opportunity. The current market conditions indicate %s with a %s confidence level. "+
			"Monitor price action around key support/resistance levels. "+
			"Always conduct your own research before making trading decisions.",
		req.Pair, strings.Join(req.Timeframes, ", "), strings.Join(req.Indicators, ", "),
		req.TradeType, req.BalanceRange, req.Leverage,
		p.Signal, p.Signal, confidence,
	)
}
