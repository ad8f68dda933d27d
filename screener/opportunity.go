package screener

import (
	"sort"

	"prediction-fleet/models"
)

// OpportunityScore calculates a composite tradability score for a market.
// Deep liquidity and active volume make fills reliable, and a tight yes/no
// price sum means less vig is priced in. Score range: 0-100, higher is a
// better trading venue. Resolved markets always score 0.
func OpportunityScore(m models.Market) float64 {
	if m.Resolved {
		return 0
	}

	// Liquidity score: 0 liquidity = 0, 10000+ = 100
	liquidity, _ := m.Liquidity.Float64()
	liqScore := min(100, liquidity/100)

	// Volume score: 0 volume = 0, 5000+ in 24h = 100
	volume, _ := m.Volume24h.Float64()
	volScore := min(100, volume/50)

	// Tightness score: yes+no should sum to 1.00. Each cent of deviation
	// costs 10 points; a 10-cent book is worthless.
	yes, _ := m.YesPrice.Float64()
	no, _ := m.NoPrice.Float64()
	deviation := 1.0 - (yes + no)
	if deviation < 0 {
		deviation = -deviation
	}
	tightScore := max(0, 100-deviation*1000)

	// Weighted average: 40% liquidity, 30% volume, 30% tightness
	return liqScore*0.4 + volScore*0.3 + tightScore*0.3
}

// Rank sorts markets by opportunity score in descending order and returns the
// top N. Ties break by ticker so the ordering is deterministic.
func Rank(markets []models.Market, topN int) []models.Market {
	if len(markets) == 0 {
		return markets
	}

	scores := make(map[string]float64, len(markets))
	for _, m := range markets {
		scores[m.Ticker] = OpportunityScore(m)
	}

	ranked := make([]models.Market, len(markets))
	copy(ranked, markets)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].Ticker], scores[ranked[j].Ticker]
		if si != sj {
			return si > sj
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})

	if topN > 0 && topN < len(ranked) {
		return ranked[:topN]
	}
	return ranked
}
