package weakness

import "sort"

// Rank sorts weaknesses by urgency, then severity, then impact, all
// descending. The sort is stable so rule order breaks remaining ties.
func Rank(ws []Weakness) []Weakness {
	sort.SliceStable(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() > b.Urgency.Rank()
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.Impact.Weight() > b.Impact.Weight()
	})
	return ws
}

// OverallScore is the weighted mean severity score, 0 when ws is empty.
// Primary findings weigh twice secondary ones, scaled by impact.
func OverallScore(ws []Weakness) float64 {
	var sum, weights float64
	for _, w := range ws {
		cat := 1.0
		if w.Category == CategoryPrimary {
			cat = 2
		}
		weight := cat * w.Impact.Weight()
		sum += w.Severity.Score() * weight
		weights += weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}
