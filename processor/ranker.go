package processor

import (
	"sort"

	"arbiscan/models"
)

// Rank orders opportunities by profit percentage, best first. The sort is
// stable so ties keep the evaluator's pairing order and repeated cycles over
// identical quotes report identically.
func Rank(opportunities []models.Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPercentage > opportunities[j].ProfitPercentage
	})
}
