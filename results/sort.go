package results

import "sort"

// sortShadowPrices orders duals by constraint name so the projection is
// stable even though the solver hands them back as a map.
func sortShadowPrices(prices []ShadowPrice) {
	sort.Slice(prices, func(i, j int) bool { return prices[i].Constraint < prices[j].Constraint })
}
