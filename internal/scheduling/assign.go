package scheduling

import (
	"sort"
	"strconv"
	"strings"

	"tablebook/internal/models"
)

// CompareTableNumbers orders table numbers numerically when both parse as
// integers and lexicographically otherwise, so "2" sorts before "10".
func CompareTableNumbers(a, b string) int {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// SortTables orders tables by capacity ascending, then table number.
func SortTables(tables []*models.Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Capacity != tables[j].Capacity {
			return tables[i].Capacity < tables[j].Capacity
		}
		if c := CompareTableNumbers(tables[i].Number, tables[j].Number); c != 0 {
			return c < 0
		}
		return tables[i].ID < tables[j].ID
	})
}

// BestFit picks the smallest table that is still free, breaking ties by the
// lowest table number. The input slice is not modified.
func BestFit(available []*models.Table) (*models.Table, bool) {
	if len(available) == 0 {
		return nil, false
	}
	sorted := make([]*models.Table, len(available))
	copy(sorted, available)
	SortTables(sorted)
	return sorted[0], true
}
