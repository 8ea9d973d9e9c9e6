package listing

import (
	"sort"
	"strings"

	"github.com/noah-isme/guard-forms/internal/models"
)

var genderLabels = map[string]string{"M": "Мужской", "F": "Женский"}

// sortEmployees orders by full name, case-insensitively.
func sortEmployees(list []models.Employee, order string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := strings.ToLower(list[i].FIO), strings.ToLower(list[j].FIO)
		if order == "desc" {
			return a > b
		}
		return a < b
	})
}

// filterByGender applies the gender filter to search results, which the
// search endpoint ignores. Rows carry display labels, not codes.
func filterByGender(list []models.Employee, gender string) []models.Employee {
	label, ok := genderLabels[gender]
	if !ok {
		return list
	}
	out := make([]models.Employee, 0, len(list))
	for _, e := range list {
		if e.Gender == label || e.Gender == gender {
			out = append(out, e)
		}
	}
	return out
}
