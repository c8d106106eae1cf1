package db

import (
	"sort"
	"strings"

	"github.com/ukydev/worx-notes/internal/models"
)

// SortSheets orders upgraded sheets in place. Ties break on ID so the
// order is stable across backends.
func SortSheets(sheets []models.RepairSheet, opts ListOptions) {
	field, dir := opts.SortField, opts.Direction
	if field == "" {
		field, dir = "created_at", Descending
	}
	sort.SliceStable(sheets, func(i, j int) bool {
		c := compareField(sheets[i], sheets[j], field)
		if c == 0 {
			c = strings.Compare(sheets[i].ID.Hex(), sheets[j].ID.Hex())
		}
		if dir == Ascending {
			return c < 0
		}
		return c > 0
	})
}

func compareField(a, b models.RepairSheet, field string) int {
	switch field {
	case "customer_first_name":
		return strings.Compare(a.CustomerFirstName, b.CustomerFirstName)
	case "customer_last_name":
		return strings.Compare(a.CustomerLastName, b.CustomerLastName)
	case "ro_number":
		return strings.Compare(a.RONumber, b.RONumber)
	case "technician_name":
		return strings.Compare(a.TechnicianName, b.TechnicianName)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
