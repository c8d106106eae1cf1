package views

import (
	"strings"

	"github.com/ukydev/worx-notes/internal/db"
)

// Sortable list columns.
const (
	SortCustomerFirstName = "customer_first_name"
	SortCustomerLastName  = "customer_last_name"
	SortRONumber          = "ro_number"
	SortTechnicianName    = "technician_name"
	SortCreatedAt         = "created_at"
)

var sortableFields = map[string]bool{
	SortCustomerFirstName: true,
	SortCustomerLastName:  true,
	SortRONumber:          true,
	SortTechnicianName:    true,
	SortCreatedAt:         true,
}

// IsSortable reports whether the list can be ordered by field.
func IsSortable(field string) bool {
	return sortableFields[field]
}

// SortState is the active list ordering.
type SortState struct {
	Field     string
	Direction db.SortDirection
}

// DefaultSort is newest first.
func DefaultSort() SortState {
	return SortState{Field: SortCreatedAt, Direction: db.Descending}
}

// Toggle returns the ordering after a click on field: the same field
// reverses direction, a different field sorts ascending. Unknown fields
// leave the state as it is.
func (s SortState) Toggle(field string) SortState {
	if !IsSortable(field) {
		return s
	}
	if s.Field == field {
		if s.Direction == db.Ascending {
			return SortState{Field: field, Direction: db.Descending}
		}
		return SortState{Field: field, Direction: db.Ascending}
	}
	return SortState{Field: field, Direction: db.Ascending}
}

// ParseSort reads an ordering from query values, falling back to the default.
func ParseSort(field, dir string) SortState {
	if !IsSortable(field) {
		return DefaultSort()
	}
	if strings.EqualFold(dir, "desc") {
		return SortState{Field: field, Direction: db.Descending}
	}
	return SortState{Field: field, Direction: db.Ascending}
}

// Dir is the query value of the direction.
func (s SortState) Dir() string {
	if s.Direction == db.Descending {
		return "desc"
	}
	return "asc"
}

// ListOptions converts the state for the repository.
func (s SortState) ListOptions() db.ListOptions {
	return db.ListOptions{SortField: s.Field, Direction: s.Direction}
}
