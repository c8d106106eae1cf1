package views

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
)

// ListView is the searchable, sortable list of repair sheets. Change feed
// events are merged in without version checks, so a concurrent local edit of
// the same sheet is overwritten by whichever write arrives last.
type ListView struct {
	repo     db.RepairCollection
	notifier notify.Notifier

	mu      sync.RWMutex
	sort    SortState
	search  string
	sheets  []models.RepairSheet
	loading bool
}

// NewListView returns an empty list ordered newest first.
func NewListView(repo db.RepairCollection, notifier notify.Notifier) *ListView {
	return &ListView{
		repo:     repo,
		notifier: notifier,
		sort:     DefaultSort(),
	}
}

// Load fetches every sheet in the active order. On failure the list is empty
// and an error notification is sent.
func (v *ListView) Load(ctx context.Context) error {
	v.mu.Lock()
	v.loading = true
	opts := v.sort.ListOptions()
	v.mu.Unlock()

	sheets, err := v.repo.FindRepairs(ctx, opts)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		v.sheets = nil
		notify.Error(v.notifier, "Error loading repair sheets", err.Error())
		return fmt.Errorf("load repair sheets: %w", err)
	}
	v.sheets = sheets
	return nil
}

// Loading reports whether a fetch is in flight.
func (v *ListView) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// Sort returns the active ordering.
func (v *ListView) Sort() SortState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sort
}

// SetSort replaces the ordering without fetching.
func (v *ListView) SetSort(s SortState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = s
}

// SortBy toggles the ordering on field and refetches.
func (v *ListView) SortBy(ctx context.Context, field string) error {
	v.mu.Lock()
	v.sort = v.sort.Toggle(field)
	v.mu.Unlock()
	return v.Load(ctx)
}

// SetSearch sets the filter applied by Visible.
func (v *ListView) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = term
}

// Search returns the active filter.
func (v *ListView) Search() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.search
}

// All returns every loaded sheet, ignoring the search filter.
func (v *ListView) All() []models.RepairSheet {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.RepairSheet, len(v.sheets))
	copy(out, v.sheets)
	return out
}

// Visible returns the loaded sheets that match the search filter.
func (v *ListView) Visible() []models.RepairSheet {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.RepairSheet, 0, len(v.sheets))
	for _, s := range v.sheets {
		if Matches(s, v.search) {
			out = append(out, s)
		}
	}
	return out
}

// Matches reports whether a sheet matches a case-insensitive search term.
// The technician, RO number, customer name and concern are searched.
func Matches(s models.RepairSheet, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{
		s.TechnicianName,
		s.RONumber,
		strings.TrimSpace(s.CustomerFirstName + " " + s.CustomerLastName),
		s.CustomerConcern,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Apply merges one change event: inserts are prepended, updates replace the
// sheet with the same ID and deletes remove it.
func (v *ListView) Apply(ev db.ChangeEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx := -1
	for i, s := range v.sheets {
		if s.ID.Hex() == ev.ID {
			idx = i
			break
		}
	}

	switch ev.Type {
	case db.ChangeInsert:
		if idx >= 0 {
			v.sheets[idx] = ev.Sheet
			return
		}
		v.sheets = append([]models.RepairSheet{ev.Sheet}, v.sheets...)
	case db.ChangeUpdate:
		if idx >= 0 {
			v.sheets[idx] = ev.Sheet
		}
	case db.ChangeDelete:
		if idx >= 0 {
			v.sheets = append(v.sheets[:idx:idx], v.sheets[idx+1:]...)
		}
	}
}

// Watch subscribes to the change feed and applies every event until ctx
// ends. onChange, when set, runs after each applied event.
func (v *ListView) Watch(ctx context.Context, onChange func(db.ChangeEvent)) error {
	sub, err := v.repo.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to repair sheet changes: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.WithError(err).Warn("Repair sheet change feed closed with error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			v.Apply(ev)
			if onChange != nil {
				onChange(ev)
			}
		}
	}
}
