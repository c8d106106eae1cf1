package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// failingRepo fails every list call.
type failingRepo struct {
	*db.MemoryRepository
}

func (failingRepo) FindRepairs(context.Context, db.ListOptions) ([]models.RepairSheet, error) {
	return nil, errors.New("backend unavailable")
}

func sheet(tech, ro, first, last, concern string) models.RepairSheet {
	s := models.NewRepairSheet()
	s.ID = primitive.NewObjectID()
	s.TechnicianName = tech
	s.RONumber = ro
	s.CustomerFirstName = first
	s.CustomerLastName = last
	s.CustomerConcern = concern
	return s
}

func TestSortState_Toggle(t *testing.T) {
	s := DefaultSort()
	assert.Equal(t, SortState{Field: SortCreatedAt, Direction: db.Descending}, s)

	s = s.Toggle(SortCreatedAt)
	assert.Equal(t, db.Ascending, s.Direction, "same field reverses")
	s = s.Toggle(SortCreatedAt)
	assert.Equal(t, db.Descending, s.Direction)

	s = s.Toggle(SortRONumber)
	assert.Equal(t, SortState{Field: SortRONumber, Direction: db.Ascending}, s, "new field starts ascending")

	assert.Equal(t, s, s.Toggle("vin"), "unknown fields are ignored")
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, DefaultSort(), ParseSort("", ""))
	assert.Equal(t, DefaultSort(), ParseSort("password", "asc"))
	assert.Equal(t, SortState{Field: SortTechnicianName, Direction: db.Descending}, ParseSort(SortTechnicianName, "DESC"))
	assert.Equal(t, "asc", ParseSort(SortRONumber, "").Dir())
}

func TestMatches_CaseInsensitive(t *testing.T) {
	s := sheet("J. Rivera", "RO-1042", "Pat", "Doe", "Grinding noise when braking")

	for _, term := range []string{"", "rivera", "ro-10", "PAT DOE", "doe", "GRINDING"} {
		assert.True(t, Matches(s, term), term)
	}
	assert.False(t, Matches(s, "misfire"))
	assert.False(t, Matches(s, "—"))
}

func TestListView_LoadAndSearch(t *testing.T) {
	repo := db.NewMemoryRepository()
	ctx := context.Background()
	for _, s := range []models.RepairSheet{
		sheet("Ana", "RO-1", "Kim", "Lee", "oil leak"),
		sheet("Ben", "RO-2", "Sam", "Hart", "noise"),
	} {
		_, err := repo.InsertRepair(ctx, s)
		require.NoError(t, err)
	}

	v := NewListView(repo, notify.NewChannel())
	require.NoError(t, v.Load(ctx))
	assert.Len(t, v.Visible(), 2)
	assert.False(t, v.Loading())

	v.SetSearch("OIL")
	visible := v.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "RO-1", visible[0].RONumber)
	assert.Len(t, v.All(), 2, "search does not refetch or drop loaded sheets")
}

func TestListView_SortBy(t *testing.T) {
	repo := db.NewMemoryRepository()
	ctx := context.Background()
	for _, ro := range []string{"RO-B", "RO-C", "RO-A"} {
		_, err := repo.InsertRepair(ctx, sheet("T", ro, "", "", ""))
		require.NoError(t, err)
	}

	v := NewListView(repo, notify.NewChannel())
	require.NoError(t, v.SortBy(ctx, SortRONumber))
	assert.Equal(t, []string{"RO-A", "RO-B", "RO-C"}, ros(v.Visible()))

	require.NoError(t, v.SortBy(ctx, SortRONumber))
	assert.Equal(t, []string{"RO-C", "RO-B", "RO-A"}, ros(v.Visible()))
}

func TestListView_LoadFailure(t *testing.T) {
	ch := notify.NewChannel()
	var got []notify.Notification
	ch.Subscribe(func(n notify.Notification) { got = append(got, n) })

	v := NewListView(failingRepo{db.NewMemoryRepository()}, ch)
	err := v.Load(context.Background())
	assert.Error(t, err)
	assert.Empty(t, v.Visible())
	require.Len(t, got, 1)
	assert.Equal(t, notify.SeverityError, got[0].Severity)
	assert.Contains(t, got[0].Description, "backend unavailable")
}

func TestListView_Apply(t *testing.T) {
	v := NewListView(db.NewMemoryRepository(), notify.NewChannel())
	a := sheet("T", "RO-A", "", "", "")
	b := sheet("T", "RO-B", "", "", "")

	v.Apply(db.ChangeEvent{Type: db.ChangeInsert, ID: a.ID.Hex(), Sheet: a})
	v.Apply(db.ChangeEvent{Type: db.ChangeInsert, ID: b.ID.Hex(), Sheet: b})
	assert.Equal(t, []string{"RO-B", "RO-A"}, ros(v.Visible()), "inserts are prepended")

	a.RONumber = "RO-A2"
	v.Apply(db.ChangeEvent{Type: db.ChangeUpdate, ID: a.ID.Hex(), Sheet: a})
	assert.Equal(t, []string{"RO-B", "RO-A2"}, ros(v.Visible()))

	v.Apply(db.ChangeEvent{Type: db.ChangeInsert, ID: a.ID.Hex(), Sheet: a})
	assert.Len(t, v.Visible(), 2, "a repeated insert does not duplicate")

	v.Apply(db.ChangeEvent{Type: db.ChangeUpdate, ID: primitive.NewObjectID().Hex(), Sheet: sheet("T", "RO-X", "", "", "")})
	assert.Len(t, v.Visible(), 2, "updates for unknown sheets are ignored")

	v.Apply(db.ChangeEvent{Type: db.ChangeDelete, ID: b.ID.Hex()})
	assert.Equal(t, []string{"RO-A2"}, ros(v.Visible()))
}

// Known unsafe: a stale event overwrites a newer one for the same sheet.
func TestListView_ApplyLastWriteWins(t *testing.T) {
	v := NewListView(db.NewMemoryRepository(), notify.NewChannel())
	s := sheet("T", "RO-1", "", "", "")
	v.Apply(db.ChangeEvent{Type: db.ChangeInsert, ID: s.ID.Hex(), Sheet: s})

	newer, stale := s, s
	newer.RONumber = "RO-1-local"
	stale.RONumber = "RO-1-remote"
	v.Apply(db.ChangeEvent{Type: db.ChangeUpdate, ID: s.ID.Hex(), Sheet: newer})
	v.Apply(db.ChangeEvent{Type: db.ChangeUpdate, ID: s.ID.Hex(), Sheet: stale})

	assert.Equal(t, []string{"RO-1-remote"}, ros(v.Visible()))
}

// Create, edit and delete a sheet while the list watches the change feed.
func TestListView_WatchCreateEditDelete(t *testing.T) {
	repo := db.NewMemoryRepository()
	ch := notify.NewChannel()
	v := NewListView(repo, ch)
	ctx, cancel := context.WithCancel(context.Background())

	older := sheet("Ana", "RO-0999", "", "", "")
	_, err := repo.InsertRepair(context.Background(), older)
	require.NoError(t, err)
	require.NoError(t, v.Load(ctx))

	changes := make(chan db.ChangeEvent, 8)
	done := make(chan error)
	go func() { done <- v.Watch(ctx, func(ev db.ChangeEvent) { changes <- ev }) }()
	waitForSubscriber(t, repo)

	created := models.NewRepairSheet()
	created.TechnicianName = "J. Rivera"
	created.RONumber = "RO-1042"
	created.TireTread = models.TireTread{LF: 8, RF: 8, LR: 6, RR: 6}
	created, err = repo.InsertRepair(context.Background(), created)
	require.NoError(t, err)
	expectChange(t, changes, db.ChangeInsert)
	assert.Equal(t, []string{"RO-1042", "RO-0999"}, ros(v.Visible()))

	created.RONumber = "RO-1042B"
	_, err = repo.UpdateRepair(context.Background(), created.ID.Hex(), created)
	require.NoError(t, err)
	expectChange(t, changes, db.ChangeUpdate)
	assert.Equal(t, []string{"RO-1042B", "RO-0999"}, ros(v.Visible()))

	require.NoError(t, repo.DeleteRepair(context.Background(), created.ID.Hex()))
	expectChange(t, changes, db.ChangeDelete)
	assert.Equal(t, []string{"RO-0999"}, ros(v.Visible()))

	cancel()
	assert.NoError(t, <-done)
}

func waitForSubscriber(t *testing.T, repo *db.MemoryRepository) {
	t.Helper()
	require.Eventually(t, func() bool { return repo.SubscriberCount() > 0 }, time.Second, time.Millisecond)
}

func expectChange(t *testing.T, changes <-chan db.ChangeEvent, want db.ChangeType) {
	t.Helper()
	select {
	case ev := <-changes:
		require.Equal(t, want, ev.Type)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func ros(sheets []models.RepairSheet) []string {
	out := make([]string, 0, len(sheets))
	for _, s := range sheets {
		out = append(out, s.RONumber)
	}
	return out
}
