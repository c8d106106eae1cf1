package views

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/form"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
)

type clipboard struct {
	text string
	err  error
}

func (c *clipboard) WriteText(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

var (
	yes = ConfirmFunc(func(string) bool { return true })
	no  = ConfirmFunc(func(string) bool { return false })
)

func seeded(t *testing.T, withFile bool) (*db.MemoryRepository, models.RepairSheet) {
	t.Helper()
	repo := db.NewMemoryRepository()
	ctx := context.Background()

	s := models.NewRepairSheet()
	s.TechnicianName = "J. Rivera"
	s.RONumber = "RO-1042"
	s.CustomerConcern = "Pulls left"
	s.BrakePads = models.BrakePads{LF: 7, RF: 7, LR: 60, RR: 55}
	s.RearBrakePadUnit = models.UnitPercent
	if withFile {
		ref, err := repo.UploadAttachment(ctx, "scan.txt", strings.NewReader("P0420 catalyst efficiency"))
		require.NoError(t, err)
		s.DiagnosticFileID = ref
		s.DiagnosticFileName = "scan.txt"
	}
	created, err := repo.InsertRepair(ctx, s)
	require.NoError(t, err)
	return repo, created
}

func TestDetailView_LoadNotFound(t *testing.T) {
	v := NewDetailView(db.NewMemoryRepository(), notify.NewChannel())
	err := v.Load(context.Background(), "665f1c2e9b1d4a0001a1b2c3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, v.Load(context.Background(), "not-an-id"), ErrNotFound)
}

func TestDetailView_LoadPreloadsDiagnosticText(t *testing.T) {
	repo, created := seeded(t, true)
	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))

	assert.Equal(t, ModeViewing, v.Mode())
	assert.Equal(t, "P0420 catalyst efficiency", v.DiagnosticText())

	model, err := v.Print()
	require.NoError(t, err)
	assert.Equal(t, "scan.txt", model.DiagnosticName)
	assert.Equal(t, "P0420 catalyst efficiency", model.DiagnosticText)
	assert.Equal(t, "J. Rivera", model.Sheet.TechnicianName)
	assert.Equal(t, models.EmptyValue, model.Customer)
}

func TestDetailView_PrintWithoutAttachment(t *testing.T) {
	repo, created := seeded(t, false)
	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))

	model, err := v.Print()
	require.NoError(t, err)
	assert.Empty(t, model.DiagnosticText)
	require.Len(t, model.Groups, 3)
	brakes := model.Groups[1]
	assert.Equal(t, "7 MM", brakes.Readings[0].Value)
	assert.Equal(t, "60%", brakes.Readings[2].Value)
}

func TestDetailView_ModeTransitions(t *testing.T) {
	repo, created := seeded(t, false)
	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))

	assert.ErrorIs(t, v.Cancel(), ErrInvalidMode)
	assert.ErrorIs(t, v.Set("ro_number", "x"), ErrInvalidMode)
	assert.ErrorIs(t, v.ToggleBrakeUnit(models.AxleFront), ErrInvalidMode)
	_, err := v.Save(context.Background())
	assert.ErrorIs(t, err, ErrInvalidMode)

	require.NoError(t, v.Edit())
	assert.ErrorIs(t, v.Edit(), ErrInvalidMode)
	assert.ErrorIs(t, v.Copy("recommendations", &clipboard{}), ErrInvalidMode)
	_, err = v.Print()
	assert.ErrorIs(t, err, ErrInvalidMode)

	require.NoError(t, v.Set("ro_number", "RO-CHANGED"))
	require.NoError(t, v.ToggleBrakeUnit(models.AxleFront))
	assert.Equal(t, "RO-CHANGED", v.Draft().RONumber)

	require.NoError(t, v.Cancel())
	assert.Equal(t, ModeViewing, v.Mode())
	assert.Equal(t, "RO-1042", v.Draft().RONumber, "cancel resets the draft")
	assert.Equal(t, models.UnitMillimeters, v.Sheet().FrontBrakePadUnit)
}

func TestDetailView_ToggleBrakeUnitIsPerAxle(t *testing.T) {
	repo, created := seeded(t, false)
	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))
	require.NoError(t, v.Edit())

	require.NoError(t, v.ToggleBrakeUnit(models.AxleFront))
	draft := v.Draft()
	assert.Equal(t, models.UnitPercent, draft.FrontBrakePadUnit)
	assert.Equal(t, models.UnitPercent, draft.RearBrakePadUnit)
	assert.Equal(t, created.BrakePads, draft.BrakePads, "readings are not converted")

	require.NoError(t, v.ToggleBrakeUnit(models.AxleRear))
	assert.Equal(t, models.UnitMillimeters, v.Draft().RearBrakePadUnit)
	assert.Error(t, v.ToggleBrakeUnit("middle"))
}

func TestDetailView_SaveKeepsIdentity(t *testing.T) {
	repo, created := seeded(t, true)
	ch := notify.NewChannel()
	v := NewDetailView(repo, ch)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx, created.ID.Hex()))
	require.NoError(t, v.Edit())
	require.NoError(t, v.Set("ro_number", "RO-1042B"))
	require.NoError(t, v.Attach(form.Upload{Filename: "rescan.txt", ContentType: "text/plain", Content: []byte("no codes")}))

	saved, err := v.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, saved.ID)
	assert.Equal(t, created.CreatedAt, saved.CreatedAt)
	assert.Equal(t, ModeViewing, v.Mode())
	assert.Equal(t, "no codes", v.DiagnosticText())
	assert.False(t, repo.HasAttachment(created.DiagnosticFileID))

	all, err := repo.FindRepairs(ctx, db.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "RO-1042B", all[0].RONumber)
}

func TestDetailView_SaveValidationFailureStaysEditing(t *testing.T) {
	repo, created := seeded(t, false)
	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))
	require.NoError(t, v.Edit())
	require.NoError(t, v.Set("technician_name", " "))

	_, err := v.Save(context.Background())
	var verr *form.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, ModeEditing, v.Mode())
}

func TestDetailView_Copy(t *testing.T) {
	repo, created := seeded(t, false)
	ch := notify.NewChannel()
	var got []notify.Severity
	ch.Subscribe(func(n notify.Notification) { got = append(got, n.Severity) })
	v := NewDetailView(repo, ch)
	require.NoError(t, v.Load(context.Background(), created.ID.Hex()))

	clip := &clipboard{}
	require.NoError(t, v.Copy("customer_concern", clip))
	assert.Equal(t, "Pulls left", clip.text)

	assert.Error(t, v.Copy("customer_concern", &clipboard{err: errors.New("denied")}))
	assert.ErrorIs(t, v.Copy("technician_name", clip), ErrNotCopyable)
	assert.Equal(t, []notify.Severity{notify.SeveritySuccess, notify.SeverityError}, got)
}

func TestDetailView_Delete(t *testing.T) {
	repo, created := seeded(t, true)
	ch := notify.NewChannel()
	var got []notify.Severity
	ch.Subscribe(func(n notify.Notification) { got = append(got, n.Severity) })
	v := NewDetailView(repo, ch)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx, created.ID.Hex()))

	assert.ErrorIs(t, v.Delete(ctx, no), ErrNotConfirmed)
	assert.Equal(t, ModeViewing, v.Mode())

	require.NoError(t, v.Delete(ctx, yes))
	assert.Equal(t, ModeDeleted, v.Mode())
	assert.False(t, repo.HasAttachment(created.DiagnosticFileID))
	_, err := repo.FindRepairByID(ctx, created.ID.Hex())
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, []notify.Severity{notify.SeveritySuccess}, got)

	assert.ErrorIs(t, v.Delete(ctx, yes), ErrInvalidMode)
	assert.ErrorIs(t, v.Edit(), ErrInvalidMode)
}

func TestDetailView_DeleteSurvivesMissingAttachment(t *testing.T) {
	repo, created := seeded(t, true)
	ctx := context.Background()
	require.NoError(t, repo.DeleteAttachment(ctx, created.DiagnosticFileID))

	v := NewDetailView(repo, notify.NewChannel())
	require.NoError(t, v.Load(ctx, created.ID.Hex()))
	assert.Empty(t, v.DiagnosticText())
	require.NoError(t, v.Delete(ctx, yes))
}
