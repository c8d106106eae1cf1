package views

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/form"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
)

var (
	ErrNotFound     = errors.New("repair sheet not found")
	ErrInvalidMode  = errors.New("operation not allowed in the current mode")
	ErrNotConfirmed = errors.New("delete not confirmed")
	ErrNotCopyable  = errors.New("field cannot be copied")
)

// Mode is the state of a detail view.
type Mode int

const (
	ModeViewing Mode = iota
	ModeEditing
	ModeDeleted
)

func (m Mode) String() string {
	switch m {
	case ModeViewing:
		return "viewing"
	case ModeEditing:
		return "editing"
	case ModeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(text string) error
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// CopyableFields are the free-text fields offered for copying.
var CopyableFields = []string{"customer_concern", "recommendations", "shop_recommendations"}

// DetailView shows one repair sheet and lets the user edit, print or delete
// it.
type DetailView struct {
	repo     db.Repository
	notifier notify.Notifier

	mu       sync.Mutex
	mode     Mode
	sheet    models.RepairSheet
	fileText string
	editor   *form.Controller
}

// NewDetailView returns a view that has not loaded anything yet.
func NewDetailView(repo db.Repository, notifier notify.Notifier) *DetailView {
	return &DetailView{repo: repo, notifier: notifier}
}

// Load fetches a sheet and, when it has one, the text of its diagnostic file
// so it is ready for printing.
func (v *DetailView) Load(ctx context.Context, id string) error {
	sheet, err := v.repo.FindRepairByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		notify.Error(v.notifier, "Error loading repair sheet", err.Error())
		return fmt.Errorf("load repair sheet %s: %w", id, err)
	}

	text := v.loadFileText(ctx, *sheet)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.sheet = *sheet
	v.fileText = text
	v.mode = ModeViewing
	v.editor = nil
	return nil
}

func (v *DetailView) loadFileText(ctx context.Context, sheet models.RepairSheet) string {
	if !sheet.HasAttachment() {
		return ""
	}
	text, err := v.repo.DownloadAttachment(ctx, sheet.DiagnosticFileID)
	if err != nil {
		log.WithError(err).WithField("attachment", sheet.DiagnosticFileID).Warn("Failed to load diagnostic file")
		return ""
	}
	return text
}

// Mode returns the current mode.
func (v *DetailView) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Sheet returns the sheet as last fetched or saved.
func (v *DetailView) Sheet() models.RepairSheet {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sheet
}

// Draft returns the values being edited, or the sheet when not editing.
func (v *DetailView) Draft() models.RepairSheet {
	v.mu.Lock()
	editor := v.editor
	sheet := v.sheet
	v.mu.Unlock()
	if editor != nil {
		return editor.Draft()
	}
	return sheet
}

// DiagnosticText returns the preloaded diagnostic file content.
func (v *DetailView) DiagnosticText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fileText
}

// Edit switches to edit mode with a draft of the current sheet.
func (v *DetailView) Edit() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeViewing {
		return fmt.Errorf("edit while %s: %w", v.mode, ErrInvalidMode)
	}
	v.editor = form.ForSheet(v.repo, v.notifier, v.sheet)
	v.mode = ModeEditing
	return nil
}

// Cancel drops the draft and returns to view mode.
func (v *DetailView) Cancel() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeEditing {
		return fmt.Errorf("cancel while %s: %w", v.mode, ErrInvalidMode)
	}
	v.editor = nil
	v.mode = ModeViewing
	return nil
}

func (v *DetailView) activeEditor() (*form.Controller, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeEditing {
		return nil, fmt.Errorf("change field while %s: %w", v.mode, ErrInvalidMode)
	}
	return v.editor, nil
}

// Set changes one field of the draft.
func (v *DetailView) Set(name, raw string) error {
	editor, err := v.activeEditor()
	if err != nil {
		return err
	}
	return editor.Set(name, raw)
}

// Attach selects a replacement diagnostic file.
func (v *DetailView) Attach(u form.Upload) error {
	editor, err := v.activeEditor()
	if err != nil {
		return err
	}
	return editor.Attach(u)
}

// ToggleBrakeUnit flips the unit of one axle in the draft.
func (v *DetailView) ToggleBrakeUnit(axle models.Axle) error {
	if !models.IsValidAxle(axle) {
		return fmt.Errorf("unknown axle %q", axle)
	}
	editor, err := v.activeEditor()
	if err != nil {
		return err
	}
	editor.ToggleBrakeUnit(axle)
	return nil
}

// Save writes the draft over the stored sheet and returns to view mode.
// On failure the view stays in edit mode with the draft intact.
func (v *DetailView) Save(ctx context.Context) (models.RepairSheet, error) {
	editor, err := v.activeEditor()
	if err != nil {
		return models.RepairSheet{}, err
	}
	saved, err := editor.Submit(ctx)
	if err != nil {
		return models.RepairSheet{}, err
	}

	v.mu.Lock()
	previous := v.sheet.DiagnosticFileID
	v.mu.Unlock()
	text := v.DiagnosticText()
	if saved.DiagnosticFileID != previous {
		text = v.loadFileText(ctx, saved)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.sheet = saved
	v.fileText = text
	v.editor = nil
	v.mode = ModeViewing
	return saved, nil
}

// Copy puts the text of a free-text field on the clipboard.
func (v *DetailView) Copy(field string, clip Clipboard) error {
	v.mu.Lock()
	mode := v.mode
	sheet := v.sheet
	v.mu.Unlock()
	if mode != ModeViewing {
		return fmt.Errorf("copy while %s: %w", mode, ErrInvalidMode)
	}

	var text string
	switch field {
	case "customer_concern":
		text = sheet.CustomerConcern
	case "recommendations":
		text = sheet.Recommendations
	case "shop_recommendations":
		text = sheet.ShopRecommendations
	default:
		return fmt.Errorf("%w: %s", ErrNotCopyable, field)
	}

	if err := clip.WriteText(text); err != nil {
		notify.Error(v.notifier, "Failed to copy", err.Error())
		return fmt.Errorf("copy %s: %w", field, err)
	}
	notify.Success(v.notifier, "Copied to clipboard", "")
	return nil
}

// Delete removes the diagnostic file, best effort, and then the sheet.
func (v *DetailView) Delete(ctx context.Context, confirm Confirmer) error {
	v.mu.Lock()
	mode := v.mode
	sheet := v.sheet
	v.mu.Unlock()
	if mode == ModeDeleted {
		return fmt.Errorf("delete while %s: %w", mode, ErrInvalidMode)
	}
	if confirm == nil || !confirm.Confirm("Are you sure you want to delete this repair sheet?") {
		return ErrNotConfirmed
	}

	if sheet.HasAttachment() {
		if err := v.repo.DeleteAttachment(ctx, sheet.DiagnosticFileID); err != nil {
			log.WithError(err).WithField("attachment", sheet.DiagnosticFileID).Warn("Failed to delete diagnostic file")
		}
	}
	if err := v.repo.DeleteRepair(ctx, sheet.ID.Hex()); err != nil {
		notify.Error(v.notifier, "Error deleting repair sheet", err.Error())
		return fmt.Errorf("delete repair sheet %s: %w", sheet.ID.Hex(), err)
	}
	notify.Success(v.notifier, "Repair sheet deleted", "")

	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor = nil
	v.mode = ModeDeleted
	return nil
}

// Reading is one labelled measurement.
type Reading struct {
	Label string
	Value string
}

// MeasurementGroup is a titled block of readings.
type MeasurementGroup struct {
	Title    string
	Readings []Reading
}

// Measurements lays out the readings of a sheet. Brake pad readings carry
// their axle's unit.
func Measurements(s models.RepairSheet) []MeasurementGroup {
	front, rear := s.BrakeUnitFor(models.AxleFront), s.BrakeUnitFor(models.AxleRear)
	return []MeasurementGroup{
		{
			Title: "Tire Tread (32nds)",
			Readings: []Reading{
				{"LF", strconv.Itoa(s.TireTread.LF)},
				{"RF", strconv.Itoa(s.TireTread.RF)},
				{"LR", strconv.Itoa(s.TireTread.LR)},
				{"RR", strconv.Itoa(s.TireTread.RR)},
			},
		},
		{
			Title: "Brake Pads",
			Readings: []Reading{
				{"LF", front.Format(s.BrakePads.LF)},
				{"RF", front.Format(s.BrakePads.RF)},
				{"LR", rear.Format(s.BrakePads.LR)},
				{"RR", rear.Format(s.BrakePads.RR)},
			},
		},
		{
			Title: "Tire Pressure (PSI)",
			Readings: []Reading{
				{"Front Left In", strconv.Itoa(s.TirePressure.FrontLeftIn)},
				{"Front Right In", strconv.Itoa(s.TirePressure.FrontRightIn)},
				{"Rear Left In", strconv.Itoa(s.TirePressure.RearLeftIn)},
				{"Rear Right In", strconv.Itoa(s.TirePressure.RearRightIn)},
				{"Front Out", strconv.Itoa(s.TirePressure.FrontOut)},
				{"Rear Out", strconv.Itoa(s.TirePressure.RearOut)},
			},
		},
	}
}

// PrintModel is the condensed printable layout of a sheet.
type PrintModel struct {
	Sheet          models.RepairSheet
	Customer       string
	Groups         []MeasurementGroup
	DiagnosticName string
	DiagnosticText string
}

// Print builds the printable layout. The diagnostic file text only appears
// here, never in the normal view.
func (v *DetailView) Print() (PrintModel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeViewing {
		return PrintModel{}, fmt.Errorf("print while %s: %w", v.mode, ErrInvalidMode)
	}
	model := PrintModel{
		Sheet:    v.sheet,
		Customer: v.sheet.CustomerDisplayName(),
		Groups:   Measurements(v.sheet),
	}
	if v.sheet.HasAttachment() {
		model.DiagnosticName = v.sheet.DiagnosticFileName
		model.DiagnosticText = v.fileText
	}
	return model, nil
}
