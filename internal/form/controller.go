package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/ukydev/worx-notes/internal/notify"
	"github.com/ukydev/worx-notes/internal/prefs"
)

// ErrSubmitting is returned when Submit is called while a submission is
// still in flight.
var ErrSubmitting = errors.New("submission already in progress")

var validate = validator.New()

// requiredFields is what a sheet must carry before it is written.
type requiredFields struct {
	TechnicianName string `validate:"required"`
	RONumber       string `validate:"required"`
}

var fieldLabels = map[string]string{
	"TechnicianName": "technician name",
	"RONumber":       "RO number",
}

// ValidationError lists the required fields that are missing.
type ValidationError struct {
	Fields []string
	err    validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Validate checks the required fields of a sheet after trimming.
func Validate(sheet models.RepairSheet) error {
	err := validate.Struct(requiredFields{
		TechnicianName: strings.TrimSpace(sheet.TechnicianName),
		RONumber:       strings.TrimSpace(sheet.RONumber),
	})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{err: fieldErrs}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, fieldLabels[fe.Field()])
	}
	return verr
}

// Controller holds the state of one create or edit form.
type Controller struct {
	// OnComplete is called with the written sheet after a successful submit.
	OnComplete func(models.RepairSheet)
	// Preferences receives the technician name after a successful create.
	Preferences prefs.Saver

	repo     db.Repository
	notifier notify.Notifier
	now      func() time.Time

	mu         sync.Mutex
	id         string
	draft      models.RepairSheet
	upload     *Upload
	submitting bool
}

// New returns a controller for a new repair sheet.
func New(repo db.Repository, notifier notify.Notifier) *Controller {
	return &Controller{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		draft:    models.NewRepairSheet(),
	}
}

// ForSheet returns a controller that overwrites an existing sheet.
func ForSheet(repo db.Repository, notifier notify.Notifier, sheet models.RepairSheet) *Controller {
	c := New(repo, notifier)
	c.id = sheet.ID.Hex()
	c.draft = sheet
	return c
}

// IsEdit reports whether the controller updates an existing sheet.
func (c *Controller) IsEdit() bool {
	return c.id != ""
}

// Draft returns a copy of the current form values.
func (c *Controller) Draft() models.RepairSheet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Set routes a raw input value to a field.
func (c *Controller) Set(name, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Apply(&c.draft, name, raw)
}

// ToggleBrakeUnit flips the unit of one axle.
func (c *Controller) ToggleBrakeUnit(axle models.Axle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.ToggleBrakeUnit(axle)
}

// Attach selects the diagnostic file to upload on submit. A file that is not
// plain text is rejected and clears the selection.
func (c *Controller) Attach(u Upload) error {
	if err := CheckPlainText(u); err != nil {
		c.mu.Lock()
		c.upload = nil
		c.mu.Unlock()
		notify.Error(c.notifier, "Invalid file type", "Please upload a text (.txt) file.")
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upload = &u
	return nil
}

// ClearAttachment drops the selected file.
func (c *Controller) ClearAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upload = nil
}

// SelectedFile returns the name of the file chosen for upload.
func (c *Controller) SelectedFile() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upload == nil {
		return "", false
	}
	return c.upload.Filename, true
}

// Validate checks the required fields of the draft.
func (c *Controller) Validate() error {
	return Validate(c.Draft())
}

// Submit validates the draft, uploads the selected file and writes the sheet.
// On failure the form state is kept so the user can retry.
func (c *Controller) Submit(ctx context.Context) (models.RepairSheet, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return models.RepairSheet{}, ErrSubmitting
	}
	draft := c.draft
	upload := c.upload
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	if err := Validate(draft); err != nil {
		notify.Error(c.notifier, "Missing information", "Please fill in all required fields.")
		return models.RepairSheet{}, err
	}

	saved, err := c.write(ctx, draft, upload)
	if err != nil {
		notify.Error(c.notifier, "Error saving repair sheet", err.Error())
		return models.RepairSheet{}, err
	}

	c.mu.Lock()
	if c.IsEdit() {
		c.draft = saved
	} else {
		// ready for the next sheet, same technician
		c.draft = models.NewRepairSheet()
		c.draft.TechnicianName = saved.TechnicianName
	}
	c.upload = nil
	c.mu.Unlock()

	if c.IsEdit() {
		notify.Success(c.notifier, "Repair sheet updated", "")
	} else {
		notify.Success(c.notifier, "Repair sheet saved", "")
		if c.Preferences != nil {
			c.Preferences.SaveTechnician(saved.TechnicianName)
		}
	}
	if c.OnComplete != nil {
		c.OnComplete(saved)
	}
	return saved, nil
}

func (c *Controller) write(ctx context.Context, draft models.RepairSheet, upload *Upload) (models.RepairSheet, error) {
	if upload != nil {
		name := StorageName(upload.Filename, c.now())
		ref, err := c.repo.UploadAttachment(ctx, name, bytes.NewReader(upload.Content))
		if err != nil {
			return models.RepairSheet{}, fmt.Errorf("upload diagnostic file: %w", err)
		}
		if previous := draft.DiagnosticFileID; c.IsEdit() && previous != "" {
			if err := c.repo.DeleteAttachment(ctx, previous); err != nil {
				log.WithError(err).WithField("attachment", previous).Warn("Failed to delete replaced diagnostic file")
			}
		}
		draft.DiagnosticFileID = ref
		draft.DiagnosticFileName = upload.Filename
	}

	if c.IsEdit() {
		return c.repo.UpdateRepair(ctx, c.id, draft)
	}
	return c.repo.InsertRepair(ctx, draft)
}
