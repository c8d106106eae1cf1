package db

import (
	"context"
	"errors"
	"io"

	"github.com/ukydev/worx-notes/internal/models"
)

// ErrNotFound is returned when a repair sheet or attachment does not exist.
var ErrNotFound = errors.New("not found")

// SortDirection orders a repair sheet listing.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// ListOptions selects the ordering of a repair sheet listing.
type ListOptions struct {
	SortField string
	Direction SortDirection
}

// ChangeType is the kind of a change feed event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one insert, update or delete on the repair sheet collection.
// Sheet is empty for deletes.
type ChangeEvent struct {
	Type  ChangeType         `json:"type"`
	ID    string             `json:"id"`
	Sheet models.RepairSheet `json:"sheet"`
}

// Subscription is a live change feed. Close tears it down and closes Events.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// RepairCollection defines the interface for repair sheet operations.
type RepairCollection interface {
	InsertRepair(ctx context.Context, sheet models.RepairSheet) (models.RepairSheet, error)
	FindRepairByID(ctx context.Context, id string) (*models.RepairSheet, error)
	FindRepairs(ctx context.Context, opts ListOptions) ([]models.RepairSheet, error)
	UpdateRepair(ctx context.Context, id string, sheet models.RepairSheet) (models.RepairSheet, error)
	DeleteRepair(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// AttachmentStore defines the interface for diagnostic file storage.
type AttachmentStore interface {
	UploadAttachment(ctx context.Context, name string, content io.Reader) (string, error)
	DownloadAttachment(ctx context.Context, ref string) (string, error)
	DeleteAttachment(ctx context.Context, ref string) error
}

// Repository is everything the application needs from the backend.
type Repository interface {
	RepairCollection
	AttachmentStore
}
