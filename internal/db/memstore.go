package db

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ukydev/worx-notes/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository is an in-process Repository. Sheets are kept in their
// stored shape so reads go through the same migration as MongoDB reads.
type MemoryRepository struct {
	mu          sync.RWMutex
	sheets      map[primitive.ObjectID]models.StoredSheet
	files       map[string]string
	subscribers map[*memorySubscription]struct{}
	now         func() time.Time
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sheets:      make(map[primitive.ObjectID]models.StoredSheet),
		files:       make(map[string]string),
		subscribers: make(map[*memorySubscription]struct{}),
		now:         time.Now,
	}
}

// Seed stores a document as-is, bypassing the current-shape conversion.
// It is used to load documents written by older schema revisions.
func (m *MemoryRepository) Seed(stored models.StoredSheet) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}
	m.sheets[stored.ID] = stored
	return stored.ID
}

// InsertRepair assigns an ID and creation time and stores the sheet.
func (m *MemoryRepository) InsertRepair(ctx context.Context, sheet models.RepairSheet) (models.RepairSheet, error) {
	if err := ctx.Err(); err != nil {
		return models.RepairSheet{}, err
	}
	m.mu.Lock()
	sheet.ID = primitive.NewObjectID()
	sheet.CreatedAt = m.now().UTC().Truncate(time.Millisecond)
	stored := models.NewStoredSheet(sheet)
	m.sheets[sheet.ID] = stored
	m.mu.Unlock()

	sheet = stored.Upgrade()
	m.publish(ChangeEvent{Type: ChangeInsert, ID: sheet.ID.Hex(), Sheet: sheet})
	return sheet, nil
}

// FindRepairByID finds a repair sheet by its ID.
func (m *MemoryRepository) FindRepairByID(ctx context.Context, id string) (*models.RepairSheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	m.mu.RLock()
	stored, ok := m.sheets[objectID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
	}
	sheet := stored.Upgrade()
	return &sheet, nil
}

// FindRepairs returns every repair sheet in the requested order.
func (m *MemoryRepository) FindRepairs(ctx context.Context, opts ListOptions) ([]models.RepairSheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	sheets := make([]models.RepairSheet, 0, len(m.sheets))
	for _, stored := range m.sheets {
		sheets = append(sheets, stored.Upgrade())
	}
	m.mu.RUnlock()

	SortSheets(sheets, opts)
	return sheets, nil
}

// UpdateRepair overwrites every field of a sheet except its ID and
// creation time.
func (m *MemoryRepository) UpdateRepair(ctx context.Context, id string, sheet models.RepairSheet) (models.RepairSheet, error) {
	if err := ctx.Err(); err != nil {
		return models.RepairSheet{}, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.RepairSheet{}, fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	m.mu.Lock()
	existing, ok := m.sheets[objectID]
	if !ok {
		m.mu.Unlock()
		return models.RepairSheet{}, fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
	}
	sheet.ID = objectID
	sheet.CreatedAt = existing.CreatedAt
	stored := models.NewStoredSheet(sheet)
	m.sheets[objectID] = stored
	m.mu.Unlock()

	sheet = stored.Upgrade()
	m.publish(ChangeEvent{Type: ChangeUpdate, ID: id, Sheet: sheet})
	return sheet, nil
}

// DeleteRepair deletes a repair sheet by its ID.
func (m *MemoryRepository) DeleteRepair(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	m.mu.Lock()
	_, ok := m.sheets[objectID]
	delete(m.sheets, objectID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
	}

	m.publish(ChangeEvent{Type: ChangeDelete, ID: id})
	return nil
}

// UploadAttachment stores a diagnostic file and returns its reference.
func (m *MemoryRepository) UploadAttachment(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	ref := primitive.NewObjectID().Hex()
	m.mu.Lock()
	m.files[ref] = string(data)
	m.mu.Unlock()
	return ref, nil
}

// DownloadAttachment reads a stored diagnostic file as text.
func (m *MemoryRepository) DownloadAttachment(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[ref]
	if !ok {
		return "", fmt.Errorf("attachment %s: %w", ref, ErrNotFound)
	}
	return content, nil
}

// DeleteAttachment removes a stored diagnostic file.
func (m *MemoryRepository) DeleteAttachment(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[ref]; !ok {
		return fmt.Errorf("attachment %s: %w", ref, ErrNotFound)
	}
	delete(m.files, ref)
	return nil
}

// HasAttachment reports whether a file reference is stored.
func (m *MemoryRepository) HasAttachment(ref string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[ref]
	return ok
}

// Subscribe registers a change feed subscriber. Events are buffered; a
// subscriber that falls behind by more than the buffer drops events.
func (m *MemoryRepository) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		repo:   m,
		events: make(chan ChangeEvent, 64),
		closed: make(chan struct{}),
	}
	m.mu.Lock()
	m.subscribers[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closed:
		}
	}()
	return sub, nil
}

// SubscriberCount returns the number of open subscriptions.
func (m *MemoryRepository) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryRepository) publish(event ChangeEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subscribers {
		select {
		case sub.events <- event:
		default:
		}
	}
}

type memorySubscription struct {
	repo   *MemoryRepository
	events chan ChangeEvent
	closed chan struct{}
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan ChangeEvent {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.repo.mu.Lock()
		delete(s.repo.subscribers, s)
		close(s.events)
		s.repo.mu.Unlock()
		close(s.closed)
	})
	return nil
}
