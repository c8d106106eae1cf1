package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ukydev/worx-notes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// RepairSheetsCollection holds one document per shop visit.
	RepairSheetsCollection = "repair_sheets"
	// DiagnosticFilesBucket is the GridFS bucket for diagnostic attachments.
	DiagnosticFilesBucket = "diagnostic_files"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoRepository stores repair sheets in a collection and their diagnostic
// files in a GridFS bucket.
type MongoRepository struct {
	Collection *mongo.Collection
	Bucket     *gridfs.Bucket
}

// NewMongoRepository opens the repair sheet collection and file bucket.
func NewMongoRepository(database *mongo.Database) (*MongoRepository, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(DiagnosticFilesBucket))
	if err != nil {
		return nil, fmt.Errorf("gridfs.NewBucket error: %w", err)
	}
	return &MongoRepository{
		Collection: database.Collection(RepairSheetsCollection),
		Bucket:     bucket,
	}, nil
}

// InsertRepair assigns an ID and creation time and inserts the sheet.
func (c *MongoRepository) InsertRepair(ctx context.Context, sheet models.RepairSheet) (models.RepairSheet, error) {
	if c.Collection == nil {
		return models.RepairSheet{}, fmt.Errorf("mongo collection is nil")
	}
	sheet.ID = primitive.NewObjectID()
	sheet.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	stored := models.NewStoredSheet(sheet)
	if _, err := c.Collection.InsertOne(ctx, stored); err != nil {
		return models.RepairSheet{}, err
	}
	return stored.Upgrade(), nil
}

// FindRepairByID finds a repair sheet by its ID.
func (c *MongoRepository) FindRepairByID(ctx context.Context, id string) (*models.RepairSheet, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	var stored models.StoredSheet
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	sheet := stored.Upgrade()
	return &sheet, nil
}

// FindRepairs returns every repair sheet in the requested order.
func (c *MongoRepository) FindRepairs(ctx context.Context, opts ListOptions) ([]models.RepairSheet, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	// legacy documents keep their customer name in another field, so order
	// after the upgrade
	cursor, err := c.Collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stored []models.StoredSheet
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, err
	}

	sheets := make([]models.RepairSheet, 0, len(stored))
	for _, s := range stored {
		sheets = append(sheets, s.Upgrade())
	}
	SortSheets(sheets, opts)
	return sheets, nil
}

// UpdateRepair overwrites every field of a sheet except its ID and
// creation time.
func (c *MongoRepository) UpdateRepair(ctx context.Context, id string, sheet models.RepairSheet) (models.RepairSheet, error) {
	if c.Collection == nil {
		return models.RepairSheet{}, fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.RepairSheet{}, fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	var existing struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID},
		options.FindOne().SetProjection(bson.M{"created_at": 1})).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.RepairSheet{}, fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
		}
		return models.RepairSheet{}, err
	}

	sheet.ID = objectID
	sheet.CreatedAt = existing.CreatedAt
	stored := models.NewStoredSheet(sheet)
	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": objectID}, stored)
	if err != nil {
		return models.RepairSheet{}, err
	}
	if result.MatchedCount == 0 {
		return models.RepairSheet{}, fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
	}
	return stored.Upgrade(), nil
}

// DeleteRepair deletes a repair sheet by its ID.
func (c *MongoRepository) DeleteRepair(ctx context.Context, id string) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid repair sheet ID %q: %w", id, ErrNotFound)
	}

	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("repair sheet %s: %w", id, ErrNotFound)
	}
	return nil
}

// UploadAttachment stores a diagnostic file and returns its reference.
func (c *MongoRepository) UploadAttachment(ctx context.Context, name string, content io.Reader) (string, error) {
	if c.Bucket == nil {
		return "", fmt.Errorf("gridfs bucket is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fileID, err := c.Bucket.UploadFromStream(name, content)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return fileID.Hex(), nil
}

// DownloadAttachment reads a stored diagnostic file as text.
func (c *MongoRepository) DownloadAttachment(ctx context.Context, ref string) (string, error) {
	if c.Bucket == nil {
		return "", fmt.Errorf("gridfs bucket is nil")
	}
	fileID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return "", fmt.Errorf("invalid attachment reference %q: %w", ref, ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := c.Bucket.DownloadToStream(fileID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return "", fmt.Errorf("attachment %s: %w", ref, ErrNotFound)
		}
		return "", err
	}
	return buf.String(), nil
}

// DeleteAttachment removes a stored diagnostic file.
func (c *MongoRepository) DeleteAttachment(ctx context.Context, ref string) error {
	if c.Bucket == nil {
		return fmt.Errorf("gridfs bucket is nil")
	}
	fileID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return fmt.Errorf("invalid attachment reference %q: %w", ref, ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Bucket.Delete(fileID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("attachment %s: %w", ref, ErrNotFound)
		}
		return err
	}
	return nil
}

// changeDocument is the subset of a change stream event the feed needs.
type changeDocument struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *models.StoredSheet `bson:"fullDocument"`
}

// Subscribe opens a change stream on the repair sheet collection. Change
// streams need a replica set.
func (c *MongoRepository) Subscribe(ctx context.Context) (Subscription, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := c.Collection.Watch(streamCtx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", RepairSheetsCollection, err)
	}

	sub := &mongoSubscription{
		events: make(chan ChangeEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(streamCtx, stream)
	return sub, nil
}

// mongoSubscription pumps a change stream into a channel.
type mongoSubscription struct {
	events chan ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *mongoSubscription) Events() <-chan ChangeEvent {
	return s.events
}

func (s *mongoSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	if errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

func (s *mongoSubscription) run(ctx context.Context, stream *mongo.ChangeStream) {
	defer close(s.done)
	defer close(s.events)
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var doc changeDocument
		if err := stream.Decode(&doc); err != nil {
			s.err = fmt.Errorf("decode change event: %w", err)
			return
		}
		event, ok := toChangeEvent(doc)
		if !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-ctx.Done():
			return
		}
	}
	s.err = stream.Err()
}

func toChangeEvent(doc changeDocument) (ChangeEvent, bool) {
	event := ChangeEvent{ID: doc.DocumentKey.ID.Hex()}
	switch doc.OperationType {
	case "insert":
		event.Type = ChangeInsert
	case "update", "replace":
		event.Type = ChangeUpdate
	case "delete":
		event.Type = ChangeDelete
		return event, true
	default:
		return ChangeEvent{}, false
	}
	if doc.FullDocument == nil {
		// updateLookup found nothing: the sheet was deleted in the meantime
		return ChangeEvent{}, false
	}
	event.Sheet = doc.FullDocument.Upgrade()
	return event, true
}
