package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/worx-notes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConnectMongo_EmptyURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "")
	if err == nil {
		t.Error("expected error for empty URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestMongoRepository_NilCollection(t *testing.T) {
	repo := &MongoRepository{}
	ctx := context.Background()

	_, err := repo.InsertRepair(ctx, models.RepairSheet{})
	assert.Error(t, err)
	_, err = repo.FindRepairs(ctx, ListOptions{})
	assert.Error(t, err)
	_, err = repo.UploadAttachment(ctx, "a.txt", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = repo.Subscribe(ctx)
	assert.Error(t, err)
}

func TestToChangeEvent(t *testing.T) {
	stored := models.NewStoredSheet(models.RepairSheet{TechnicianName: "Tech", RONumber: "RO-9"})

	ev, ok := toChangeEvent(changeDocument{OperationType: "insert", FullDocument: &stored})
	require.True(t, ok)
	assert.Equal(t, ChangeInsert, ev.Type)
	assert.Equal(t, "RO-9", ev.Sheet.RONumber)

	ev, ok = toChangeEvent(changeDocument{OperationType: "replace", FullDocument: &stored})
	require.True(t, ok)
	assert.Equal(t, ChangeUpdate, ev.Type)

	ev, ok = toChangeEvent(changeDocument{OperationType: "delete"})
	require.True(t, ok)
	assert.Equal(t, ChangeDelete, ev.Type)

	_, ok = toChangeEvent(changeDocument{OperationType: "update"})
	assert.False(t, ok, "update without a looked-up document is dropped")

	_, ok = toChangeEvent(changeDocument{OperationType: "drop"})
	assert.False(t, ok)
}

// Integration test (requires running MongoDB)
func TestMongoRepository_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer client.Disconnect(ctx)

	database := client.Database("test_worx_notes")
	database.Collection(RepairSheetsCollection).Drop(ctx)

	repo, err := NewMongoRepository(database)
	require.NoError(t, err)

	sheet := models.NewRepairSheet()
	sheet.TechnicianName = "J. Rivera"
	sheet.RONumber = "RO-1042"
	sheet.TireTread = models.TireTread{LF: 8, RF: 8, LR: 6, RR: 6}

	ref, err := repo.UploadAttachment(ctx, "scan.txt", strings.NewReader("P0420"))
	require.NoError(t, err)
	sheet.DiagnosticFileID = ref
	sheet.DiagnosticFileName = "scan.txt"

	sheet.RearBrakePadUnit = "inches"

	created, err := repo.InsertRepair(ctx, sheet)
	require.NoError(t, err)
	assert.Equal(t, models.UnitMillimeters, created.RearBrakePadUnit, "insert returns the stored shape")

	found, err := repo.FindRepairByID(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, created.TireTread, found.TireTread)
	assert.Equal(t, created.CreatedAt, found.CreatedAt)

	found.RONumber = "RO-1042B"
	found.FrontBrakePadUnit = ""
	updated, err := repo.UpdateRepair(ctx, created.ID.Hex(), *found)
	require.NoError(t, err)
	assert.Equal(t, models.UnitMillimeters, updated.FrontBrakePadUnit, "update returns the stored shape")

	all, err := repo.FindRepairs(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "RO-1042B", all[0].RONumber)

	text, err := repo.DownloadAttachment(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "P0420", text)

	// a document written before the tire pressure split
	legacy := bson.M{"technician_name": "Old", "ro_number": "RO-0", "tire_pressure": bson.M{"front_in": 30}}
	_, err = database.Collection(RepairSheetsCollection).InsertOne(ctx, legacy)
	require.NoError(t, err)
	old, err := repo.FindRepairs(ctx, ListOptions{SortField: "ro_number", Direction: Ascending})
	require.NoError(t, err)
	require.NotEmpty(t, old)
	assert.Equal(t, 30, old[0].TirePressure.FrontRightIn)

	// legacy single-field names order by their upgraded first name
	_, err = database.Collection(RepairSheetsCollection).InsertOne(ctx, bson.M{"ro_number": "RO-Z", "customer_name": "Zoe Adams"})
	require.NoError(t, err)
	byName, err := repo.FindRepairs(ctx, ListOptions{SortField: "customer_first_name", Direction: Descending})
	require.NoError(t, err)
	require.NotEmpty(t, byName)
	assert.Equal(t, "RO-Z", byName[0].RONumber)

	require.NoError(t, repo.DeleteAttachment(ctx, ref))
	require.NoError(t, repo.DeleteRepair(ctx, created.ID.Hex()))
	assert.True(t, errors.Is(repo.DeleteRepair(ctx, created.ID.Hex()), ErrNotFound))
}
