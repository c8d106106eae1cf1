package form

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/worx-notes/internal/models"
)

func TestParseMeasurement(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"7", 7},
		{" 32 ", 32},
		{"-2", -2},
		{"abc", 0},
		{"7.5", 0},
		{"NaN", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMeasurement(tt.raw), "raw %q", tt.raw)
	}
}

func TestApply_NestedFields(t *testing.T) {
	sheet := models.NewRepairSheet()

	require.NoError(t, Apply(&sheet, "tire_tread.lr", "6"))
	require.NoError(t, Apply(&sheet, "brake_pads.rf", "40"))
	require.NoError(t, Apply(&sheet, "tire_pressure.rear_right_in", "35"))
	require.NoError(t, Apply(&sheet, "tire_pressure.front_out", "36"))
	require.NoError(t, Apply(&sheet, "vehicle_mileage_in", "84211"))
	require.NoError(t, Apply(&sheet, "rear_brake_pad_unit", "%"))

	assert.Equal(t, 6, sheet.TireTread.LR)
	assert.Equal(t, 40, sheet.BrakePads.RF)
	assert.Equal(t, 35, sheet.TirePressure.RearRightIn)
	assert.Equal(t, 36, sheet.TirePressure.FrontOut)
	assert.Equal(t, 84211, sheet.MileageIn)
	assert.Equal(t, models.UnitPercent, sheet.RearBrakePadUnit)
	assert.Equal(t, models.UnitMillimeters, sheet.FrontBrakePadUnit)
}

func TestApply_UnknownField(t *testing.T) {
	sheet := models.NewRepairSheet()
	for _, name := range []string{"tire_tread.xx", "wheels.lf", "tire_pressure.front_in", "owner"} {
		assert.ErrorIs(t, Apply(&sheet, name, "1"), ErrUnknownField, name)
	}
}

func TestFieldNames_AllApply(t *testing.T) {
	sheet := models.NewRepairSheet()
	for _, name := range FieldNames() {
		assert.NoError(t, Apply(&sheet, name, "1"), name)
	}
}

func TestValues_RoundTrip(t *testing.T) {
	want := models.NewRepairSheet()
	want.TechnicianName = "Maria"
	want.RONumber = "RO-991"
	want.CustomerLastName = "Okafor"
	want.MileageIn = 120400
	want.TireTread = models.TireTread{LF: 7, RF: 7, LR: 5, RR: 4}
	want.BrakePads = models.BrakePads{LF: 60, RF: 55, LR: 8, RR: 8}
	want.FrontBrakePadUnit = models.UnitPercent
	want.TirePressure = models.TirePressure{FrontLeftIn: 28, FrontRightIn: 30, RearLeftIn: 31, RearRightIn: 31, FrontOut: 35, RearOut: 35}
	want.ShopRecommendations = "Rotate tires\nReplace rear pads"

	values := Values(want)
	assert.Equal(t, "", values["vehicle_mileage_out"])
	assert.Len(t, values, len(FieldNames()))

	got := models.NewRepairSheet()
	for name, raw := range values {
		require.NoError(t, Apply(&got, name, raw), name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckPlainText(t *testing.T) {
	assert.NoError(t, CheckPlainText(Upload{Filename: "a.txt", Content: []byte("hello")}), "type from extension")
	assert.ErrorIs(t, CheckPlainText(Upload{Filename: "a.png", Content: []byte("hello")}), ErrUnsupportedFile)
	assert.ErrorIs(t, CheckPlainText(Upload{Filename: "fake.txt", ContentType: "text/plain", Content: []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}}),
		ErrUnsupportedFile, "binary content with a text label")
}

func TestStorageName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "1700000000123_scan.txt", StorageName("scan.txt", at))
	assert.Equal(t, "1700000000123_scan.txt", StorageName("../../scan.txt", at))
}
