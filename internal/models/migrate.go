package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CurrentSchemaVersion is written on every stored sheet.
//
//	0: single customer_name, vehicle_mileage, brake_pad_unit, front_in/rear_in
//	1: split customer name, mileage in/out
//	2: per-axle brake pad units
//	3: tire pressure split left/right
const CurrentSchemaVersion = 3

// StoredTirePressure is the persisted tire pressure group across revisions.
type StoredTirePressure struct {
	FrontLeftIn  *int `bson:"front_left_in,omitempty" json:"front_left_in,omitempty"`
	FrontRightIn *int `bson:"front_right_in,omitempty" json:"front_right_in,omitempty"`
	RearLeftIn   *int `bson:"rear_left_in,omitempty" json:"rear_left_in,omitempty"`
	RearRightIn  *int `bson:"rear_right_in,omitempty" json:"rear_right_in,omitempty"`
	FrontOut     *int `bson:"front_out,omitempty" json:"front_out,omitempty"`
	RearOut      *int `bson:"rear_out,omitempty" json:"rear_out,omitempty"`

	// legacy
	FrontIn *int `bson:"front_in,omitempty" json:"front_in,omitempty"`
	RearIn  *int `bson:"rear_in,omitempty" json:"rear_in,omitempty"`
}

// StoredSheet is a repair sheet document as it may exist in storage: a
// superset of every schema revision. Read it through Upgrade.
type StoredSheet struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SchemaVersion       int                `bson:"schema_version" json:"schema_version"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	TechnicianName      string             `bson:"technician_name" json:"technician_name"`
	RONumber            string             `bson:"ro_number" json:"ro_number"`
	CustomerFirstName   *string            `bson:"customer_first_name,omitempty" json:"customer_first_name,omitempty"`
	CustomerLastName    *string            `bson:"customer_last_name,omitempty" json:"customer_last_name,omitempty"`
	MileageIn           *int               `bson:"vehicle_mileage_in,omitempty" json:"vehicle_mileage_in,omitempty"`
	MileageOut          *int               `bson:"vehicle_mileage_out,omitempty" json:"vehicle_mileage_out,omitempty"`
	CustomerConcern     string             `bson:"customer_concern,omitempty" json:"customer_concern,omitempty"`
	Recommendations     string             `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	ShopRecommendations string             `bson:"shop_recommendations,omitempty" json:"shop_recommendations,omitempty"`
	TireTread           TireTread          `bson:"tire_tread" json:"tire_tread"`
	BrakePads           BrakePads          `bson:"brake_pads" json:"brake_pads"`
	TirePressure        StoredTirePressure `bson:"tire_pressure" json:"tire_pressure"`
	FrontBrakePadUnit   *BrakeUnit         `bson:"front_brake_pad_unit,omitempty" json:"front_brake_pad_unit,omitempty"`
	RearBrakePadUnit    *BrakeUnit         `bson:"rear_brake_pad_unit,omitempty" json:"rear_brake_pad_unit,omitempty"`
	DiagnosticFileID    string             `bson:"diagnostic_file_id,omitempty" json:"diagnostic_file_id,omitempty"`
	DiagnosticFileName  string             `bson:"diagnostic_file_name,omitempty" json:"diagnostic_file_name,omitempty"`

	// legacy
	CustomerName   *string    `bson:"customer_name,omitempty" json:"customer_name,omitempty"`
	VehicleMileage *int       `bson:"vehicle_mileage,omitempty" json:"vehicle_mileage,omitempty"`
	BrakePadUnit   *BrakeUnit `bson:"brake_pad_unit,omitempty" json:"brake_pad_unit,omitempty"`
}

// NewStoredSheet converts a sheet to the current stored shape.
func NewStoredSheet(r RepairSheet) StoredSheet {
	front := r.FrontBrakePadUnit.Normalize()
	rear := r.RearBrakePadUnit.Normalize()
	return StoredSheet{
		ID:                  r.ID,
		SchemaVersion:       CurrentSchemaVersion,
		CreatedAt:           r.CreatedAt,
		TechnicianName:      r.TechnicianName,
		RONumber:            r.RONumber,
		CustomerFirstName:   stringPtr(r.CustomerFirstName),
		CustomerLastName:    stringPtr(r.CustomerLastName),
		MileageIn:           intPtr(r.MileageIn),
		MileageOut:          intPtr(r.MileageOut),
		CustomerConcern:     r.CustomerConcern,
		Recommendations:     r.Recommendations,
		ShopRecommendations: r.ShopRecommendations,
		TireTread:           r.TireTread,
		BrakePads:           r.BrakePads,
		TirePressure: StoredTirePressure{
			FrontLeftIn:  intPtr(r.TirePressure.FrontLeftIn),
			FrontRightIn: intPtr(r.TirePressure.FrontRightIn),
			RearLeftIn:   intPtr(r.TirePressure.RearLeftIn),
			RearRightIn:  intPtr(r.TirePressure.RearRightIn),
			FrontOut:     intPtr(r.TirePressure.FrontOut),
			RearOut:      intPtr(r.TirePressure.RearOut),
		},
		FrontBrakePadUnit:  &front,
		RearBrakePadUnit:   &rear,
		DiagnosticFileID:   r.DiagnosticFileID,
		DiagnosticFileName: r.DiagnosticFileName,
	}
}

// Upgrade migrates a stored sheet of any revision to the current shape.
// Legacy values only fill fields that are absent; present new fields win.
func (s StoredSheet) Upgrade() RepairSheet {
	r := RepairSheet{
		ID:                  s.ID,
		CreatedAt:           s.CreatedAt,
		TechnicianName:      s.TechnicianName,
		RONumber:            s.RONumber,
		CustomerConcern:     s.CustomerConcern,
		Recommendations:     s.Recommendations,
		ShopRecommendations: s.ShopRecommendations,
		TireTread:           s.TireTread,
		BrakePads:           s.BrakePads,
		DiagnosticFileID:    s.DiagnosticFileID,
		DiagnosticFileName:  s.DiagnosticFileName,
	}

	// customer name
	if s.CustomerFirstName == nil && s.CustomerLastName == nil && s.CustomerName != nil {
		r.CustomerFirstName, r.CustomerLastName = splitName(*s.CustomerName)
	} else {
		r.CustomerFirstName = deref(s.CustomerFirstName)
		r.CustomerLastName = deref(s.CustomerLastName)
	}

	// mileage
	r.MileageIn = derefInt(firstInt(s.MileageIn, s.VehicleMileage))
	r.MileageOut = derefInt(s.MileageOut)

	// brake pad units
	r.FrontBrakePadUnit = firstUnit(s.FrontBrakePadUnit, s.BrakePadUnit)
	r.RearBrakePadUnit = firstUnit(s.RearBrakePadUnit, s.BrakePadUnit)

	// tire pressure
	tp := s.TirePressure
	r.TirePressure = TirePressure{
		FrontLeftIn:  derefInt(firstInt(tp.FrontLeftIn, tp.FrontIn)),
		FrontRightIn: derefInt(firstInt(tp.FrontRightIn, tp.FrontIn)),
		RearLeftIn:   derefInt(firstInt(tp.RearLeftIn, tp.RearIn)),
		RearRightIn:  derefInt(firstInt(tp.RearRightIn, tp.RearIn)),
		FrontOut:     derefInt(tp.FrontOut),
		RearOut:      derefInt(tp.RearOut),
	}
	return r
}

func splitName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstUnit(vals ...*BrakeUnit) BrakeUnit {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v.Normalize()
		}
	}
	return UnitMillimeters
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func stringPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }
