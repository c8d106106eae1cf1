package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmptyValue is shown wherever an optional text value is missing.
const EmptyValue = "—"

// TireTread holds tread depth readings in 32nds of an inch.
type TireTread struct {
	LF int `bson:"lf" json:"lf"`
	RF int `bson:"rf" json:"rf"`
	LR int `bson:"lr" json:"lr"`
	RR int `bson:"rr" json:"rr"`
}

// BrakePads holds pad readings. The unit of each axle lives on the sheet.
type BrakePads struct {
	LF int `bson:"lf" json:"lf"`
	RF int `bson:"rf" json:"rf"`
	LR int `bson:"lr" json:"lr"`
	RR int `bson:"rr" json:"rr"`
}

// TirePressure holds pressure readings in PSI. Outgoing pressure is recorded
// once per axle.
type TirePressure struct {
	FrontLeftIn  int `bson:"front_left_in" json:"front_left_in"`
	FrontRightIn int `bson:"front_right_in" json:"front_right_in"`
	RearLeftIn   int `bson:"rear_left_in" json:"rear_left_in"`
	RearRightIn  int `bson:"rear_right_in" json:"rear_right_in"`
	FrontOut     int `bson:"front_out" json:"front_out"`
	RearOut      int `bson:"rear_out" json:"rear_out"`
}

// RepairSheet is one shop visit in its current shape.
type RepairSheet struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	TechnicianName      string             `bson:"technician_name" json:"technician_name"`
	RONumber            string             `bson:"ro_number" json:"ro_number"`
	CustomerFirstName   string             `bson:"customer_first_name" json:"customer_first_name,omitempty"`
	CustomerLastName    string             `bson:"customer_last_name" json:"customer_last_name,omitempty"`
	MileageIn           int                `bson:"vehicle_mileage_in" json:"vehicle_mileage_in,omitempty"`
	MileageOut          int                `bson:"vehicle_mileage_out" json:"vehicle_mileage_out,omitempty"`
	CustomerConcern     string             `bson:"customer_concern" json:"customer_concern,omitempty"`
	Recommendations     string             `bson:"recommendations" json:"recommendations,omitempty"`
	ShopRecommendations string             `bson:"shop_recommendations" json:"shop_recommendations,omitempty"`
	TireTread           TireTread          `bson:"tire_tread" json:"tire_tread"`
	BrakePads           BrakePads          `bson:"brake_pads" json:"brake_pads"`
	TirePressure        TirePressure       `bson:"tire_pressure" json:"tire_pressure"`
	FrontBrakePadUnit   BrakeUnit          `bson:"front_brake_pad_unit" json:"front_brake_pad_unit"`
	RearBrakePadUnit    BrakeUnit          `bson:"rear_brake_pad_unit" json:"rear_brake_pad_unit"`
	DiagnosticFileID    string             `bson:"diagnostic_file_id,omitempty" json:"diagnostic_file_id,omitempty"`
	DiagnosticFileName  string             `bson:"diagnostic_file_name,omitempty" json:"diagnostic_file_name,omitempty"`
}

// NewRepairSheet returns an empty sheet with default brake units.
func NewRepairSheet() RepairSheet {
	return RepairSheet{
		FrontBrakePadUnit: UnitMillimeters,
		RearBrakePadUnit:  UnitMillimeters,
	}
}

// HasAttachment reports whether a diagnostic file is linked to the sheet.
func (r RepairSheet) HasAttachment() bool {
	return r.DiagnosticFileID != ""
}

// CustomerDisplayName composes the customer's name for lists and headers.
func (r RepairSheet) CustomerDisplayName() string {
	first := strings.TrimSpace(r.CustomerFirstName)
	last := strings.TrimSpace(r.CustomerLastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return EmptyValue
	}
}

// BrakeUnitFor returns the unit of the given axle.
func (r RepairSheet) BrakeUnitFor(axle Axle) BrakeUnit {
	if axle == AxleRear {
		return r.RearBrakePadUnit.Normalize()
	}
	return r.FrontBrakePadUnit.Normalize()
}

// ToggleBrakeUnit flips the unit of one axle and leaves the readings alone.
func (r *RepairSheet) ToggleBrakeUnit(axle Axle) {
	if axle == AxleRear {
		r.RearBrakePadUnit = r.RearBrakePadUnit.Toggle()
		return
	}
	r.FrontBrakePadUnit = r.FrontBrakePadUnit.Toggle()
}
