package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ukydev/worx-notes/internal/models"
)

// ErrUnknownField is returned for a field name the record does not have.
var ErrUnknownField = errors.New("unknown field")

// ParseMeasurement coerces a raw input string to an integer reading. Empty
// and non-numeric input reads as 0.
func ParseMeasurement(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// Apply routes a raw value to the sheet field it names. Nested measurements
// are addressed as "group.field", e.g. "tire_tread.lf".
func Apply(sheet *models.RepairSheet, name, raw string) error {
	if group, field, nested := strings.Cut(name, "."); nested {
		target := measurementField(sheet, group, field)
		if target == nil {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		*target = ParseMeasurement(raw)
		return nil
	}

	switch name {
	case "technician_name":
		sheet.TechnicianName = raw
	case "ro_number":
		sheet.RONumber = raw
	case "customer_first_name":
		sheet.CustomerFirstName = raw
	case "customer_last_name":
		sheet.CustomerLastName = raw
	case "vehicle_mileage_in":
		sheet.MileageIn = ParseMeasurement(raw)
	case "vehicle_mileage_out":
		sheet.MileageOut = ParseMeasurement(raw)
	case "customer_concern":
		sheet.CustomerConcern = raw
	case "recommendations":
		sheet.Recommendations = raw
	case "shop_recommendations":
		sheet.ShopRecommendations = raw
	case "front_brake_pad_unit":
		sheet.FrontBrakePadUnit = models.BrakeUnit(raw).Normalize()
	case "rear_brake_pad_unit":
		sheet.RearBrakePadUnit = models.BrakeUnit(raw).Normalize()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

func measurementField(sheet *models.RepairSheet, group, field string) *int {
	switch group {
	case "tire_tread":
		return corner(&sheet.TireTread.LF, &sheet.TireTread.RF, &sheet.TireTread.LR, &sheet.TireTread.RR, field)
	case "brake_pads":
		return corner(&sheet.BrakePads.LF, &sheet.BrakePads.RF, &sheet.BrakePads.LR, &sheet.BrakePads.RR, field)
	case "tire_pressure":
		p := &sheet.TirePressure
		switch field {
		case "front_left_in":
			return &p.FrontLeftIn
		case "front_right_in":
			return &p.FrontRightIn
		case "rear_left_in":
			return &p.RearLeftIn
		case "rear_right_in":
			return &p.RearRightIn
		case "front_out":
			return &p.FrontOut
		case "rear_out":
			return &p.RearOut
		}
	}
	return nil
}

func corner(lf, rf, lr, rr *int, field string) *int {
	switch field {
	case "lf":
		return lf
	case "rf":
		return rf
	case "lr":
		return lr
	case "rr":
		return rr
	}
	return nil
}

// FieldNames lists every name Apply accepts, in form order.
func FieldNames() []string {
	names := []string{
		"technician_name", "ro_number",
		"customer_first_name", "customer_last_name",
		"vehicle_mileage_in", "vehicle_mileage_out",
	}
	for _, c := range []string{"lf", "rf", "lr", "rr"} {
		names = append(names, "tire_tread."+c)
	}
	for _, c := range []string{"lf", "rf", "lr", "rr"} {
		names = append(names, "brake_pads."+c)
	}
	names = append(names, "front_brake_pad_unit", "rear_brake_pad_unit")
	for _, f := range []string{"front_left_in", "front_right_in", "rear_left_in", "rear_right_in", "front_out", "rear_out"} {
		names = append(names, "tire_pressure."+f)
	}
	return append(names, "customer_concern", "recommendations", "shop_recommendations")
}

// Values renders every field of a sheet as the raw string Apply accepts.
// Unset mileage renders empty.
func Values(sheet models.RepairSheet) map[string]string {
	values := map[string]string{
		"technician_name":      sheet.TechnicianName,
		"ro_number":            sheet.RONumber,
		"customer_first_name":  sheet.CustomerFirstName,
		"customer_last_name":   sheet.CustomerLastName,
		"vehicle_mileage_in":   mileage(sheet.MileageIn),
		"vehicle_mileage_out":  mileage(sheet.MileageOut),
		"customer_concern":     sheet.CustomerConcern,
		"recommendations":      sheet.Recommendations,
		"shop_recommendations": sheet.ShopRecommendations,
		"front_brake_pad_unit": string(sheet.FrontBrakePadUnit.Normalize()),
		"rear_brake_pad_unit":  string(sheet.RearBrakePadUnit.Normalize()),
	}
	for _, name := range FieldNames() {
		group, field, nested := strings.Cut(name, ".")
		if !nested {
			continue
		}
		if target := measurementField(&sheet, group, field); target != nil {
			values[name] = strconv.Itoa(*target)
		}
	}
	return values
}

func mileage(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
