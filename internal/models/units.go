package models

import "fmt"

// BrakeUnit is the unit a brake pad reading is taken in.
type BrakeUnit string

const (
	UnitMillimeters BrakeUnit = "MM"
	UnitPercent     BrakeUnit = "%"
)

// Axle selects the front or rear brake pads.
type Axle string

const (
	AxleFront Axle = "front"
	AxleRear  Axle = "rear"
)

// IsValidAxle checks if an axle name is known
func IsValidAxle(axle Axle) bool {
	switch axle {
	case AxleFront, AxleRear:
		return true
	default:
		return false
	}
}

// Normalize maps unknown or empty units to millimeters.
func (u BrakeUnit) Normalize() BrakeUnit {
	if u == UnitPercent {
		return UnitPercent
	}
	return UnitMillimeters
}

// Toggle flips between millimeters and percent.
func (u BrakeUnit) Toggle() BrakeUnit {
	if u.Normalize() == UnitMillimeters {
		return UnitPercent
	}
	return UnitMillimeters
}

// Format appends the unit suffix to a reading.
func (u BrakeUnit) Format(reading int) string {
	if u.Normalize() == UnitPercent {
		return fmt.Sprintf("%d%%", reading)
	}
	return fmt.Sprintf("%d MM", reading)
}
