// internal/models/health.go
package models

import (
	"fmt"
	"time"
)

// ObjectType identifies a category of health data held by the store.
type ObjectType string

const (
	Height                 ObjectType = "height"
	BodyMass               ObjectType = "bodyMass"
	BodyMassIndex          ObjectType = "bodyMassIndex"
	DietaryWater           ObjectType = "dietaryWater"
	ActiveEnergyBurned     ObjectType = "activeEnergyBurned"
	BloodGlucose           ObjectType = "bloodGlucose"
	BloodAlcoholContent    ObjectType = "bloodAlcoholContent"
	BloodPressureSystolic  ObjectType = "bloodPressureSystolic"
	BloodPressureDiastolic ObjectType = "bloodPressureDiastolic"
	HeartRate              ObjectType = "heartRate"

	DateOfBirth                 ObjectType = "dateOfBirth"
	BloodTypeCharacteristic     ObjectType = "bloodType"
	BiologicalSexCharacteristic ObjectType = "biologicalSex"

	Workout         ObjectType = "workout"
	ActivitySummary ObjectType = "activitySummary"
)

// quantityUnits maps every quantity type to its canonical unit.
var quantityUnits = map[ObjectType]string{
	Height:                 "m",
	BodyMass:               "kg",
	BodyMassIndex:          "count",
	DietaryWater:           "mL",
	ActiveEnergyBurned:     "kcal",
	BloodGlucose:           "mg/dL",
	BloodAlcoholContent:    "%",
	BloodPressureSystolic:  "mmHg",
	BloodPressureDiastolic: "mmHg",
	HeartRate:              "count/min",
}

var characteristicTypes = map[ObjectType]bool{
	DateOfBirth:                 true,
	BloodTypeCharacteristic:     true,
	BiologicalSexCharacteristic: true,
}

// IsQuantity reports whether samples of t carry a numeric quantity.
func (t ObjectType) IsQuantity() bool {
	_, ok := quantityUnits[t]
	return ok
}

// IsCharacteristic reports whether t is a static, non time-series attribute.
func (t ObjectType) IsCharacteristic() bool {
	return characteristicTypes[t]
}

// IsSupported reports whether the store knows about t at all.
func (t ObjectType) IsSupported() bool {
	return t.IsQuantity() || t.IsCharacteristic() || t == Workout || t == ActivitySummary
}

// CanonicalUnit returns the unit the store reports t in by default.
func (t ObjectType) CanonicalUnit() (Unit, error) {
	symbol, ok := quantityUnits[t]
	if !ok {
		return Unit{}, fmt.Errorf("%s is not a quantity type", t)
	}
	return ParseUnit(symbol)
}

// BiologicalSex is the platform code for the biological sex characteristic.
type BiologicalSex int

const (
	SexNotSet BiologicalSex = iota
	SexFemale
	SexMale
	SexOther
)

// NotAvailable is shown for a code outside the enumerated range.
const NotAvailable = "Not Available"

// Name returns the display label for s.
func (s BiologicalSex) Name() string {
	switch s {
	case SexNotSet:
		return "Not Set"
	case SexFemale:
		return "Female"
	case SexMale:
		return "Male"
	case SexOther:
		return "Other"
	default:
		return NotAvailable
	}
}

// BloodType is the platform code for the blood type characteristic.
type BloodType int

const (
	BloodTypeNotSet BloodType = iota
	BloodTypeAPositive
	BloodTypeANegative
	BloodTypeBPositive
	BloodTypeBNegative
	BloodTypeABPositive
	BloodTypeABNegative
	BloodTypeOPositive
	BloodTypeONegative
)

var bloodTypeNames = [...]string{
	BloodTypeNotSet:     "Not Set",
	BloodTypeAPositive:  "A +ve",
	BloodTypeANegative:  "A -ve",
	BloodTypeBPositive:  "B +ve",
	BloodTypeBNegative:  "B -ve",
	BloodTypeABPositive: "AB +ve",
	BloodTypeABNegative: "AB -ve",
	BloodTypeOPositive:  "O +ve",
	BloodTypeONegative:  "O -ve",
}

// Name returns the display label for b.
func (b BloodType) Name() string {
	if b < 0 || int(b) >= len(bloodTypeNames) {
		return NotAvailable
	}
	return bloodTypeNames[b]
}

// DateComponents holds the date of birth as the store records it.
type DateComponents struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String renders d as D-M-YYYY without zero padding.
func (d DateComponents) String() string {
	return fmt.Sprintf("%d-%d-%d", d.Day, d.Month, d.Year)
}

// ParseDateComponents parses a YYYY-MM-DD date.
func ParseDateComponents(s string) (DateComponents, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateComponents{}, fmt.Errorf("invalid date of birth %q: %w", s, err)
	}
	return DateComponents{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// ISO renders d as YYYY-MM-DD.
func (d DateComponents) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Sample is one timestamped measurement.
type Sample struct {
	UUID      string     `json:"uuid"`
	Type      ObjectType `json:"type"`
	Quantity  Quantity   `json:"quantity"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// SampleQuery selects samples of one type. A zero Start or End leaves that
// side unbounded and a zero Limit returns every match.
type SampleQuery struct {
	Type      ObjectType `json:"type"`
	Start     time.Time  `json:"start,omitempty"`
	End       time.Time  `json:"end,omitempty"`
	StrictEnd bool       `json:"strict_end"`
	Limit     int        `json:"limit"`
}

// NoLimit asks a query for every matching sample.
const NoLimit = 0

// AuthorizationStatus is the recorded answer for one object type.
type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	SharingDenied
	SharingAuthorized
)

func (s AuthorizationStatus) String() string {
	switch s {
	case SharingDenied:
		return "denied"
	case SharingAuthorized:
		return "authorized"
	default:
		return "not_determined"
	}
}

// Authorization is the read and share status recorded for a type.
type Authorization struct {
	Type  ObjectType          `json:"type"`
	Read  AuthorizationStatus `json:"read"`
	Share AuthorizationStatus `json:"share"`
}

// MarshalText lets JSON output carry the readable status.
func (s AuthorizationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
