// internal/models/units.go
package models

import (
	"fmt"
	"strconv"
)

// Dimension groups units that convert into each other.
type Dimension string

const (
	Length        Dimension = "length"
	Mass          Dimension = "mass"
	Volume        Dimension = "volume"
	Energy        Dimension = "energy"
	Frequency     Dimension = "frequency"
	Scalar        Dimension = "scalar"
	Percent       Dimension = "percent"
	Pressure      Dimension = "pressure"
	Concentration Dimension = "concentration"
)

// Unit is a measurement unit with its factor to the base unit of its dimension.
type Unit struct {
	Symbol    string
	Dimension Dimension
	factor    float64
}

var units = map[string]Unit{
	"m":         {Symbol: "m", Dimension: Length, factor: 1},
	"cm":        {Symbol: "cm", Dimension: Length, factor: 0.01},
	"in":        {Symbol: "in", Dimension: Length, factor: 0.0254},
	"ft":        {Symbol: "ft", Dimension: Length, factor: 0.3048},
	"kg":        {Symbol: "kg", Dimension: Mass, factor: 1},
	"g":         {Symbol: "g", Dimension: Mass, factor: 0.001},
	"lb":        {Symbol: "lb", Dimension: Mass, factor: 0.45359237},
	"L":         {Symbol: "L", Dimension: Volume, factor: 1},
	"mL":        {Symbol: "mL", Dimension: Volume, factor: 0.001},
	"fl_oz_us":  {Symbol: "fl_oz_us", Dimension: Volume, factor: 0.0295735295625},
	"kcal":      {Symbol: "kcal", Dimension: Energy, factor: 1},
	"kJ":        {Symbol: "kJ", Dimension: Energy, factor: 1 / 4.184},
	"count/min": {Symbol: "count/min", Dimension: Frequency, factor: 1},
	"count":     {Symbol: "count", Dimension: Scalar, factor: 1},
	"%":         {Symbol: "%", Dimension: Percent, factor: 1},
	"mmHg":      {Symbol: "mmHg", Dimension: Pressure, factor: 1},
	"mg/dL":     {Symbol: "mg/dL", Dimension: Concentration, factor: 1},
}

// ParseUnit looks up a unit by symbol.
func ParseUnit(symbol string) (Unit, error) {
	u, ok := units[symbol]
	if !ok {
		return Unit{}, fmt.Errorf("unknown unit %q", symbol)
	}
	return u, nil
}

// MustUnit is ParseUnit for symbols known at compile time.
func MustUnit(symbol string) Unit {
	u, err := ParseUnit(symbol)
	if err != nil {
		panic(err)
	}
	return u
}

func (u Unit) String() string { return u.Symbol }

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.Symbol), nil
}

func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Quantity is a value paired with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// NewQuantity builds a quantity from a unit symbol.
func NewQuantity(value float64, symbol string) (Quantity, error) {
	u, err := ParseUnit(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: value, Unit: u}, nil
}

// In converts q to the target unit.
func (q Quantity) In(target Unit) (float64, error) {
	if q.Unit.Dimension != target.Dimension {
		return 0, fmt.Errorf("cannot convert %s to %s", q.Unit, target)
	}
	if q.Unit.Symbol == target.Symbol {
		return q.Value, nil
	}
	return q.Value * q.Unit.factor / target.factor, nil
}

// String renders q as "<value> <unit>", e.g. "200 in".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit.Symbol
}
