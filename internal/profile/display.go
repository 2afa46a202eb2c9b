// internal/profile/display.go
package profile

import "sync"

// Placeholder is shown for any metric that could not be read.
const Placeholder = "NA"

// Field names one display label.
type Field string

const (
	FieldAge       Field = "age"
	FieldDOB       Field = "dob"
	FieldSex       Field = "sex"
	FieldBloodType Field = "bloodType"
	FieldHeight    Field = "height"
	FieldWeight    Field = "weight"
	FieldWater     Field = "water"
)

// Labels is the rendered state of the profile screen.
type Labels struct {
	Age       string `json:"age" yaml:"age"`
	DOB       string `json:"dob" yaml:"dob"`
	Sex       string `json:"sex" yaml:"sex"`
	BloodType string `json:"blood_type" yaml:"blood_type"`
	Height    string `json:"height" yaml:"height"`
	Weight    string `json:"weight" yaml:"weight"`
	Water     string `json:"water" yaml:"water"`
}

// Rows returns the labels in screen order.
func (l Labels) Rows() [][2]string {
	return [][2]string{
		{"Age", l.Age},
		{"Date of birth", l.DOB},
		{"Sex", l.Sex},
		{"Blood type", l.BloodType},
		{"Height", l.Height},
		{"Weight", l.Weight},
		{"Water", l.Water},
	}
}

func placeholderLabels() Labels {
	return Labels{
		Age:       Placeholder,
		DOB:       Placeholder,
		Sex:       Placeholder,
		BloodType: Placeholder,
		Height:    Placeholder,
		Weight:    Placeholder,
		Water:     Placeholder,
	}
}

// Display is the update path every read reports through.
type Display struct {
	mu     sync.Mutex
	labels Labels
}

func NewDisplay() *Display {
	return &Display{labels: placeholderLabels()}
}

// Set replaces one label. An empty value falls back to the placeholder.
func (d *Display) Set(field Field, value string) {
	if value == "" {
		value = Placeholder
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch field {
	case FieldAge:
		d.labels.Age = value
	case FieldDOB:
		d.labels.DOB = value
	case FieldSex:
		d.labels.Sex = value
	case FieldBloodType:
		d.labels.BloodType = value
	case FieldHeight:
		d.labels.Height = value
	case FieldWeight:
		d.labels.Weight = value
	case FieldWater:
		d.labels.Water = value
	}
}

// Snapshot returns a copy of the current labels.
func (d *Display) Snapshot() Labels {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.labels
}
