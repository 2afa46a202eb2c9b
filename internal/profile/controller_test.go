package profile

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mcp-health-profile/internal/healthstore"
	"mcp-health-profile/internal/models"
	"mcp-health-profile/internal/storage"
)

// fakeStore answers every read from fixed values or errors.
type fakeStore struct {
	available bool
	authErr   error
	dob       models.DateComponents
	dobErr    error
	sex       models.BiologicalSex
	sexErr    error
	blood     models.BloodType
	bloodErr  error
	latest    map[models.ObjectType]*models.Sample
	latestErr map[models.ObjectType]error
	water     []*models.Sample
	waterErr  error
	saveErr   error
	lastQuery models.SampleQuery
}

func (f *fakeStore) IsHealthDataAvailable(context.Context) bool { return f.available }

func (f *fakeStore) RequestAuthorization(context.Context, []models.ObjectType, []models.ObjectType) (bool, error) {
	return f.authErr == nil, f.authErr
}

func (f *fakeStore) DateOfBirthComponents(context.Context) (models.DateComponents, error) {
	return f.dob, f.dobErr
}

func (f *fakeStore) BiologicalSex(context.Context) (models.BiologicalSex, error) {
	return f.sex, f.sexErr
}

func (f *fakeStore) BloodType(context.Context) (models.BloodType, error) {
	return f.blood, f.bloodErr
}

func (f *fakeStore) Latest(_ context.Context, t models.ObjectType) (*models.Sample, error) {
	if err, ok := f.latestErr[t]; ok {
		return nil, err
	}
	if s, ok := f.latest[t]; ok {
		return s, nil
	}
	return nil, healthstore.ErrNoData
}

func (f *fakeStore) Execute(_ context.Context, q models.SampleQuery) ([]*models.Sample, error) {
	f.lastQuery = q
	return f.water, f.waterErr
}

func (f *fakeStore) Save(context.Context, *models.Sample) error { return f.saveErr }

var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func quantitySample(t models.ObjectType, value float64, unit string) *models.Sample {
	return &models.Sample{Type: t, Quantity: models.Quantity{Value: value, Unit: models.MustUnit(unit)}}
}

func TestControllerLoad(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		want  Labels
	}{
		{
			name: "all metrics present",
			store: &fakeStore{
				available: true,
				dob:       models.DateComponents{Year: 1990, Month: 12, Day: 31},
				sex:       models.SexMale,
				blood:     models.BloodTypeABNegative,
				latest: map[models.ObjectType]*models.Sample{
					models.Height:   quantitySample(models.Height, 200, "in"),
					models.BodyMass: quantitySample(models.BodyMass, 60, "kg"),
				},
				water: []*models.Sample{
					quantitySample(models.DietaryWater, 200, "mL"),
					quantitySample(models.DietaryWater, 0.25, "L"),
				},
			},
			want: Labels{
				Age:       "36",
				DOB:       "31-12-1990",
				Sex:       "Male",
				BloodType: "AB -ve",
				Height:    "200 in",
				Weight:    "60 kg",
				Water:     "Water: 450.00",
			},
		},
		{
			name: "each failure kind falls back independently",
			store: &fakeStore{
				available: true,
				dobErr:    healthstore.ErrNoData,
				sexErr:    healthstore.ErrNotAuthorized,
				blood:     models.BloodTypeOPositive,
				waterErr:  healthstore.ErrTypeNotAvailable,
			},
			want: Labels{
				Age:       Placeholder,
				DOB:       Placeholder,
				Sex:       Placeholder,
				BloodType: "O +ve",
				Height:    Placeholder,
				Weight:    Placeholder,
				Water:     Placeholder,
			},
		},
		{
			name: "out of range codes show not available",
			store: &fakeStore{
				available: true,
				dob:       models.DateComponents{Year: 2000, Month: 1, Day: 1},
				sex:       models.BiologicalSex(7),
				blood:     models.BloodType(42),
			},
			want: Labels{
				Age:       "26",
				DOB:       "1-1-2000",
				Sex:       models.NotAvailable,
				BloodType: models.NotAvailable,
				Height:    Placeholder,
				Weight:    Placeholder,
				Water:     "Water: 0.00",
			},
		},
		{
			name: "authorization failure still reads",
			store: &fakeStore{
				available: true,
				authErr:   errors.New("prompt dismissed"),
				dobErr:    healthstore.ErrNotAuthorized,
				sex:       models.SexFemale,
			},
			want: Labels{
				Age:       Placeholder,
				DOB:       Placeholder,
				Sex:       "Female",
				BloodType: "Not Set",
				Height:    Placeholder,
				Weight:    Placeholder,
				Water:     "Water: 0.00",
			},
		},
		{
			name:  "store unavailable",
			store: &fakeStore{available: false, sex: models.SexFemale},
			want:  placeholderLabels(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.store, WithClock(clock), WithLocation(time.UTC))
			if got := c.Load(context.Background()); got != tt.want {
				t.Errorf("Load() = %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestReadWaterQueriesTrailingDay(t *testing.T) {
	store := &fakeStore{available: true}
	c := NewController(store, WithClock(clock))
	c.ReadWater(context.Background())

	q := store.lastQuery
	if q.Type != models.DietaryWater {
		t.Errorf("Type = %s, want dietaryWater", q.Type)
	}
	if !q.Start.Equal(testNow.Add(-24*time.Hour)) || !q.End.Equal(testNow) {
		t.Errorf("window = [%v, %v], want trailing 24h ending %v", q.Start, q.End, testNow)
	}
	if !q.StrictEnd || q.Limit != models.NoLimit {
		t.Errorf("StrictEnd = %v, Limit = %d, want strict and unlimited", q.StrictEnd, q.Limit)
	}
}

func TestFailedReadReplacesStaleValue(t *testing.T) {
	store := &fakeStore{
		available: true,
		latest:    map[models.ObjectType]*models.Sample{models.Height: quantitySample(models.Height, 180, "cm")},
	}
	c := NewController(store, WithClock(clock))

	c.ReadHeight(context.Background())
	if got := c.Snapshot().Height; got != "180 cm" {
		t.Fatalf("Height = %q, want 180 cm", got)
	}

	delete(store.latest, models.Height)
	c.ReadHeight(context.Background())
	if got := c.Snapshot().Height; got != Placeholder {
		t.Errorf("Height after failed read = %q, want %q", got, Placeholder)
	}
}

func TestTotalMillilitresIsOrderIndependent(t *testing.T) {
	samples := []*models.Sample{
		quantitySample(models.DietaryWater, 200, "mL"),
		quantitySample(models.DietaryWater, 0.5, "L"),
		quantitySample(models.DietaryWater, 8, "fl_oz_us"),
		quantitySample(models.DietaryWater, 125, "mL"),
	}

	want, err := TotalMillilitres(samples)
	if err != nil {
		t.Fatalf("TotalMillilitres() error = %v", err)
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]*models.Sample(nil), samples...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := TotalMillilitres(shuffled)
		if err != nil {
			t.Fatalf("TotalMillilitres() error = %v", err)
		}
		if FormatWater(got) != FormatWater(want) {
			t.Errorf("shuffled total = %s, want %s", FormatWater(got), FormatWater(want))
		}
	}

	if _, err := TotalMillilitres([]*models.Sample{quantitySample(models.BodyMass, 1, "kg")}); err == nil {
		t.Error("TotalMillilitres() expected error for mass sample")
	}
}

func TestAge(t *testing.T) {
	dob := models.DateComponents{Year: 1990, Month: 12, Day: 31}
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want int
	}{
		{"before birthday still counts the year", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC, 36},
		{"after birthday", time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC), time.UTC, 36},
		{"year rolls over in calendar zone", time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC), tokyo, 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Age(dob, tt.now, tt.loc); got != tt.want {
				t.Errorf("Age() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWritesRefreshLabels(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	store := healthstore.New(backend, healthstore.WithClock(clock))
	c := NewController(store, WithClock(clock), WithLocation(time.UTC))

	before := c.Load(ctx)
	if before.Height != Placeholder || before.Water != "Water: 0.00" {
		t.Fatalf("Load() before writes = %+v", before)
	}

	if err := c.WriteHeight(ctx, DefaultHeight); err != nil {
		t.Fatalf("WriteHeight() error = %v", err)
	}
	if err := c.WriteWeight(ctx, DefaultWeight); err != nil {
		t.Fatalf("WriteWeight() error = %v", err)
	}
	if err := c.WriteWater(ctx, DefaultWater); err != nil {
		t.Fatalf("WriteWater() error = %v", err)
	}
	if err := c.WriteWater(ctx, DefaultWater); err != nil {
		t.Fatalf("WriteWater() error = %v", err)
	}

	got := c.Snapshot()
	if got.Height != "200 in" || got.Weight != "60 kg" || got.Water != "Water: 400.00" {
		t.Errorf("Snapshot() after writes = %+v", got)
	}

	// Characteristics without data keep the placeholder.
	if got.DOB != Placeholder || got.Sex != Placeholder {
		t.Errorf("characteristics without data = %q/%q, want placeholders", got.DOB, got.Sex)
	}
}

func TestWriteFailureStillRefreshes(t *testing.T) {
	store := &fakeStore{available: true, saveErr: healthstore.ErrNotAuthorized}
	c := NewController(store, WithClock(clock))

	err := c.WriteWeight(context.Background(), DefaultWeight)
	if !errors.Is(err, healthstore.ErrNotAuthorized) {
		t.Fatalf("WriteWeight() error = %v, want ErrNotAuthorized", err)
	}
	if got := c.Snapshot().Weight; got != Placeholder {
		t.Errorf("Weight = %q, want %q", got, Placeholder)
	}
}

func TestDisplaySetEmptyFallsBack(t *testing.T) {
	d := NewDisplay()
	d.Set(FieldSex, "Female")
	d.Set(FieldSex, "")
	if got := d.Snapshot().Sex; got != Placeholder {
		t.Errorf("Sex = %q, want %q", got, Placeholder)
	}
}

func TestReadHeartRate(t *testing.T) {
	tests := []struct {
		name      string
		store     *fakeStore
		wantMsg   string
		wantLevel zapcore.Level
		wantKey   string
		wantValue string
	}{
		{
			name: "not authorized",
			store: &fakeStore{latestErr: map[models.ObjectType]error{
				models.HeartRate: healthstore.ErrNotAuthorized,
			}},
			wantMsg:   "heart rate unavailable",
			wantLevel: zapcore.DebugLevel,
			wantKey:   "error",
			wantValue: healthstore.ErrNotAuthorized.Error(),
		},
		{
			name: "latest sample",
			store: &fakeStore{latest: map[models.ObjectType]*models.Sample{
				models.HeartRate: quantitySample(models.HeartRate, 72, "count/min"),
			}},
			wantMsg:   "heart rate",
			wantLevel: zapcore.InfoLevel,
			wantKey:   "quantity",
			wantValue: "72 count/min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			c := NewController(tt.store, WithLogger(zap.New(core)), WithClock(clock))

			c.ReadHeartRate(context.Background())

			entries := logs.FilterMessage(tt.wantMsg).AllUntimed()
			if len(entries) != 1 {
				t.Fatalf("got %d %q entries, want 1 (all: %v)", len(entries), tt.wantMsg, logs.AllUntimed())
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			if got := entry.ContextMap()[tt.wantKey]; got != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantKey, got, tt.wantValue)
			}
			if c.Snapshot() != placeholderLabels() {
				t.Errorf("labels changed: %+v", c.Snapshot())
			}
		})
	}
}
