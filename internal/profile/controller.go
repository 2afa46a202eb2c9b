// internal/profile/controller.go
package profile

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcp-health-profile/internal/models"
)

// HealthStore is the subset of the health-data store the screen uses.
type HealthStore interface {
	IsHealthDataAvailable(ctx context.Context) bool
	RequestAuthorization(ctx context.Context, toShare, read []models.ObjectType) (bool, error)
	DateOfBirthComponents(ctx context.Context) (models.DateComponents, error)
	BiologicalSex(ctx context.Context) (models.BiologicalSex, error)
	BloodType(ctx context.Context) (models.BloodType, error)
	Latest(ctx context.Context, t models.ObjectType) (*models.Sample, error)
	Execute(ctx context.Context, q models.SampleQuery) ([]*models.Sample, error)
	Save(ctx context.Context, sample *models.Sample) error
}

// Types the screen asks permission to write.
var DefaultShareTypes = []models.ObjectType{
	models.BodyMassIndex,
	models.ActiveEnergyBurned,
	models.Height,
	models.BodyMass,
	models.DietaryWater,
	models.Workout,
}

// Types the screen asks permission to read. Heart rate is not among them.
var DefaultReadTypes = []models.ObjectType{
	models.DateOfBirth,
	models.BloodTypeCharacteristic,
	models.BiologicalSexCharacteristic,
	models.BodyMassIndex,
	models.Height,
	models.BodyMass,
	models.BloodGlucose,
	models.BloodAlcoholContent,
	models.BloodPressureSystolic,
	models.BloodPressureDiastolic,
	models.DietaryWater,
	models.Workout,
	models.ActivitySummary,
}

// Values written by the save actions when the caller gives none.
var (
	DefaultHeight = models.Quantity{Value: 200, Unit: models.MustUnit("in")}
	DefaultWeight = models.Quantity{Value: 60, Unit: models.MustUnit("kg")}
	DefaultWater  = models.Quantity{Value: 200, Unit: models.MustUnit("mL")}
)

// WaterWindow is how far back the water total looks.
const WaterWindow = 24 * time.Hour

var millilitre = models.MustUnit("mL")

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLocation sets the calendar zone used for the age computation.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller loads the profile metrics from the store into a Display.
type Controller struct {
	store    HealthStore
	display  *Display
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

func NewController(store HealthStore, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		display:  NewDisplay(),
		logger:   zap.NewNop(),
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current labels.
func (c *Controller) Snapshot() Labels {
	return c.display.Snapshot()
}

// Load requests authorization once and then reads every metric. It never
// fails: unreadable metrics show the placeholder.
func (c *Controller) Load(ctx context.Context) Labels {
	if !c.store.IsHealthDataAvailable(ctx) {
		c.logger.Info("health data is not available")
		c.clear()
		return c.Snapshot()
	}

	if _, err := c.store.RequestAuthorization(ctx, DefaultShareTypes, DefaultReadTypes); err != nil {
		c.logger.Debug("authorization request failed", zap.Error(err))
	}

	c.ReadAll(ctx)
	return c.Snapshot()
}

func (c *Controller) clear() {
	for _, f := range []Field{FieldAge, FieldDOB, FieldSex, FieldBloodType, FieldHeight, FieldWeight, FieldWater} {
		c.display.Set(f, Placeholder)
	}
}

// ReadAll fires every metric read concurrently and returns once all have
// updated their labels.
func (c *Controller) ReadAll(ctx context.Context) {
	reads := []func(context.Context){
		c.ReadAgeAndDOB,
		c.ReadSex,
		c.ReadBloodType,
		c.ReadHeight,
		c.ReadWeight,
		c.ReadWater,
	}

	var wg sync.WaitGroup
	for _, read := range reads {
		wg.Add(1)
		go func(read func(context.Context)) {
			defer wg.Done()
			read(ctx)
		}(read)
	}
	wg.Wait()
}

func (c *Controller) ReadAgeAndDOB(ctx context.Context) {
	dob, err := c.store.DateOfBirthComponents(ctx)
	if err != nil {
		c.logger.Debug("date of birth unavailable", zap.Error(err))
		c.display.Set(FieldAge, Placeholder)
		c.display.Set(FieldDOB, Placeholder)
		return
	}

	c.display.Set(FieldAge, strconv.Itoa(Age(dob, c.now(), c.location)))
	c.display.Set(FieldDOB, dob.String())
}

// Age is the difference between the current calendar year and the birth
// year. Month and day are ignored.
func Age(dob models.DateComponents, now time.Time, loc *time.Location) int {
	return now.In(loc).Year() - dob.Year
}

func (c *Controller) ReadSex(ctx context.Context) {
	sex, err := c.store.BiologicalSex(ctx)
	if err != nil {
		c.logger.Debug("biological sex unavailable", zap.Error(err))
		c.display.Set(FieldSex, Placeholder)
		return
	}
	c.display.Set(FieldSex, sex.Name())
}

func (c *Controller) ReadBloodType(ctx context.Context) {
	blood, err := c.store.BloodType(ctx)
	if err != nil {
		c.logger.Debug("blood type unavailable", zap.Error(err))
		c.display.Set(FieldBloodType, Placeholder)
		return
	}
	c.display.Set(FieldBloodType, blood.Name())
}

func (c *Controller) ReadHeight(ctx context.Context) {
	c.readLatest(ctx, models.Height, FieldHeight)
}

func (c *Controller) ReadWeight(ctx context.Context) {
	c.readLatest(ctx, models.BodyMass, FieldWeight)
}

func (c *Controller) readLatest(ctx context.Context, t models.ObjectType, field Field) {
	sample, err := c.store.Latest(ctx, t)
	if err != nil {
		c.logger.Debug("latest sample unavailable", zap.String("type", string(t)), zap.Error(err))
		c.display.Set(field, Placeholder)
		return
	}
	c.logger.Debug("latest sample", zap.String("type", string(t)), zap.Stringer("quantity", sample.Quantity))
	c.display.Set(field, sample.Quantity.String())
}

// ReadHeartRate only logs the latest heart rate; the screen has no label for it.
func (c *Controller) ReadHeartRate(ctx context.Context) {
	sample, err := c.store.Latest(ctx, models.HeartRate)
	if err != nil {
		c.logger.Debug("heart rate unavailable", zap.Error(err))
		return
	}
	c.logger.Info("heart rate", zap.Stringer("quantity", sample.Quantity))
}

func (c *Controller) ReadWater(ctx context.Context) {
	now := c.now()
	samples, err := c.store.Execute(ctx, models.SampleQuery{
		Type:      models.DietaryWater,
		Start:     now.Add(-WaterWindow),
		End:       now,
		StrictEnd: true,
		Limit:     models.NoLimit,
	})
	if err != nil {
		c.logger.Debug("water samples unavailable", zap.Error(err))
		c.display.Set(FieldWater, Placeholder)
		return
	}

	total, err := TotalMillilitres(samples)
	if err != nil {
		c.logger.Debug("water samples unreadable", zap.Error(err))
		c.display.Set(FieldWater, Placeholder)
		return
	}
	c.logger.Debug("total water", zap.Float64("ml", total))
	c.display.Set(FieldWater, FormatWater(total))
}

// TotalMillilitres sums sample volumes in millilitres.
func TotalMillilitres(samples []*models.Sample) (float64, error) {
	var total float64
	for _, s := range samples {
		ml, err := s.Quantity.In(millilitre)
		if err != nil {
			return 0, fmt.Errorf("sample %s: %w", s.UUID, err)
		}
		total += ml
	}
	return total, nil
}

// FormatWater renders the water label.
func FormatWater(ml float64) string {
	return fmt.Sprintf("Water: %.2f", ml)
}

// WriteHeight saves a height sample dated now and refreshes the height label.
func (c *Controller) WriteHeight(ctx context.Context, q models.Quantity) error {
	err := c.write(ctx, models.Height, q)
	c.ReadHeight(ctx)
	return err
}

// WriteWeight saves a body mass sample dated now and refreshes the weight label.
func (c *Controller) WriteWeight(ctx context.Context, q models.Quantity) error {
	err := c.write(ctx, models.BodyMass, q)
	c.ReadWeight(ctx)
	return err
}

// WriteWater saves a dietary water sample dated now and refreshes the water label.
func (c *Controller) WriteWater(ctx context.Context, q models.Quantity) error {
	err := c.write(ctx, models.DietaryWater, q)
	c.ReadWater(ctx)
	return err
}

func (c *Controller) write(ctx context.Context, t models.ObjectType, q models.Quantity) error {
	now := c.now()
	sample := &models.Sample{Type: t, Quantity: q, Start: now, End: now}
	if err := c.store.Save(ctx, sample); err != nil {
		c.logger.Debug("save failed", zap.String("type", string(t)), zap.Error(err))
		return fmt.Errorf("failed to save %s: %w", t, err)
	}
	c.logger.Info("sample saved",
		zap.String("type", string(t)), zap.String("uuid", sample.UUID), zap.Stringer("quantity", q))
	return nil
}
