// internal/healthstore/store.go
package healthstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mcp-health-profile/internal/models"
	"mcp-health-profile/internal/storage"
)

var (
	ErrHealthDataUnavailable = errors.New("health data is not available")
	ErrTypeNotAvailable      = errors.New("data type is not available")
	ErrNoData                = errors.New("no data recorded")
	ErrNotAuthorized         = errors.New("authorization denied")
	ErrIncompatibleUnit      = errors.New("incompatible unit")
)

// Backend is the persistence the store sits on.
type Backend interface {
	Ping(ctx context.Context) error
	SaveSample(ctx context.Context, sample *models.Sample) error
	QuerySamples(ctx context.Context, q models.SampleQuery) ([]*models.Sample, error)
	SetCharacteristic(ctx context.Context, typ models.ObjectType, value string) error
	GetCharacteristic(ctx context.Context, typ models.ObjectType) (string, error)
	SaveAuthorizations(ctx context.Context, auths []models.Authorization) error
	GetAuthorization(ctx context.Context, typ models.ObjectType) (models.Authorization, error)
}

// Notifier is told about every sample after it has been persisted.
type Notifier interface {
	SampleSaved(ctx context.Context, sample *models.Sample) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier registers a notifier for saved samples.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithDenied makes authorization requests for the given types come back denied.
func WithDenied(types ...models.ObjectType) Option {
	return func(s *Store) {
		for _, t := range types {
			s.denied[t] = true
		}
	}
}

// WithSource sets the source name stamped on saved samples.
func WithSource(source string) Option {
	return func(s *Store) { s.source = source }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the health-data store: authorization, characteristic reads,
// sample queries and saves.
type Store struct {
	backend  Backend
	notifier Notifier
	logger   *zap.Logger
	denied   map[models.ObjectType]bool
	source   string
	now      func() time.Time
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  zap.NewNop(),
		denied:  make(map[models.ObjectType]bool),
		source:  "mcp-health-profile",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsHealthDataAvailable reports whether the backing store can be reached.
func (s *Store) IsHealthDataAvailable(ctx context.Context) bool {
	if s.backend == nil {
		return false
	}
	return s.backend.Ping(ctx) == nil
}

// RequestAuthorization records read and share permissions for the given
// types. The boolean reports that the request was processed, not that
// every type was granted.
func (s *Store) RequestAuthorization(ctx context.Context, toShare, read []models.ObjectType) (bool, error) {
	if !s.IsHealthDataAvailable(ctx) {
		return false, ErrHealthDataUnavailable
	}

	merged := make(map[models.ObjectType]*models.Authorization)
	var order []models.ObjectType
	entry := func(t models.ObjectType) *models.Authorization {
		if a, ok := merged[t]; ok {
			return a
		}
		a := &models.Authorization{Type: t}
		merged[t] = a
		order = append(order, t)
		return a
	}

	for _, t := range toShare {
		if !t.IsQuantity() && t != models.Workout {
			return false, fmt.Errorf("%w: %s cannot be shared", ErrTypeNotAvailable, t)
		}
		entry(t).Share = s.decide(t)
	}
	for _, t := range read {
		if !t.IsSupported() {
			return false, fmt.Errorf("%w: %s", ErrTypeNotAvailable, t)
		}
		entry(t).Read = s.decide(t)
	}

	auths := make([]models.Authorization, 0, len(order))
	for _, t := range order {
		auths = append(auths, *merged[t])
	}
	if err := s.backend.SaveAuthorizations(ctx, auths); err != nil {
		return false, fmt.Errorf("failed to record authorization: %w", err)
	}

	s.logger.Debug("authorization recorded",
		zap.Int("share", len(toShare)), zap.Int("read", len(read)))
	return true, nil
}

func (s *Store) decide(t models.ObjectType) models.AuthorizationStatus {
	if s.denied[t] {
		return models.SharingDenied
	}
	return models.SharingAuthorized
}

// AuthorizationStatus returns what has been recorded for t.
func (s *Store) AuthorizationStatus(ctx context.Context, t models.ObjectType) (models.Authorization, error) {
	auth, err := s.backend.GetAuthorization(ctx, t)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Authorization{Type: t}, nil
	}
	return auth, err
}

func (s *Store) checkRead(ctx context.Context, t models.ObjectType) error {
	if !t.IsSupported() {
		return fmt.Errorf("%w: %s", ErrTypeNotAvailable, t)
	}
	auth, err := s.AuthorizationStatus(ctx, t)
	if err != nil {
		return err
	}
	if auth.Read != models.SharingAuthorized {
		return fmt.Errorf("%w: read %s is %s", ErrNotAuthorized, t, auth.Read)
	}
	return nil
}

func (s *Store) checkShare(ctx context.Context, t models.ObjectType) error {
	if !t.IsQuantity() {
		return fmt.Errorf("%w: %s", ErrTypeNotAvailable, t)
	}
	auth, err := s.AuthorizationStatus(ctx, t)
	if err != nil {
		return err
	}
	if auth.Share != models.SharingAuthorized {
		return fmt.Errorf("%w: share %s is %s", ErrNotAuthorized, t, auth.Share)
	}
	return nil
}

func (s *Store) characteristic(ctx context.Context, t models.ObjectType) (string, error) {
	if err := s.checkRead(ctx, t); err != nil {
		return "", err
	}
	value, err := s.backend.GetCharacteristic(ctx, t)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNoData, t)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// DateOfBirthComponents returns the recorded date of birth.
func (s *Store) DateOfBirthComponents(ctx context.Context) (models.DateComponents, error) {
	value, err := s.characteristic(ctx, models.DateOfBirth)
	if err != nil {
		return models.DateComponents{}, err
	}
	return models.ParseDateComponents(value)
}

// BiologicalSex returns the recorded biological sex code.
func (s *Store) BiologicalSex(ctx context.Context) (models.BiologicalSex, error) {
	code, err := s.intCharacteristic(ctx, models.BiologicalSexCharacteristic)
	return models.BiologicalSex(code), err
}

// BloodType returns the recorded blood type code.
func (s *Store) BloodType(ctx context.Context) (models.BloodType, error) {
	code, err := s.intCharacteristic(ctx, models.BloodTypeCharacteristic)
	return models.BloodType(code), err
}

func (s *Store) intCharacteristic(ctx context.Context, t models.ObjectType) (int, error) {
	value, err := s.characteristic(ctx, t)
	if err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s value %q: %w", t, value, err)
	}
	return code, nil
}

// SetCharacteristics stores characteristic values. Nil fields are left untouched.
func (s *Store) SetCharacteristics(ctx context.Context, dob *models.DateComponents, sex *models.BiologicalSex, blood *models.BloodType) error {
	if dob != nil {
		if err := s.backend.SetCharacteristic(ctx, models.DateOfBirth, dob.ISO()); err != nil {
			return err
		}
	}
	if sex != nil {
		if err := s.backend.SetCharacteristic(ctx, models.BiologicalSexCharacteristic, strconv.Itoa(int(*sex))); err != nil {
			return err
		}
	}
	if blood != nil {
		if err := s.backend.SetCharacteristic(ctx, models.BloodTypeCharacteristic, strconv.Itoa(int(*blood))); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a sample query. An empty result is not an error here;
// callers decide whether missing data matters.
func (s *Store) Execute(ctx context.Context, q models.SampleQuery) ([]*models.Sample, error) {
	if !q.Type.IsQuantity() {
		return nil, fmt.Errorf("%w: %s is not a sample type", ErrTypeNotAvailable, q.Type)
	}
	if err := s.checkRead(ctx, q.Type); err != nil {
		return nil, err
	}
	samples, err := s.backend.QuerySamples(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query for %s: %w", q.Type, err)
	}
	return samples, nil
}

// Latest returns the most recent sample of t.
func (s *Store) Latest(ctx context.Context, t models.ObjectType) (*models.Sample, error) {
	samples, err := s.Execute(ctx, models.SampleQuery{Type: t, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, t)
	}
	return samples[0], nil
}

// Save validates and persists a sample, then notifies the notifier.
func (s *Store) Save(ctx context.Context, sample *models.Sample) error {
	if err := s.checkShare(ctx, sample.Type); err != nil {
		return err
	}
	canonical, err := sample.Type.CanonicalUnit()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTypeNotAvailable, err)
	}
	if sample.Quantity.Unit.Dimension != canonical.Dimension {
		return fmt.Errorf("%w: %s cannot be recorded in %s", ErrIncompatibleUnit, sample.Type, sample.Quantity.Unit)
	}

	now := s.now()
	if sample.UUID == "" {
		sample.UUID = uuid.New().String()
	}
	if sample.Start.IsZero() {
		sample.Start = now
	}
	if sample.End.IsZero() {
		sample.End = sample.Start
	}
	if sample.End.Before(sample.Start) {
		return fmt.Errorf("sample end %s is before start %s", sample.End, sample.Start)
	}
	if sample.Source == "" {
		sample.Source = s.source
	}
	sample.CreatedAt = now

	if err := s.backend.SaveSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.SampleSaved(ctx, sample); err != nil {
			s.logger.Warn("failed to publish saved sample",
				zap.String("uuid", sample.UUID), zap.Error(err))
		}
	}
	return nil
}
