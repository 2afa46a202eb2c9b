package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mcp-health-profile/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waterSample(id string, ml float64, end time.Time) *models.Sample {
	return &models.Sample{
		UUID:      id,
		Type:      models.DietaryWater,
		Quantity:  models.Quantity{Value: ml, Unit: models.MustUnit("mL")},
		Start:     end,
		End:       end,
		Source:    "test",
		CreatedAt: end,
	}
}

func TestQuerySamples(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, sample := range []*models.Sample{
		waterSample("old", 500, now.Add(-30*time.Hour)),
		waterSample("morning", 200, now.Add(-5*time.Hour)),
		waterSample("noon", 300, now),
		waterSample("future", 100, now.Add(time.Hour)),
	} {
		if err := s.SaveSample(ctx, sample); err != nil {
			t.Fatalf("SaveSample(%s) error = %v", sample.UUID, err)
		}
	}

	tests := []struct {
		name  string
		query models.SampleQuery
		want  []string
	}{
		{
			name:  "unbounded newest first",
			query: models.SampleQuery{Type: models.DietaryWater},
			want:  []string{"future", "noon", "morning", "old"},
		},
		{
			name:  "limit one returns latest",
			query: models.SampleQuery{Type: models.DietaryWater, Limit: 1},
			want:  []string{"future"},
		},
		{
			name: "trailing day with strict end",
			query: models.SampleQuery{
				Type:      models.DietaryWater,
				Start:     now.Add(-24 * time.Hour),
				End:       now,
				StrictEnd: true,
			},
			want: []string{"noon", "morning"},
		},
		{
			name:  "other type is empty",
			query: models.SampleQuery{Type: models.Height},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QuerySamples(ctx, tt.query)
			if err != nil {
				t.Fatalf("QuerySamples() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("QuerySamples() returned %d samples, want %d", len(got), len(tt.want))
			}
			for i, sample := range got {
				if sample.UUID != tt.want[i] {
					t.Errorf("sample[%d] = %s, want %s", i, sample.UUID, tt.want[i])
				}
			}
		})
	}
}

func TestQuerySamplesRoundTripsFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	end := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	if err := s.SaveSample(ctx, waterSample("one", 250, end)); err != nil {
		t.Fatalf("SaveSample() error = %v", err)
	}

	got, err := s.QuerySamples(ctx, models.SampleQuery{Type: models.DietaryWater})
	if err != nil || len(got) != 1 {
		t.Fatalf("QuerySamples() = %v, %v", got, err)
	}
	if !got[0].End.Equal(end) {
		t.Errorf("End = %v, want %v", got[0].End, end)
	}
	if got[0].Quantity.String() != "250 mL" {
		t.Errorf("Quantity = %s, want 250 mL", got[0].Quantity)
	}
}

func TestCharacteristics(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.GetCharacteristic(ctx, models.DateOfBirth); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCharacteristic() error = %v, want ErrNotFound", err)
	}

	if err := s.SetCharacteristic(ctx, models.DateOfBirth, "1990-03-07"); err != nil {
		t.Fatalf("SetCharacteristic() error = %v", err)
	}
	if err := s.SetCharacteristic(ctx, models.DateOfBirth, "1991-04-08"); err != nil {
		t.Fatalf("SetCharacteristic() overwrite error = %v", err)
	}

	got, err := s.GetCharacteristic(ctx, models.DateOfBirth)
	if err != nil {
		t.Fatalf("GetCharacteristic() error = %v", err)
	}
	if got != "1991-04-08" {
		t.Errorf("GetCharacteristic() = %q, want 1991-04-08", got)
	}
}

func TestAuthorizationsMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.GetAuthorization(ctx, models.Height); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAuthorization() error = %v, want ErrNotFound", err)
	}

	first := []models.Authorization{{Type: models.Height, Read: models.SharingAuthorized}}
	if err := s.SaveAuthorizations(ctx, first); err != nil {
		t.Fatalf("SaveAuthorizations() error = %v", err)
	}
	second := []models.Authorization{{Type: models.Height, Share: models.SharingDenied}}
	if err := s.SaveAuthorizations(ctx, second); err != nil {
		t.Fatalf("SaveAuthorizations() error = %v", err)
	}

	got, err := s.GetAuthorization(ctx, models.Height)
	if err != nil {
		t.Fatalf("GetAuthorization() error = %v", err)
	}
	if got.Read != models.SharingAuthorized || got.Share != models.SharingDenied {
		t.Errorf("GetAuthorization() = %+v, want read authorized and share denied", got)
	}
}
