// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-health-profile/internal/models"
	"mcp-health-profile/internal/profile"
)

type RequestAuthorizationParams struct {
	Share []string `json:"share,omitempty" description:"Types the caller wants to write (defaults to the profile's share set)"`
	Read  []string `json:"read,omitempty" description:"Types the caller wants to read (defaults to the profile's read set)"`
}

type SaveSampleParams struct {
	Value *float64 `json:"value,omitempty" description:"Measured value (defaults to the demo value)"`
	Unit  string   `json:"unit,omitempty" description:"Unit symbol such as in, cm, kg, lb, mL, L"`
}

type SetCharacteristicsParams struct {
	DateOfBirth   string `json:"date_of_birth,omitempty" description:"Date of birth (YYYY-MM-DD)"`
	BiologicalSex *int   `json:"biological_sex,omitempty" description:"0 not set, 1 female, 2 male, 3 other"`
	BloodType     *int   `json:"blood_type,omitempty" description:"0 not set, 1 A+, 2 A-, 3 B+, 4 B-, 5 AB+, 6 AB-, 7 O+, 8 O-"`
}

type QuerySamplesParams struct {
	Type      string `json:"type" description:"Quantity type, e.g. height, bodyMass, dietaryWater"`
	Start     string `json:"start,omitempty" description:"ISO timestamp lower bound"`
	End       string `json:"end,omitempty" description:"ISO timestamp upper bound"`
	StrictEnd bool   `json:"strict_end,omitempty" description:"Only samples that ended before the upper bound"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of samples to return"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	// Convert the Arguments map to JSON bytes, then unmarshal to target
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return invalidParams("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return invalidParams("failed to unmarshal parameters: %w", err)
	}

	return nil
}

func parseTypes(names []string, fallback []models.ObjectType) []models.ObjectType {
	if len(names) == 0 {
		return fallback
	}
	types := make([]models.ObjectType, len(names))
	for i, n := range names {
		types[i] = models.ObjectType(n)
	}
	return types
}

// handleRequestAuthorization records read and share permissions
func (s *HealthProfileServer) handleRequestAuthorization(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RequestAuthorizationParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	success, err := s.store.RequestAuthorization(ctx,
		parseTypes(params.Share, profile.DefaultShareTypes),
		parseTypes(params.Read, profile.DefaultReadTypes))
	if err != nil {
		return nil, fmt.Errorf("authorization request failed: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{"success": success})
}

// handleGetProfile loads every metric and returns the labels
func (s *HealthProfileServer) handleGetProfile(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(s.profile.Load(ctx))
}

func (s *HealthProfileServer) sampleQuantity(req *protocol.CallToolRequest, fallback models.Quantity) (models.Quantity, error) {
	var params SaveSampleParams
	if err := extractParams(req, &params); err != nil {
		return models.Quantity{}, err
	}

	q := fallback
	if params.Value != nil {
		q.Value = *params.Value
	}
	if params.Unit != "" {
		unit, err := models.ParseUnit(params.Unit)
		if err != nil {
			return models.Quantity{}, invalidParams("%v", err)
		}
		q.Unit = unit
	}
	if q.Value <= 0 {
		return models.Quantity{}, invalidParams("value must be positive")
	}
	return q, nil
}

type writeFunc func(ctx context.Context, q models.Quantity) error

func (s *HealthProfileServer) saveTool(write writeFunc, fallback models.Quantity) toolHandler {
	return func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		q, err := s.sampleQuantity(req, fallback)
		if err != nil {
			return nil, err
		}
		if err := write(ctx, q); err != nil {
			return nil, err
		}
		return s.createJSONResponse(map[string]interface{}{
			"saved":    true,
			"quantity": q.String(),
			"labels":   s.profile.Snapshot(),
		})
	}
}

// handleSetCharacteristics stores date of birth, biological sex and blood type
func (s *HealthProfileServer) handleSetCharacteristics(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SetCharacteristicsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	var dob *models.DateComponents
	if params.DateOfBirth != "" {
		parsed, err := models.ParseDateComponents(params.DateOfBirth)
		if err != nil {
			return nil, invalidParams("%v", err)
		}
		dob = &parsed
	}

	var sex *models.BiologicalSex
	if params.BiologicalSex != nil {
		v := models.BiologicalSex(*params.BiologicalSex)
		sex = &v
	}

	var blood *models.BloodType
	if params.BloodType != nil {
		v := models.BloodType(*params.BloodType)
		blood = &v
	}

	if dob == nil && sex == nil && blood == nil {
		return nil, invalidParams("at least one characteristic is required")
	}

	if err := s.store.SetCharacteristics(ctx, dob, sex, blood); err != nil {
		return nil, fmt.Errorf("failed to store characteristics: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{"updated": true})
}

// handleQuerySamples returns raw samples of one type
func (s *HealthProfileServer) handleQuerySamples(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params QuerySamplesParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Type == "" {
		return nil, invalidParams("type is required")
	}

	// Set defaults
	if params.Limit <= 0 {
		params.Limit = 20
	}

	q := models.SampleQuery{
		Type:      models.ObjectType(params.Type),
		StrictEnd: params.StrictEnd,
		Limit:     params.Limit,
	}

	var err error
	if params.Start != "" {
		if q.Start, err = time.Parse(time.RFC3339, params.Start); err != nil {
			return nil, invalidParams("invalid start timestamp: %w", err)
		}
	}
	if params.End != "" {
		if q.End, err = time.Parse(time.RFC3339, params.End); err != nil {
			return nil, invalidParams("invalid end timestamp: %w", err)
		}
	}

	samples, err := s.store.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	if samples == nil {
		samples = []*models.Sample{}
	}

	return s.createJSONResponse(samples)
}

// registerTools builds the tool table the HTTP handler dispatches on.
func (s *HealthProfileServer) registerTools() {
	s.tools = map[string]toolHandler{
		"request_authorization": s.handleRequestAuthorization,
		"get_profile":           s.handleGetProfile,
		"save_height":           s.saveTool(s.profile.WriteHeight, profile.DefaultHeight),
		"save_weight":           s.saveTool(s.profile.WriteWeight, profile.DefaultWeight),
		"save_water":            s.saveTool(s.profile.WriteWater, profile.DefaultWater),
		"set_characteristics":   s.handleSetCharacteristics,
		"query_samples":         s.handleQuerySamples,
	}

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	s.logger.Info("registered tools", zap.String("tools", strings.Join(names, ", ")))
}
