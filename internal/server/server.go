// internal/server/server.go
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mcp-health-profile/internal/healthstore"
	"mcp-health-profile/internal/models"
	"mcp-health-profile/internal/profile"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Host   string
	Port   int
	APIKey string
}

// Store is what the tools need from the health-data store beyond the
// profile screen.
type Store interface {
	IsHealthDataAvailable(ctx context.Context) bool
	RequestAuthorization(ctx context.Context, toShare, read []models.ObjectType) (bool, error)
	SetCharacteristics(ctx context.Context, dob *models.DateComponents, sex *models.BiologicalSex, blood *models.BloodType) error
	Execute(ctx context.Context, q models.SampleQuery) ([]*models.Sample, error)
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type HealthProfileServer struct {
	httpServer *http.Server
	engine     *gin.Engine
	store      Store
	profile    *profile.Controller
	logger     *zap.Logger
	config     *Config
	tools      map[string]toolHandler
}

func NewHealthProfileServer(cfg *Config, store Store, controller *profile.Controller, logger *zap.Logger) (*HealthProfileServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &HealthProfileServer{
		store:   store,
		profile: controller,
		logger:  logger,
		config:  cfg,
	}

	s.registerTools()

	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.engine,
	}

	return s, nil
}

func (s *HealthProfileServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
	}))

	mcp := r.Group("/", s.requireAPIKey)
	{
		mcp.POST("/", s.handleMCP)
		mcp.POST("/mcp", s.handleMCP)
	}

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/profile", s.requireAPIKey, s.handleProfile)
	}

	return r
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *HealthProfileServer) Handler() http.Handler {
	return s.engine
}

func (s *HealthProfileServer) requireAPIKey(c *gin.Context) {
	if s.config.APIKey == "" {
		c.Next()
		return
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.APIKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		return
	}
	c.Next()
}

func (s *HealthProfileServer) handleMCP(c *gin.Context) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown tool: %s", request.Name)})
		return
	}

	result, err := handler(c.Request.Context(), &request)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("tool failed", zap.String("tool", request.Name), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// paramError marks a failure caused by the caller's arguments.
type paramError struct{ err error }

func (e *paramError) Error() string { return e.err.Error() }
func (e *paramError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{err: fmt.Errorf(format, args...)}
}

func statusFor(err error) int {
	var pe *paramError
	switch {
	case errors.As(err, &pe),
		errors.Is(err, healthstore.ErrIncompatibleUnit),
		errors.Is(err, healthstore.ErrTypeNotAvailable):
		return http.StatusBadRequest
	case errors.Is(err, healthstore.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, healthstore.ErrHealthDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HealthProfileServer) handleHealth(c *gin.Context) {
	if !s.store.IsHealthDataAvailable(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HealthProfileServer) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.profile.Load(c.Request.Context()))
}

// Start serves until ctx is done or Stop is called.
func (s *HealthProfileServer) Start(ctx context.Context) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				s.logger.Warn("error during shutdown", zap.Error(err))
			}
		case <-stopped:
		}
	}()

	s.logger.Info("starting health profile server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HealthProfileServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *HealthProfileServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
