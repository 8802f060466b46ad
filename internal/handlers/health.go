// Package handlers provides HTTP handlers for the mortgage scenario engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "mortgage-scenario-engine/internal/config"
	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/services/database"
)

// HealthHandler reports service health: engine configuration, guideline
// source, and audit database connectivity.
type HealthHandler struct {
	db               *database.DB
	guidelinesSource string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() (*HealthHandler, error) {
	h := &HealthHandler{guidelinesSource: "built-in defaults"}

	cfg, err := appConfig.Load()
	if err != nil {
		return h, nil // degraded but still serving
	}
	if cfg.GuidelinesS3Key != "" {
		h.guidelinesSource = "s3:" + cfg.GuidelinesS3Key
	}

	if db, err := database.New(cfg); err == nil {
		h.db = db
	}
	return h, nil
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	Stage            string `json:"stage"`
	RuleCount        int    `json:"rule_count"`
	GuidelinesSource string `json:"guidelines_source"`
	Database         string `json:"database,omitempty"`
	DBConnsInUse     int32  `json:"db_conns_in_use,omitempty"`
	DBConnsIdle      int32  `json:"db_conns_idle,omitempty"`
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	response := HealthResponse{
		Status:           "healthy",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Service:          "mortgage-scenario-engine",
		Version:          getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:            getEnvOrDefault("STAGE", "unknown"),
		RuleCount:        engine.RuleCount(),
		GuidelinesSource: h.guidelinesSource,
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
			if stat := h.db.Stat(); stat != nil {
				response.DBConnsInUse = stat.AcquiredConns()
				response.DBConnsIdle = stat.IdleConns()
			}
		}
	} else {
		response.Database = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	body, _ := json.Marshal(response)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// Close cleans up resources.
func (h *HealthHandler) Close() {
	if h.db != nil {
		h.db.Close()
	}
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
