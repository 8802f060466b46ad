// Package handlers provides HTTP handlers for the mortgage scenario engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	appConfig "mortgage-scenario-engine/internal/config"
	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/services/database"
	s3service "mortgage-scenario-engine/internal/services/s3"
	"mortgage-scenario-engine/internal/utils"
)

// EvaluateHandler handles single-scenario evaluation requests.
type EvaluateHandler struct {
	engine   *engine.Engine
	db       *database.DB
	evalRepo *database.EvaluationRepository
}

// NewEvaluateHandler creates a new evaluate handler. The audit store is
// optional; evaluation proceeds without it.
func NewEvaluateHandler(ctx context.Context) (*EvaluateHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, err
	}

	guidelines := engine.DefaultGuidelines()
	if cfg.GuidelinesS3Key != "" {
		s3Svc, err := s3service.NewService(ctx)
		if err == nil {
			if g, err := s3Svc.LoadGuidelines(ctx, cfg.GuidelinesS3Key); err == nil {
				guidelines = g
			} else {
				utils.GetLogger().Warn("Falling back to default guidelines", utils.Error(err))
			}
		}
	}

	h := &EvaluateHandler{engine: engine.New(guidelines)}

	if db, err := database.New(cfg); err == nil {
		h.db = db
		h.evalRepo = database.NewEvaluationRepository(db)
	} else {
		utils.GetLogger().Warn("Audit store unavailable", utils.Error(err))
	}

	return h, nil
}

// EvaluateResponse wraps the evaluation result with its audit ID.
type EvaluateResponse struct {
	EvaluationID string                   `json:"evaluation_id"`
	Result       *models.EvaluationResult `json:"result"`
}

// Handle processes the API Gateway request for scenario evaluation.
func (h *EvaluateHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.GetLogger()

	headers := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": "POST,OPTIONS",
		"Content-Type":                 "application/json",
	}

	// Handle CORS preflight
	if request.HTTPMethod == "OPTIONS" {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
		}, nil
	}

	if request.HTTPMethod != "POST" {
		return errorResponse(headers, http.StatusMethodNotAllowed, "Only POST is supported")
	}

	var scenario models.Scenario
	if err := json.Unmarshal([]byte(request.Body), &scenario); err != nil {
		return errorResponse(headers, http.StatusBadRequest, "Invalid scenario JSON: "+err.Error())
	}

	result, err := h.engine.Evaluate(&scenario)
	if err != nil {
		logger.Warn("Evaluation rejected", utils.Error(err))
		return errorResponse(headers, http.StatusUnprocessableEntity, err.Error())
	}

	evaluationID := uuid.New().String()

	if h.evalRepo != nil {
		rec := &models.EvaluationRecord{
			ID:           evaluationID,
			Scenario:     &scenario,
			Result:       result,
			Eligible:     result.EligibilityOverall,
			FailedRules:  result.FailedRuleNames(),
			LLPATotalBps: result.Pricing.LLPATotalBps,
			NetPrice:     result.Pricing.NetPrice,
			CreatedAt:    time.Now().UTC(),
		}
		if err := h.evalRepo.Save(ctx, rec); err != nil {
			logger.Warn("Failed to persist evaluation", utils.Error(err))
		}
	}

	body, _ := json.Marshal(EvaluateResponse{
		EvaluationID: evaluationID,
		Result:       result,
	})

	logger.Info("Scenario evaluated",
		utils.String("evaluation_id", evaluationID),
		utils.Bool("eligible", result.EligibilityOverall))

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// Close cleans up resources.
func (h *EvaluateHandler) Close() {
	if h.db != nil {
		h.db.Close()
	}
}
