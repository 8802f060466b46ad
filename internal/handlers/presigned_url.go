package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	s3service "mortgage-scenario-engine/internal/services/s3"
	"mortgage-scenario-engine/internal/utils"
)

// PresignedURLHandler issues presigned S3 URLs for the batch workflow:
// uploads of scenario CSVs, and downloads of finished result documents.
type PresignedURLHandler struct {
	s3Service *s3service.Service
}

// NewPresignedURLHandler creates a new presigned URL handler.
func NewPresignedURLHandler(ctx context.Context) (*PresignedURLHandler, error) {
	svc, err := s3service.NewService(ctx)
	if err != nil {
		return nil, err
	}

	return &PresignedURLHandler{s3Service: svc}, nil
}

// PresignedURLResponse is the response structure for presigned URL requests.
type PresignedURLResponse struct {
	URL       string `json:"url"`
	S3Key     string `json:"s3Key"`
	ExpiresAt string `json:"expiresAt"`
}

// downloadablePrefixes are the only key prefixes a client may request a
// download URL for. Raw uploads stay private.
var downloadablePrefixes = []string{"results/", "processed/"}

// Handle processes the API Gateway request for generating presigned URLs.
// Without an action parameter it issues an upload URL for a scenario CSV;
// action=download issues a GET URL for a result or archived batch file.
func (h *PresignedURLHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": "GET,OPTIONS",
		"Content-Type":                 "application/json",
	}

	if request.HTTPMethod == "OPTIONS" {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
		}, nil
	}

	if request.QueryStringParameters["action"] == "download" {
		return h.handleDownload(ctx, request, headers)
	}
	return h.handleUpload(ctx, request, headers)
}

func (h *PresignedURLHandler) handleUpload(ctx context.Context, request events.APIGatewayProxyRequest, headers map[string]string) (events.APIGatewayProxyResponse, error) {
	logger := utils.GetLogger()

	filename := request.QueryStringParameters["filename"]
	if filename == "" {
		filename = "scenarios_" + uuid.New().String()[:8] + ".csv"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return errorResponse(headers, http.StatusBadRequest, "Only CSV scenario files are allowed")
	}

	datePrefix := time.Now().UTC().Format("2006/01/02")
	s3Key := "scenario-batches/" + datePrefix + "/" + uuid.New().String() + "_" + sanitizeFilename(filename)

	result, err := h.s3Service.GeneratePresignedUploadURL(ctx, s3Key, "text/csv", 60)
	if err != nil {
		logger.Error("Failed to generate upload URL", utils.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate upload URL")
	}

	logger.Info("Issued scenario upload URL", utils.String("s3Key", s3Key))
	return urlResponse(headers, result)
}

func (h *PresignedURLHandler) handleDownload(ctx context.Context, request events.APIGatewayProxyRequest, headers map[string]string) (events.APIGatewayProxyResponse, error) {
	logger := utils.GetLogger()

	key := request.QueryStringParameters["key"]
	if key == "" {
		return errorResponse(headers, http.StatusBadRequest, "Missing key parameter")
	}
	if strings.Contains(key, "..") || !hasDownloadablePrefix(key) {
		return errorResponse(headers, http.StatusForbidden, "Key is not downloadable")
	}

	exists, err := h.s3Service.FileExists(ctx, key)
	if err == nil && !exists {
		return errorResponse(headers, http.StatusNotFound, "No such result file")
	}

	result, err := h.s3Service.GeneratePresignedDownloadURL(ctx, key, 60)
	if err != nil {
		logger.Error("Failed to generate download URL", utils.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate download URL")
	}

	logger.Info("Issued results download URL", utils.String("s3Key", key))
	return urlResponse(headers, result)
}

func hasDownloadablePrefix(key string) bool {
	for _, p := range downloadablePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func urlResponse(headers map[string]string, result *s3service.PresignedURLResult) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(PresignedURLResponse{
		URL:       result.URL,
		S3Key:     result.Key,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// sanitizeFilename removes unsafe characters from filename.
func sanitizeFilename(filename string) string {
	safe := ""
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			safe += string(r)
		}
	}
	if len(safe) > 100 {
		safe = safe[:100]
	}
	return safe
}

// errorResponse creates an error response.
func errorResponse(headers map[string]string, statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"error":   http.StatusText(statusCode),
		"message": message,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}
