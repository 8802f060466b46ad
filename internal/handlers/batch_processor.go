package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appConfig "mortgage-scenario-engine/internal/config"
	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/services/database"
	s3service "mortgage-scenario-engine/internal/services/s3"
	"mortgage-scenario-engine/internal/services/ses"
	"mortgage-scenario-engine/internal/utils"
)

// BatchProcessorHandler handles S3 events for scenario CSV batches.
type BatchProcessorHandler struct {
	s3Client *s3.Client
	storage  *s3service.Service
	db       *database.DB
	evalRepo *database.EvaluationRepository
	engine   *engine.Engine
	notifier *ses.Service
	cfg      *appConfig.Config
}

// NewBatchProcessorHandler creates a new batch processor handler.
func NewBatchProcessorHandler(ctx context.Context) (*BatchProcessorHandler, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage, err := s3service.NewService(ctx)
	if err != nil {
		utils.GetLogger().Warn("Result storage unavailable", utils.Error(err))
	}

	// Load the same guidelines override the evaluate handler uses, so a
	// scenario prices identically through either path.
	guidelines := engine.DefaultGuidelines()
	if cfg.GuidelinesS3Key != "" && storage != nil {
		if g, err := storage.LoadGuidelines(ctx, cfg.GuidelinesS3Key); err == nil {
			guidelines = g
		} else {
			utils.GetLogger().Warn("Falling back to default guidelines", utils.Error(err))
		}
	}

	h := &BatchProcessorHandler{
		s3Client: s3.NewFromConfig(awsCfg),
		storage:  storage,
		db:       db,
		evalRepo: database.NewEvaluationRepository(db),
		engine:   engine.New(guidelines),
		cfg:      cfg,
	}

	if cfg.NotificationsEnabled && cfg.SummaryRecipient != "" {
		notifier, err := ses.NewService(ctx)
		if err != nil {
			utils.GetLogger().Warn("Notifier unavailable", utils.Error(err))
		} else {
			h.notifier = notifier
		}
	}

	return h, nil
}

// BatchProcessResult is the result of processing one batch file.
type BatchProcessResult struct {
	Message    string   `json:"message"`
	BatchID    string   `json:"batch_id"`
	Evaluated  int      `json:"evaluated"`
	Eligible   int      `json:"eligible"`
	Ineligible int      `json:"ineligible"`
	Invalid    int      `json:"invalid"`
	Errors     []string `json:"errors,omitempty"`
}

// Handle processes S3 events for uploaded scenario CSV files.
func (h *BatchProcessorHandler) Handle(ctx context.Context, s3Event events.S3Event) (BatchProcessResult, error) {
	logger := utils.GetLogger()

	if len(s3Event.Records) == 0 {
		return BatchProcessResult{Message: "No records to process"}, nil
	}

	record := s3Event.Records[0]
	bucket := record.S3.Bucket.Name
	key, err := url.QueryUnescape(record.S3.Object.Key)
	if err != nil {
		return BatchProcessResult{}, fmt.Errorf("failed to decode S3 key: %w", err)
	}

	logger.Info("Processing scenario batch",
		utils.String("bucket", bucket),
		utils.String("key", key))

	csvContent, err := h.downloadCSV(ctx, bucket, key)
	if err != nil {
		logger.Error("Failed to download CSV", utils.Error(err))
		return BatchProcessResult{}, fmt.Errorf("failed to download CSV: %w", err)
	}

	batchID := generateBatchID(key)
	startedAt := time.Now().UTC()

	parser := utils.NewCSVParser()
	scenarios, parseErrors := parser.ParseScenarios(csvContent)

	if len(scenarios) == 0 {
		errMsgs := make([]string, len(parseErrors))
		for i, e := range parseErrors {
			errMsgs[i] = e.Error()
		}
		return BatchProcessResult{
			Message: "No valid scenarios found in CSV",
			BatchID: batchID,
			Invalid: len(parseErrors),
			Errors:  errMsgs,
		}, nil
	}

	summary := &models.BatchSummary{
		BatchID:     batchID,
		TotalRows:   len(scenarios) + len(parseErrors),
		InvalidRows: len(parseErrors),
		StartedAt:   startedAt,
	}

	var recs []*models.EvaluationRecord
	var evalErrors []string
	for i, scenario := range scenarios {
		result, err := h.engine.Evaluate(scenario)
		if err != nil {
			summary.InvalidRows++
			evalErrors = append(evalErrors, fmt.Sprintf("scenario %d: %v", i+1, err))
			continue
		}

		summary.Evaluated++
		if result.EligibilityOverall {
			summary.Eligible++
		} else {
			summary.Ineligible++
		}

		recs = append(recs, &models.EvaluationRecord{
			ID:           uuid.New().String(),
			BatchID:      &batchID,
			Scenario:     scenario,
			Result:       result,
			Eligible:     result.EligibilityOverall,
			FailedRules:  result.FailedRuleNames(),
			LLPATotalBps: result.Pricing.LLPATotalBps,
			NetPrice:     result.Pricing.NetPrice,
			CreatedAt:    time.Now().UTC(),
		})
	}

	saveResult, err := h.evalRepo.BulkSave(ctx, recs)
	if err != nil {
		logger.Error("Failed to persist batch", utils.Error(err))
		return BatchProcessResult{}, fmt.Errorf("failed to persist batch: %w", err)
	}

	summary.CompletedAt = time.Now().UTC()
	for _, e := range parseErrors {
		summary.Errors = append(summary.Errors, e.Error())
	}
	summary.Errors = append(summary.Errors, evalErrors...)
	summary.Errors = append(summary.Errors, saveResult.Errors...)
	if len(summary.Errors) > 10 {
		summary.Errors = summary.Errors[:10]
	}

	logger.Info("Batch complete",
		utils.String("batchID", batchID),
		utils.Int("evaluated", summary.Evaluated),
		utils.Int("eligible", summary.Eligible),
		utils.Int("ineligible", summary.Ineligible),
		utils.Int("invalid", summary.InvalidRows))

	if h.notifier != nil {
		if _, err := h.notifier.SendBatchSummary(ctx, h.cfg.SummaryRecipient, summary); err != nil {
			logger.Warn("Failed to send batch summary", utils.Error(err))
		}
	}

	// Publish the summary where the presigned download endpoint can reach it,
	// then archive the processed file.
	if h.storage != nil {
		if data, err := ResultsJSON(summary); err == nil {
			resultsKey := "results/" + batchID + ".json"
			if err := h.storage.UploadFile(ctx, resultsKey, data, "application/json"); err != nil {
				logger.Warn("Failed to upload batch results", utils.Error(err))
			}
		}
	}
	if err := h.archiveFile(ctx, bucket, key); err != nil {
		logger.Warn("Failed to archive file", utils.Error(err))
	}

	return BatchProcessResult{
		Message:    "Batch processed successfully",
		BatchID:    batchID,
		Evaluated:  summary.Evaluated,
		Eligible:   summary.Eligible,
		Ineligible: summary.Ineligible,
		Invalid:    summary.InvalidRows,
		Errors:     summary.Errors,
	}, nil
}

// downloadCSV downloads CSV content from S3.
func (h *BatchProcessorHandler) downloadCSV(ctx context.Context, bucket, key string) (string, error) {
	output, err := h.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return "", err
	}
	defer output.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, output.Body); err != nil {
		return "", err
	}

	content := buf.String()
	if content == "" {
		return "", fmt.Errorf("CSV file is empty")
	}

	return content, nil
}

// generateBatchID generates a unique batch ID for this upload.
func generateBatchID(key string) string {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	hash := sha256.Sum256([]byte(key + timestamp))
	return hex.EncodeToString(hash[:])[:16]
}

// archiveFile moves the processed file to an archive folder.
func (h *BatchProcessorHandler) archiveFile(ctx context.Context, bucket, key string) error {
	archiveKey := "processed/" + key
	copySource := bucket + "/" + key

	// Copy to archive
	_, err := h.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &bucket,
		CopySource: &copySource,
		Key:        &archiveKey,
	})
	if err != nil {
		return fmt.Errorf("failed to copy to archive: %w", err)
	}

	// Delete original
	_, err = h.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete original: %w", err)
	}

	return nil
}

// Close cleans up resources.
func (h *BatchProcessorHandler) Close() {
	if h.db != nil {
		h.db.Close()
	}
}

// ResultsJSON serializes a batch summary for upload alongside the archive.
func ResultsJSON(summary *models.BatchSummary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}
