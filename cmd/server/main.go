// Package main provides a local HTTP server for development and testing.
// It exposes the scenario evaluation API used by the frontend along with
// batch CSV upload endpoints.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mortgage-scenario-engine/internal/config"
	"mortgage-scenario-engine/internal/engine"
	"mortgage-scenario-engine/internal/handlers"
	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/services/database"
	"mortgage-scenario-engine/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

// Server holds all dependencies
type Server struct {
	db       *database.DB
	evalRepo *database.EvaluationRepository
	engine   *engine.Engine
	config   *config.Config
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UploadResponse contains CSV batch processing results
type UploadResponse struct {
	BatchID      string `json:"batch_id"`
	TotalRows    int    `json:"total_rows"`
	Evaluated    int    `json:"evaluated"`
	Eligible     int    `json:"eligible"`
	Ineligible   int    `json:"ineligible"`
	Errors       int    `json:"errors"`
	ProcessingMs int64  `json:"processing_ms"`
}

func main() {
	// Initialize logger first
	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load config from environment: %v", err)
		cfg = &config.Config{}
	}

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Server will run without the audit store")
	}

	server := &Server{
		db:     db,
		engine: engine.New(nil),
		config: cfg,
	}

	if db != nil {
		server.evalRepo = database.NewEvaluationRepository(db)
	}

	// Setup routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/api/health", server.healthHandler)

	// Evaluate a single scenario
	mux.HandleFunc("/api/evaluate", server.evaluateHandler)

	// Preset scenario catalog
	mux.HandleFunc("/api/presets", server.presetsHandler)

	// Guideline tables (read-only)
	mux.HandleFunc("/api/guidelines", server.guidelinesHandler)

	// CSV batch upload
	mux.HandleFunc("/api/upload", server.uploadHandler)

	// Stored evaluations
	mux.HandleFunc("/api/evaluations", server.evaluationsHandler)
	mux.HandleFunc("/api/evaluations/", server.evaluationByIDHandler)

	// Per-batch eligibility counts
	mux.HandleFunc("/api/batches/", server.batchStatsHandler)

	if server.evalRepo != nil && cfg.RetentionDays > 0 {
		go server.retentionSweep(cfg.RetentionDays)
	}

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	port := strconv.Itoa(cfg.Port)
	if port == "0" {
		port = "8080"
	}
	addr := fmt.Sprintf("0.0.0.0:%s", port)

	log.Printf("Mortgage Scenario Engine API Server")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("Health: http://localhost:%s/health", port)

	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	// Load balancers probe with HEAD as well as GET
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dbStatus := "disconnected"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err == nil {
			dbStatus = "connected"
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Mortgage Scenario Engine API is running",
		Data: map[string]interface{}{
			"status":    "healthy",
			"database":  dbStatus,
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var scenario models.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scenario); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid scenario JSON: " + err.Error(),
		})
		return
	}

	result, err := s.engine.Evaluate(&scenario)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	evaluationID := uuid.New().String()
	if s.evalRepo != nil {
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
		if err := s.evalRepo.Save(r.Context(), rec); err != nil {
			log.Printf("Warning: Could not persist evaluation %s: %v", evaluationID, err)
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: handlers.EvaluateResponse{
			EvaluationID: evaluationID,
			Result:       result,
		},
	})
}

func (s *Server) presetsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    handlers.PresetScenarios(),
	})
}

func (s *Server) guidelinesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.engine.Guidelines(),
	})
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Handle multipart form upload
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Failed to parse form: " + err.Error(),
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "No file provided",
		})
		return
	}
	defer file.Close()

	// Validate file type
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Only CSV files are allowed",
		})
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to read file",
		})
		return
	}

	result, err := s.processCSVContent(r.Context(), content, header.Filename)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "CSV processed successfully",
		Data:    result,
	})
}

func (s *Server) processCSVContent(ctx context.Context, content []byte, filename string) (*UploadResponse, error) {
	startTime := time.Now()
	batchID := fmt.Sprintf("batch_%d", time.Now().Unix())

	log.Printf("Processing CSV: %s (BatchID: %s)", filename, batchID)

	parser := utils.NewCSVParser()
	scenarios, parseErrors := parser.ParseScenarios(string(content))

	log.Printf("Parsed: %d valid scenarios, %d errors", len(scenarios), len(parseErrors))

	result := &UploadResponse{
		BatchID:   batchID,
		TotalRows: len(scenarios) + len(parseErrors),
		Errors:    len(parseErrors),
	}

	var recs []*models.EvaluationRecord
	for _, scenario := range scenarios {
		evalResult, err := s.engine.Evaluate(scenario)
		if err != nil {
			result.Errors++
			continue
		}

		result.Evaluated++
		if evalResult.EligibilityOverall {
			result.Eligible++
		} else {
			result.Ineligible++
		}

		recs = append(recs, &models.EvaluationRecord{
			ID:           uuid.New().String(),
			BatchID:      &batchID,
			Scenario:     scenario,
			Result:       evalResult,
			Eligible:     evalResult.EligibilityOverall,
			FailedRules:  evalResult.FailedRuleNames(),
			LLPATotalBps: evalResult.Pricing.LLPATotalBps,
			NetPrice:     evalResult.Pricing.NetPrice,
			CreatedAt:    time.Now().UTC(),
		})
	}

	if s.evalRepo != nil && len(recs) > 0 {
		saveResult, err := s.evalRepo.BulkSave(ctx, recs)
		if err != nil {
			log.Printf("Warning: Could not persist batch %s: %v", batchID, err)
		} else if saveResult.FailedCount > 0 {
			log.Printf("Warning: %d records failed to persist", saveResult.FailedCount)
		}
	}

	result.ProcessingMs = time.Since(startTime).Milliseconds()
	return result, nil
}

func (s *Server) evaluationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.evalRepo == nil {
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    []*models.EvaluationRecord{},
		})
		return
	}

	if batchID := r.URL.Query().Get("batch_id"); batchID != "" {
		recs, err := s.evalRepo.ListByBatch(r.Context(), batchID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{
				Success: false,
				Error:   "Failed to fetch evaluations",
			})
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: recs})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	recs, err := s.evalRepo.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to fetch evaluations",
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: recs})
}

func (s *Server) evaluationByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/evaluations/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	if s.evalRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "Audit store is not available",
		})
		return
	}

	rec, err := s.evalRepo.GetByID(r.Context(), id)
	if err != nil {
		if err == database.ErrRecordNotFound {
			writeJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error:   "Evaluation not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to fetch evaluation",
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: rec})
}

func (s *Server) batchStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batchID := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	batchID = strings.TrimSuffix(batchID, "/stats")
	if batchID == "" || strings.Contains(batchID, "/") {
		http.NotFound(w, r)
		return
	}

	if s.evalRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "Audit store is not available",
		})
		return
	}

	eligible, ineligible, err := s.evalRepo.BatchStats(r.Context(), batchID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Failed to fetch batch stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"batch_id":   batchID,
			"eligible":   eligible,
			"ineligible": ineligible,
			"total":      eligible + ineligible,
		},
	})
}

// retentionSweep deletes evaluation records past the configured retention,
// once at startup and then daily.
func (s *Server) retentionSweep(retentionDays int) {
	for {
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
		deleted, err := s.evalRepo.DeleteOlderThan(context.Background(), cutoff)
		if err != nil {
			log.Printf("Warning: Retention sweep failed: %v", err)
		} else if deleted > 0 {
			log.Printf("Retention sweep removed %d evaluations older than %s", deleted, cutoff.Format("2006-01-02"))
		}
		time.Sleep(24 * time.Hour)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
