package models

import "time"

// EvaluationRecord is one persisted evaluation for the audit trail.
type EvaluationRecord struct {
	ID           string            `json:"id"`
	BatchID      *string           `json:"batch_id,omitempty"`
	Scenario     *Scenario         `json:"scenario"`
	Result       *EvaluationResult `json:"result"`
	Eligible     bool              `json:"eligible"`
	FailedRules  []string          `json:"failed_rules"`
	LLPATotalBps float64           `json:"llpa_total_bps"`
	NetPrice     float64           `json:"net_price"`
	CreatedAt    time.Time         `json:"created_at"`
}

// BatchSummary aggregates the outcomes of one batch run.
type BatchSummary struct {
	BatchID     string    `json:"batch_id"`
	TotalRows   int       `json:"total_rows"`
	Evaluated   int       `json:"evaluated"`
	Eligible    int       `json:"eligible"`
	Ineligible  int       `json:"ineligible"`
	InvalidRows int       `json:"invalid_rows"`
	Errors      []string  `json:"errors,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// BulkSaveResult reports the outcome of persisting a batch of records.
type BulkSaveResult struct {
	SavedCount  int      `json:"saved_count"`
	FailedCount int      `json:"failed_count"`
	Errors      []string `json:"errors,omitempty"`
}
