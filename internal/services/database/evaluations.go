// Package database provides PostgreSQL persistence for evaluation records.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mortgage-scenario-engine/internal/models"
)

// ErrRecordNotFound is returned when no evaluation matches the given ID.
var ErrRecordNotFound = errors.New("evaluation record not found")

// EvaluationRepository handles evaluation record persistence.
type EvaluationRepository struct {
	db *DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Save inserts one evaluation record.
func (r *EvaluationRepository) Save(ctx context.Context, rec *models.EvaluationRecord) error {
	scenarioJSON, err := json.Marshal(rec.Scenario)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO evaluations (id, batch_id, scenario, result, eligible, failed_rules, llpa_total_bps, net_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		rec.ID,
		rec.BatchID,
		scenarioJSON,
		resultJSON,
		rec.Eligible,
		rec.FailedRules,
		rec.LLPATotalBps,
		rec.NetPrice,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	return nil
}

// BulkSave inserts a batch of evaluation records in one transaction. Rows
// that fail are reported individually; the rest still commit.
func (r *EvaluationRepository) BulkSave(ctx context.Context, recs []*models.EvaluationRecord) (*models.BulkSaveResult, error) {
	result := &models.BulkSaveResult{}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, rec := range recs {
			scenarioJSON, err := json.Marshal(rec.Scenario)
			if err != nil {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
				continue
			}
			resultJSON, err := json.Marshal(rec.Result)
			if err != nil {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
				continue
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO evaluations (id, batch_id, scenario, result, eligible, failed_rules, llpa_total_bps, net_price, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				rec.ID,
				rec.BatchID,
				scenarioJSON,
				resultJSON,
				rec.Eligible,
				rec.FailedRules,
				rec.LLPATotalBps,
				rec.NetPrice,
				rec.CreatedAt.UTC(),
			)
			if err != nil {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
			} else {
				result.SavedCount++
			}
		}
		return nil
	})

	if err != nil {
		return result, fmt.Errorf("bulk save failed: %w", err)
	}

	return result, nil
}

// GetByID retrieves an evaluation record by its ID.
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	query := `
		SELECT id, batch_id, scenario, result, eligible, failed_rules, llpa_total_bps, net_price, created_at
		FROM evaluations
		WHERE id = $1`

	var rec models.EvaluationRecord
	var scenarioJSON, resultJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.BatchID,
		&scenarioJSON,
		&resultJSON,
		&rec.Eligible,
		&rec.FailedRules,
		&rec.LLPATotalBps,
		&rec.NetPrice,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	if err := json.Unmarshal(scenarioJSON, &rec.Scenario); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &rec, nil
}

// ListByBatch retrieves every record for one batch, newest first.
func (r *EvaluationRepository) ListByBatch(ctx context.Context, batchID string) ([]*models.EvaluationRecord, error) {
	query := `
		SELECT id, batch_id, scenario, result, eligible, failed_rules, llpa_total_bps, net_price, created_at
		FROM evaluations
		WHERE batch_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch evaluations: %w", err)
	}
	defer rows.Close()

	var recs []*models.EvaluationRecord
	for rows.Next() {
		var rec models.EvaluationRecord
		var scenarioJSON, resultJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.BatchID,
			&scenarioJSON,
			&resultJSON,
			&rec.Eligible,
			&rec.FailedRules,
			&rec.LLPATotalBps,
			&rec.NetPrice,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		if err := json.Unmarshal(scenarioJSON, &rec.Scenario); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
		}
		if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}

		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// ListRecent retrieves the most recent records across all batches.
func (r *EvaluationRepository) ListRecent(ctx context.Context, limit int) ([]*models.EvaluationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, batch_id, eligible, failed_rules, llpa_total_bps, net_price, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent evaluations: %w", err)
	}
	defer rows.Close()

	var recs []*models.EvaluationRecord
	for rows.Next() {
		var rec models.EvaluationRecord
		err := rows.Scan(
			&rec.ID,
			&rec.BatchID,
			&rec.Eligible,
			&rec.FailedRules,
			&rec.LLPATotalBps,
			&rec.NetPrice,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// BatchStats aggregates pass/fail counts for one batch.
func (r *EvaluationRepository) BatchStats(ctx context.Context, batchID string) (eligible int, ineligible int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE eligible),
			COUNT(*) FILTER (WHERE NOT eligible)
		FROM evaluations
		WHERE batch_id = $1`

	err = r.db.QueryRow(ctx, query, batchID).Scan(&eligible, &ineligible)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get batch stats: %w", err)
	}

	return eligible, ineligible, nil
}

// DeleteOlderThan removes records past the retention window.
func (r *EvaluationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := r.db.Exec(ctx, `DELETE FROM evaluations WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old evaluations: %w", err)
	}
	return deleted, nil
}
