package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/ai"
)

// Record is one persisted run. It captures the lifecycle summary and, for
// complete runs, the assembled artifact. Stage payloads are not persisted;
// the artifact is the deliverable.
type Record struct {
	RunID       string          `json:"run_id"`
	Status      quill.Status    `json:"status"`
	FailedStage string          `json:"failed_stage,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   quill.ErrorKind `json:"error_kind,omitempty"`
	Usage       ai.Usage        `json:"usage"`
	Stages      []StageRecord   `json:"stages"`
	Artifact    *quill.Artifact `json:"artifact,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StageRecord summarizes one stage execution.
type StageRecord struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Usage      ai.Usage  `json:"usage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRecord converts a run state snapshot into its persisted form. Pass the
// artifact for complete runs, nil otherwise.
func NewRecord(state quill.RunState, artifact *quill.Artifact) Record {
	stages := make([]StageRecord, 0, len(state.Results))
	for _, result := range state.Results {
		stages = append(stages, StageRecord{
			Stage:      result.StageID,
			Status:     string(result.Status),
			Error:      result.Error,
			Warnings:   append([]string(nil), result.Warnings...),
			Usage:      result.Usage,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
		})
	}
	return Record{
		RunID:       state.RunID,
		Status:      state.Status,
		FailedStage: state.FailedStage,
		Error:       state.Error,
		ErrorKind:   state.ErrorKind,
		Usage:       state.TotalUsage(),
		Stages:      stages,
		Artifact:    artifact,
		CreatedAt:   state.CreatedAt,
		UpdatedAt:   state.UpdatedAt,
	}
}

// Save inserts or updates the record keyed by run id.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.RunID == "" {
		return errors.New("record has no run id")
	}

	usageJSON, err := json.Marshal(rec.Usage)
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	stagesJSON, err := json.Marshal(rec.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	var artifactJSON any
	if rec.Artifact != nil {
		encoded, err := json.Marshal(rec.Artifact)
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}
		artifactJSON = string(encoded)
	}

	if err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            run_id, status, failed_stage, error_message, error_kind,
            usage_json, stages_json, artifact_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id) DO UPDATE SET
            status = excluded.status,
            failed_stage = excluded.failed_stage,
            error_message = excluded.error_message,
            error_kind = excluded.error_kind,
            usage_json = excluded.usage_json,
            stages_json = excluded.stages_json,
            artifact_json = excluded.artifact_json,
            updated_at = excluded.updated_at`,
		rec.RunID,
		string(rec.Status),
		nullableString(rec.FailedStage),
		nullableString(rec.Error),
		nullableString(string(rec.ErrorKind)),
		string(usageJSON),
		string(stagesJSON),
		artifactJSON,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return nil
}

const recordColumns = "run_id, status, failed_stage, error_message, error_kind, usage_json, stages_json, artifact_json, created_at, updated_at"

// Get fetches a run record by id, or nil when no such run was persisted.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// List returns records filtered by status (or all records when no status
// is provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...quill.Status) ([]*Record, error) {
	ctx = ensureContext(ctx)

	baseQuery := `SELECT ` + recordColumns + ` FROM runs`
	orderClause := ` ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes a run record. Removing an absent id is not an error.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		runID        string
		statusStr    string
		failedStage  sql.NullString
		errorMessage sql.NullString
		errorKind    sql.NullString
		usageJSON    sql.NullString
		stagesJSON   sql.NullString
		artifactJSON sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&runID,
		&statusStr,
		&failedStage,
		&errorMessage,
		&errorKind,
		&usageJSON,
		&stagesJSON,
		&artifactJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		RunID:       runID,
		Status:      quill.Status(statusStr),
		FailedStage: failedStage.String,
		Error:       errorMessage.String,
		ErrorKind:   quill.ErrorKind(errorKind.String),
	}

	if usageJSON.Valid && usageJSON.String != "" {
		if err := json.Unmarshal([]byte(usageJSON.String), &rec.Usage); err != nil {
			return nil, fmt.Errorf("decode usage for run %s: %w", runID, err)
		}
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &rec.Stages); err != nil {
			return nil, fmt.Errorf("decode stages for run %s: %w", runID, err)
		}
	}
	if artifactJSON.Valid && artifactJSON.String != "" {
		rec.Artifact = &quill.Artifact{}
		if err := json.Unmarshal([]byte(artifactJSON.String), rec.Artifact); err != nil {
			return nil, fmt.Errorf("decode artifact for run %s: %w", runID, err)
		}
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
