package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/model"
)

// Evidence represents a row in the evidence table.
type Evidence struct {
	ID              string               `json:"id"`
	FileName        string               `json:"fileName"`
	ObjectKey       string               `json:"objectKey"`
	ReportKey       *string              `json:"reportKey,omitempty"`
	CaseID          string               `json:"caseId,omitempty"`
	InspectorID     string               `json:"inspectorId,omitempty"`
	Status          model.EvidenceStatus `json:"status"`
	IsAuthentic     *bool                `json:"isAuthentic,omitempty"`
	RejectionReason *string              `json:"rejectionReason,omitempty"`
	FileHash        string               `json:"fileHash,omitempty"`
	ELAScore        *float64             `json:"elaScore,omitempty"`
	Result          *forensic.Result     `json:"result,omitempty"`
	ErrorMessage    *string              `json:"errorMessage,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// EvidenceRepository wraps all SQL used by the API and the worker.
type EvidenceRepository struct {
	pool *pgxpool.Pool
}

// NewEvidenceRepository constructs a repository.
func NewEvidenceRepository(pool *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{pool: pool}
}

// Create inserts a queued evidence row before analysis begins.
func (r *EvidenceRepository) Create(ctx context.Context, ev *Evidence) error {
	now := time.Now().UTC()
	ev.Status = model.StatusQueued
	ev.CreatedAt = now
	ev.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evidence (id, file_name, object_key, case_id, inspector_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ev.ID, ev.FileName, ev.ObjectKey, ev.CaseID, ev.InspectorID, ev.Status, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// Get returns an evidence row by id.
func (r *EvidenceRepository) Get(ctx context.Context, id string) (*Evidence, error) {
	var (
		ev         Evidence
		reportKey  sql.NullString
		authentic  sql.NullBool
		rejection  sql.NullString
		elaScore   sql.NullFloat64
		resultJSON []byte
		errorMsg   sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, file_name, object_key, report_key, case_id, inspector_id, status,
		       is_authentic, rejection_reason, COALESCE(file_hash,''), ela_score, result, error_message,
		       created_at, updated_at
		FROM evidence WHERE id=$1
	`, id)
	if err := row.Scan(&ev.ID, &ev.FileName, &ev.ObjectKey, &reportKey, &ev.CaseID, &ev.InspectorID,
		&ev.Status, &authentic, &rejection, &ev.FileHash, &elaScore, &resultJSON, &errorMsg,
		&ev.CreatedAt, &ev.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("evidence not found: %w", err)
		}
		return nil, fmt.Errorf("select evidence: %w", err)
	}
	if reportKey.Valid {
		key := reportKey.String
		ev.ReportKey = &key
	}
	if authentic.Valid {
		v := authentic.Bool
		ev.IsAuthentic = &v
	}
	if rejection.Valid {
		v := rejection.String
		ev.RejectionReason = &v
	}
	if elaScore.Valid {
		v := elaScore.Float64
		ev.ELAScore = &v
	}
	if errorMsg.Valid {
		v := errorMsg.String
		ev.ErrorMessage = &v
	}
	if len(resultJSON) > 0 {
		var result forensic.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode stored result: %w", err)
		}
		ev.Result = &result
	}
	return &ev, nil
}

// MarkAnalyzing sets the status to analyzing.
func (r *EvidenceRepository) MarkAnalyzing(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE evidence SET status=$1, updated_at=$2 WHERE id=$3
	`, model.StatusAnalyzing, now, id)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	return nil
}

// MarkFailed records an infrastructure fault. Forensic rejections never land
// here; they go through MarkAnalyzed as a normal completion.
func (r *EvidenceRepository) MarkFailed(ctx context.Context, id string, msg string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE evidence SET status=$1, error_message=$2, updated_at=$3 WHERE id=$4
	`, model.StatusFailed, msg, now, id)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	return nil
}

// MarkAnalyzed stores a finished forensic result with its report object key.
// The verdict decides the terminal status.
func (r *EvidenceRepository) MarkAnalyzed(ctx context.Context, id, reportKey string, result *forensic.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	status := model.StatusComplete
	if !result.Authentic {
		status = model.StatusRejected
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		UPDATE evidence
		SET status=$1,
			report_key=$2,
			is_authentic=$3,
			rejection_reason=$4,
			file_hash=$5,
			ela_score=$6,
			result=$7,
			error_message=NULL,
			updated_at=$8
		WHERE id=$9
	`, status, reportKey, result.Authentic, result.RejectionReason, result.FileHash,
		result.Tampering.ELAScore, resultJSON, now, id)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	return nil
}
