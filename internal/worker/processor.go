package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/queue"
	"github.com/omni-inspector/photoproof/internal/repository"
	"github.com/omni-inspector/photoproof/internal/s3storage"
)

// Processor is plugged into the asynq worker loop. It draws a sharp line
// between infrastructure faults (returned as errors so asynq retries) and
// forensic rejections (normal completions persisted like any other result).
type Processor struct {
	repo     *repository.EvidenceRepository
	store    *s3storage.Storage
	analyzer *forensic.Analyzer
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo *repository.EvidenceRepository, store *s3storage.Storage, analyzer *forensic.Analyzer) *Processor {
	return &Processor{repo: repo, store: store, analyzer: analyzer}
}

// Handler registers the analyze job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.AnalyzeEvidenceTask, p.handleAnalyze)
	return mux
}

func (p *Processor) handleAnalyze(ctx context.Context, task *asynq.Task) error {
	var payload queue.AnalyzePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	failure := func(err error) error {
		slog.Error("analysis job failed", "evidence_id", payload.EvidenceID, "error", err)
		_ = p.repo.MarkFailed(ctx, payload.EvidenceID, err.Error())
		return err
	}
	if err := p.repo.MarkAnalyzing(ctx, payload.EvidenceID); err != nil {
		return failure(err)
	}
	data, err := p.store.DownloadEvidence(ctx, payload.ObjectKey)
	if err != nil {
		return failure(err)
	}

	result := p.analyzer.AnalyzeBytes(data)

	reportJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return failure(err)
	}
	reportKey := s3storage.ReportKey(payload.ObjectKey)
	if err := p.store.UploadReport(ctx, reportKey, reportJSON); err != nil {
		return failure(err)
	}
	if err := p.repo.MarkAnalyzed(ctx, payload.EvidenceID, reportKey, &result); err != nil {
		return failure(err)
	}
	slog.Info("evidence analyzed",
		"evidence_id", payload.EvidenceID,
		"authentic", result.Authentic,
		"ela_score", result.Tampering.ELAScore,
		"report_key", reportKey)
	return nil
}
