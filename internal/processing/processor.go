// Package processing runs forensic analyses on a bounded in-process worker
// pool for the standalone server. Each image analysis is independent, so the
// pool needs no coordination beyond the job channel.
package processing

import (
	"context"
	"log/slog"

	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/model"
	"github.com/omni-inspector/photoproof/internal/storage"
)

// Job identifies one stored evidence file awaiting analysis.
type Job struct {
	EvidenceID string
	Path       string
}

// Processor consumes Jobs, runs the analyzer and records verdicts.
type Processor struct {
	store    *storage.MemoryStore
	analyzer *forensic.Analyzer
	queue    chan Job
	workers  int
}

// New builds a Processor with queue capacity tied to worker count.
func New(store *storage.MemoryStore, analyzer *forensic.Analyzer, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		store:    store,
		analyzer: analyzer,
		queue:    make(chan Job, workers*4),
		workers:  workers,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Submit queues a job for async analysis. When the queue is full the job is
// dropped and the evidence marked failed so the API reflects reality.
func (p *Processor) Submit(job Job) {
	select {
	case p.queue <- job:
	default:
		slog.Warn("analysis queue full, dropping job", "evidence_id", job.EvidenceID)
		_ = p.store.UpdateStatus(job.EvidenceID, model.StatusFailed, "analysis queue full")
	}
}

func (p *Processor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.process(job)
		}
	}
}

func (p *Processor) process(job Job) {
	if err := p.store.UpdateStatus(job.EvidenceID, model.StatusAnalyzing, "analysis started"); err != nil {
		return
	}
	result := p.analyzer.AnalyzeFile(job.Path)
	if err := p.store.SetResult(job.EvidenceID, &result); err != nil {
		slog.Error("store analysis result", "evidence_id", job.EvidenceID, "error", err)
		return
	}
	slog.Info("analysis finished",
		"evidence_id", job.EvidenceID,
		"authentic", result.Authentic,
		"ela_score", result.Tampering.ELAScore)
}
