package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// AnalyzeEvidenceTask is scheduled each time an image is uploaded.
	AnalyzeEvidenceTask = "evidence:analyze"
)

// AnalyzePayload is serialized into the task payload so the worker knows
// which object to download from storage.
type AnalyzePayload struct {
	EvidenceID string `json:"evidence_id"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
}

// EnqueueAnalyze enqueues a forensic analysis job.
func EnqueueAnalyze(ctx context.Context, client *asynq.Client, payload AnalyzePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(AnalyzeEvidenceTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue analyze task: %w", err)
	}
	return nil
}
