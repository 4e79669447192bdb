// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"

	"github.com/omni-inspector/photoproof/internal/forensic"
)

// EvidenceStatus describes the analysis lifecycle of one submitted image.
type EvidenceStatus string

const (
	StatusUploaded  EvidenceStatus = "uploaded"
	StatusQueued    EvidenceStatus = "queued"
	StatusAnalyzing EvidenceStatus = "analyzing"
	// StatusComplete means the analysis ran and the image passed every
	// authenticity rule; StatusRejected means the analysis ran and the
	// image failed one. Both are successful analyses.
	StatusComplete EvidenceStatus = "complete"
	StatusRejected EvidenceStatus = "rejected"
	// StatusFailed is reserved for infrastructure faults, never for
	// forensic outcomes.
	StatusFailed EvidenceStatus = "failed"
)

// EvidenceRecord holds service-level metadata about a submitted image plus
// the analysis result once it exists.
type EvidenceRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Size        int64          `json:"size"`
	ContentType string         `json:"contentType"`
	// Path is server-local and never serialized.
	Path      string           `json:"-"`
	Status    EvidenceStatus   `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Message   string           `json:"message,omitempty"`
	Result    *forensic.Result `json:"result,omitempty"`
}
