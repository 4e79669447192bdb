package forensic

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"time"

	// JPEG is the primary evidence format; PNG shows up in screenshots and
	// stripped exports and must still be analyzable.
	_ "image/jpeg"
	_ "image/png"
)

const (
	// DefaultELAThreshold is the rejection threshold applied when the
	// caller does not supply one.
	DefaultELAThreshold = 0.15
	// DefaultMaxPixels caps accepted image dimensions ahead of the ELA
	// round-trip, which holds two full-resolution buffers.
	DefaultMaxPixels = 50 << 20
)

// Analyzer performs the complete forensic analysis of one image: content
// hash, EXIF metadata, ELA tampering detection, and the authenticity
// verdict. It is a pure computation over its input with no mutable state,
// so one Analyzer is safe for concurrent use across goroutines.
//
// AnalyzeFile and AnalyzeBytes are total: every expected failure mode
// (missing file, undecodable image, oversized input) is returned as a
// rejection Result, never as an error. Batch callers can treat every call
// uniformly as data.
type Analyzer struct {
	detector *Detector
	now      func() time.Time
}

// NewAnalyzer builds an analyzer with the given ELA rejection threshold,
// which must lie strictly inside (0, 1). A non-positive maxPixels selects
// DefaultMaxPixels. Contract violations fail here, before any analysis.
func NewAnalyzer(threshold float64, maxPixels int) (*Analyzer, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("ela threshold must be in (0, 1), got %g", threshold)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Analyzer{
		detector: NewDetector(threshold, maxPixels),
		now:      time.Now,
	}, nil
}

// AnalyzeFile analyzes the image at path. A missing file yields the
// canonical "File not found" rejection with every sub-record at its zero
// default; any other read failure yields an analysis-error rejection.
func (a *Analyzer) AnalyzeFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rejection("File not found")
		}
		return rejection(fmt.Sprintf("Analysis error: %v", err))
	}
	return a.AnalyzeBytes(data)
}

// AnalyzeBytes analyzes an in-memory image. Hashing, metadata extraction and
// tampering detection each read their own view of the buffer; their outputs
// are mutually independent.
func (a *Analyzer) AnalyzeBytes(data []byte) Result {
	hash, err := Hash(bytes.NewReader(data))
	if err != nil {
		return rejection(fmt.Sprintf("Analysis error: %v", err))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return rejection(fmt.Sprintf("Analysis error: decode image: %v", err))
	}
	bounds := img.Bounds()

	gps, camera, ts := extractMetadata(data)

	tampering, err := a.detector.Detect(img)
	if err != nil {
		return rejection(fmt.Sprintf("Analysis error: %v", err))
	}

	authentic, reason := validate(ts, tampering, a.now())
	result := Result{
		Authentic:  authentic,
		FileHash:   hash,
		FileSize:   int64(len(data)),
		Dimensions: Dimensions{Width: bounds.Dx(), Height: bounds.Dy()},
		GPS:        gps,
		Camera:     camera,
		Timestamp:  ts,
		Tampering:  tampering,
	}
	if !authentic {
		result.RejectionReason = &reason
	}
	return result
}

// rejection builds the uniform negative result used for every input-level
// failure: empty hash, zero size and dimensions, all sub-records absent.
func rejection(reason string) Result {
	return Result{
		Authentic:       false,
		RejectionReason: &reason,
		Tampering:       TamperingReport{SuspiciousRegions: []Region{}},
	}
}
