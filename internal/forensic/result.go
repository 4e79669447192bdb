// Package forensic implements the image-authenticity analyzer: content
// hashing, EXIF metadata extraction, Error Level Analysis tampering
// detection, and the ordered authenticity policy that turns those signals
// into a verdict.
package forensic

import (
	"encoding/json"
	"fmt"
	"time"
)

// GeoCoordinates holds the GPS position decoded from EXIF, in decimal
// degrees (altitude in meters). Constructed once by the extractor and never
// mutated afterwards.
type GeoCoordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

// Valid reports whether the record carries a usable position. Both latitude
// and longitude must be present; altitude alone is not a position.
func (g GeoCoordinates) Valid() bool {
	return g.Latitude != nil && g.Longitude != nil
}

// CameraInfo holds the capture-device fields decoded from EXIF. Every field
// is independently optional; absence is not an error.
type CameraInfo struct {
	Make         *string  `json:"make"`
	Model        *string  `json:"model"`
	Lens         *string  `json:"lens"`
	ISO          *int     `json:"iso"`
	Aperture     *float64 `json:"aperture"`
	ShutterSpeed *string  `json:"shutter_speed"`
}

// TimestampRecord holds the EXIF capture timestamps. EXIF times carry no
// timezone; they are parsed as UTC and serialized as RFC 3339.
type TimestampRecord struct {
	Original  *time.Time `json:"original"`
	Modified  *time.Time `json:"modified"`
	Digitized *time.Time `json:"digitized"`
}

// Consistent reports whether the timestamps pass the backdating check: both
// original and modified must be present, with modified >= original. A record
// missing either side is inconsistent, not merely unknown.
func (t TimestampRecord) Consistent() bool {
	if t.Original == nil || t.Modified == nil {
		return false
	}
	return !t.Modified.Before(*t.Original)
}

// Region is a suspicious rectangle in original-image pixel coordinates.
// It serializes as the four-element array [x, y, width, height].
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MarshalJSON renders the region as [x, y, w, h].
func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X, r.Y, r.Width, r.Height})
}

// UnmarshalJSON accepts the [x, y, w, h] array form.
func (r *Region) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("region: %w", err)
	}
	r.X, r.Y, r.Width, r.Height = v[0], v[1], v[2], v[3]
	return nil
}

// TamperingReport is the output of Error Level Analysis over one pixel
// buffer. Fully recomputed per analysis, never persisted or mutated.
type TamperingReport struct {
	// ELAScore is the mean normalized recompression error in [0, 1].
	ELAScore          float64  `json:"ela_score"`
	SuspiciousRegions []Region `json:"suspicious_regions"`
	Tampered          bool     `json:"is_tampered"`
	// Confidence is a self-reported certainty heuristic, not a calibrated
	// probability.
	Confidence float64 `json:"confidence"`
}

// Dimensions is the pixel size of the analyzed image, serialized as the
// two-element array [width, height].
type Dimensions struct {
	Width  int
	Height int
}

// MarshalJSON renders the dimensions as [width, height].
func (d Dimensions) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{d.Width, d.Height})
}

// UnmarshalJSON accepts the [width, height] array form.
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	var v [2]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("dimensions: %w", err)
	}
	d.Width, d.Height = v[0], v[1]
	return nil
}

// Result is the complete forensic analysis record returned to the caller.
// It is constructed exactly once per analysis and never mutated; every
// sub-record is owned exclusively by the Result that contains it. Both
// verdicts (authentic and rejected) are normal completions reported through
// this one type, never through an error channel.
type Result struct {
	Authentic       bool            `json:"is_authentic"`
	RejectionReason *string         `json:"rejection_reason"`
	FileHash        string          `json:"file_hash"`
	FileSize        int64           `json:"file_size"`
	Dimensions      Dimensions      `json:"image_dimensions"`
	GPS             GeoCoordinates  `json:"gps"`
	Camera          CameraInfo      `json:"camera"`
	Timestamp       TimestampRecord `json:"timestamp"`
	Tampering       TamperingReport `json:"tampering"`
}
