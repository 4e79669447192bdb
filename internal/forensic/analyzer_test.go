package forensic

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyzerValidatesThreshold(t *testing.T) {
	for _, bad := range []float64{0, 1, -0.2, 1.5} {
		_, err := NewAnalyzer(bad, 0)
		assert.Error(t, err, "threshold %v", bad)
	}
	a, err := NewAnalyzer(DefaultELAThreshold, 0)
	require.NoError(t, err)
	require.NotNil(t, a)
}

func TestAnalyzeFileMissing(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	res := a.AnalyzeFile(filepath.Join(t.TempDir(), "does", "not", "exist.jpg"))

	assert.False(t, res.Authentic)
	require.NotNil(t, res.RejectionReason)
	assert.Contains(t, *res.RejectionReason, "not found")
	assert.Empty(t, res.FileHash)
	assert.Zero(t, res.FileSize)
	assert.Equal(t, Dimensions{}, res.Dimensions)
	assert.False(t, res.GPS.Valid())
	assert.Empty(t, res.Tampering.SuspiciousRegions)
	assert.Zero(t, res.Tampering.Confidence)
}

func TestAnalyzeBytesUndecodable(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	res := a.AnalyzeBytes([]byte("this is not an image"))

	assert.False(t, res.Authentic)
	require.NotNil(t, res.RejectionReason)
	assert.Contains(t, *res.RejectionReason, "Analysis error")
}

func TestAnalyzeBytesOversized(t *testing.T) {
	a, err := NewAnalyzer(0.15, 64)
	require.NoError(t, err)

	res := a.AnalyzeBytes(encodeJPEG(t, uniformImage(32, 32)))

	assert.False(t, res.Authentic)
	require.NotNil(t, res.RejectionReason)
	assert.Contains(t, *res.RejectionReason, "too large")
}

func TestAnalyzeBytesCleanImageWithoutMetadata(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	data := encodeJPEG(t, uniformImage(64, 48))
	res := a.AnalyzeBytes(data)

	// No compression artifacts, so the tampering signal is zero, but the
	// stripped timestamps fail the consistency rule.
	assert.False(t, res.Authentic)
	require.NotNil(t, res.RejectionReason)
	assert.Contains(t, *res.RejectionReason, "Inconsistent")

	assert.True(t, strings.HasPrefix(res.FileHash, "sha256:"))
	assert.Len(t, res.FileHash, len("sha256:")+64)
	assert.Equal(t, int64(len(data)), res.FileSize)
	assert.Equal(t, Dimensions{Width: 64, Height: 48}, res.Dimensions)
	assert.Zero(t, res.Tampering.ELAScore)
	assert.False(t, res.Tampering.Tampered)
	assert.Equal(t, 1.0, res.Tampering.Confidence)
}

func TestAnalyzeBytesAuthentic(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	res := a.AnalyzeBytes(exifJPEG(t, uniformImage(48, 48), testTIFF()))

	require.Nil(t, res.RejectionReason)
	assert.True(t, res.Authentic)
	assert.True(t, res.GPS.Valid())
	require.NotNil(t, res.Camera.Make)
	assert.Equal(t, "Canon", *res.Camera.Make)
	require.NotNil(t, res.Timestamp.Original)
}

func TestAnalyzeFileRoundTrip(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "evidence.jpg")
	data := encodeJPEG(t, uniformImage(32, 32))
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fromFile := a.AnalyzeFile(path)
	fromBytes := a.AnalyzeBytes(data)
	assert.Equal(t, fromBytes.FileHash, fromFile.FileHash)
	assert.Equal(t, fromBytes.FileSize, fromFile.FileSize)
	assert.Equal(t, fromBytes.Dimensions, fromFile.Dimensions)
}

func TestResultJSONShape(t *testing.T) {
	a, err := NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	data, err := json.Marshal(a.AnalyzeBytes(encodeJPEG(t, uniformImage(16, 16))))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, false, doc["is_authentic"])
	assert.NotNil(t, doc["rejection_reason"])
	assert.Equal(t, []any{float64(16), float64(16)}, doc["image_dimensions"])

	gps, ok := doc["gps"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, gps["latitude"])
	assert.Nil(t, gps["longitude"])

	tampering, ok := doc["tampering"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{}, tampering["suspicious_regions"])
	assert.Equal(t, false, tampering["is_tampered"])
	assert.Contains(t, tampering, "ela_score")
	assert.Contains(t, tampering, "confidence")

	camera, ok := doc["camera"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, camera["shutter_speed"])
}

func TestRegionJSONRoundTrip(t *testing.T) {
	in := Region{X: 4, Y: 8, Width: 15, Height: 16}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "[4,8,15,16]", string(data))

	var out Region
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
