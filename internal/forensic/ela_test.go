package forensic

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectUniformImage(t *testing.T) {
	d := NewDetector(0.15, 0)
	report, err := d.Detect(uniformImage(64, 64))
	require.NoError(t, err)

	assert.Zero(t, report.ELAScore)
	assert.Empty(t, report.SuspiciousRegions)
	assert.False(t, report.Tampered)
	assert.Equal(t, 1.0, report.Confidence)
}

func TestDetectDeterministic(t *testing.T) {
	img := gradientImage(80, 60)
	d := NewDetector(0.15, 0)

	first, err := d.Detect(img)
	require.NoError(t, err)
	second, err := d.Detect(img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetectRespectsPixelCap(t *testing.T) {
	d := NewDetector(0.15, 100)
	_, err := d.Detect(uniformImage(64, 64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDetectNonOriginBounds(t *testing.T) {
	// Subimages keep their parent's coordinate space; the detector must
	// still report regions in its own origin-anchored space.
	base := uniformImage(128, 128)
	sub, ok := base.SubImage(image.Rect(32, 32, 96, 96)).(*image.RGBA)
	require.True(t, ok)

	d := NewDetector(0.15, 0)
	report, err := d.Detect(sub)
	require.NoError(t, err)
	assert.Zero(t, report.ELAScore)
	assert.False(t, report.Tampered)
}

func TestSuspiciousBoundsSingleBox(t *testing.T) {
	w, h := 10, 8
	mean := make([]float64, w*h)
	// Two disjoint hot pixels collapse into one spanning rectangle.
	mean[2*w+3] = 0.9
	mean[6*w+7] = 0.9

	regions := suspiciousBounds(mean, w, h, 0.15)
	require.Len(t, regions, 1)
	assert.Equal(t, Region{X: 3, Y: 2, Width: 4, Height: 4}, regions[0])
}

func TestSuspiciousBoundsEmpty(t *testing.T) {
	mean := make([]float64, 20*20)
	regions := suspiciousBounds(mean, 20, 20, 0.15)
	require.NotNil(t, regions)
	assert.Empty(t, regions)
}

func TestSuspiciousBoundsThresholdMonotonic(t *testing.T) {
	w, h := 16, 16
	mean := make([]float64, w*h)
	for i := range mean {
		mean[i] = float64(i) / float64(len(mean))
	}

	count := func(threshold float64) int {
		n := 0
		for _, v := range mean {
			if v > threshold {
				n++
			}
		}
		return n
	}
	low := suspiciousBounds(mean, w, h, 0.2)
	high := suspiciousBounds(mean, w, h, 0.6)

	// Raising the threshold can only shrink the suspicious set.
	assert.GreaterOrEqual(t, count(0.2), count(0.6))
	require.Len(t, low, 1)
	require.Len(t, high, 1)
	assert.GreaterOrEqual(t, high[0].X, low[0].X)
	assert.GreaterOrEqual(t, high[0].Y, low[0].Y)
	assert.LessOrEqual(t, high[0].X+high[0].Width, low[0].X+low[0].Width)
	assert.LessOrEqual(t, high[0].Y+high[0].Height, low[0].Y+low[0].Height)
}

func TestConfidence(t *testing.T) {
	// Tampered: ratio of score to threshold, capped at 1.
	assert.Equal(t, 1.0, confidence(0.25, 0.15, true))
	assert.InDelta(t, 0.5, confidence(0.075, 0.15, true), 1e-9)
	// Clean: complement of the score.
	assert.InDelta(t, 0.98, confidence(0.02, 0.15, false), 1e-9)
}

// gradientImage has enough structure that a JPEG round-trip leaves a
// nonzero error signature.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 255 / (w + h)),
				A: 255,
			})
		}
	}
	return img
}
