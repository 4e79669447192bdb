package forensic

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"
)

// elaQuality is the fixed recompression quality for the ELA control image.
// Regions edited after the image's last compression pass show anomalous
// error against a quality-95 round-trip of the same buffer.
const elaQuality = 95

// Detector quantifies the likelihood that regions of an image were edited
// after capture, using Error Level Analysis. It holds no per-analysis state,
// so one Detector is safe to share across concurrent analyses.
type Detector struct {
	threshold float64
	maxPixels int
}

// NewDetector returns a detector with the given suspicion threshold and a
// cap on accepted pixel count. The round-trip allocates two full-resolution
// RGB buffers, so the cap bounds memory before any allocation happens.
func NewDetector(threshold float64, maxPixels int) *Detector {
	return &Detector{threshold: threshold, maxPixels: maxPixels}
}

// Detect runs the ELA round-trip over img and reports the tampering signal.
// A codec failure is a hard analysis error: a broken analysis must never be
// mistaken for a clean result.
func (d *Detector) Detect(img image.Image) (TamperingReport, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return TamperingReport{}, fmt.Errorf("empty image (%dx%d)", width, height)
	}
	if d.maxPixels > 0 && width*height > d.maxPixels {
		return TamperingReport{}, fmt.Errorf("image too large for analysis: %d pixels exceeds cap of %d", width*height, d.maxPixels)
	}

	original := toRGB(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, original, &jpeg.Options{Quality: elaQuality}); err != nil {
		return TamperingReport{}, fmt.Errorf("recompress image: %w", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return TamperingReport{}, fmt.Errorf("decode control image: %w", err)
	}
	control := toRGB(decoded)

	// Per-pixel, per-channel absolute difference, normalized by its own
	// global maximum. A perfectly uniform image has no signal to normalize
	// and stays all-zero.
	diff := make([]float64, width*height*3)
	var maxDiff float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			oi := original.PixOffset(x, y)
			ci := control.PixOffset(x, y)
			di := (y*width + x) * 3
			for c := 0; c < 3; c++ {
				v := math.Abs(float64(original.Pix[oi+c]) - float64(control.Pix[ci+c]))
				diff[di+c] = v
				if v > maxDiff {
					maxDiff = v
				}
			}
		}
	}
	if maxDiff > 0 {
		for i := range diff {
			diff[i] /= maxDiff
		}
	}

	var sum float64
	for _, v := range diff {
		sum += v
	}
	score := sum / float64(len(diff))

	mean := channelMean(diff, width, height)
	regions := suspiciousBounds(mean, width, height, d.threshold)

	tampered := score > d.threshold || len(regions) > 0
	return TamperingReport{
		ELAScore:          score,
		SuspiciousRegions: regions,
		Tampered:          tampered,
		Confidence:        confidence(score, d.threshold, tampered),
	}, nil
}

// toRGB redraws img into an RGBA buffer anchored at the origin so pixel
// access is uniform regardless of the source channel layout.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// channelMean collapses the per-channel diff into one value per pixel.
func channelMean(diff []float64, width, height int) []float64 {
	mean := make([]float64, width*height)
	for i := range mean {
		mean[i] = (diff[i*3] + diff[i*3+1] + diff[i*3+2]) / 3.0
	}
	return mean
}

// suspiciousBounds returns at most one rectangle spanning every pixel whose
// mean normalized error exceeds threshold. This is a deliberate coarse
// approximation, not connected-component segmentation: disjoint tampered
// areas collapse into a single box. Report consumers depend on this shape.
func suspiciousBounds(mean []float64, width, height int, threshold float64) []Region {
	minX, minY := width, height
	maxX, maxY := -1, -1
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mean[y*width+x] > threshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < 0 {
		return []Region{}
	}
	return []Region{{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}}
}

// confidence is the self-reported certainty of the verdict: proximity of the
// score to the threshold when tampered, distance from it when clean.
func confidence(score, threshold float64, tampered bool) float64 {
	if tampered {
		return math.Min(score/threshold, 1.0)
	}
	return 1.0 - score
}
