package processing

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omni-inspector/photoproof/internal/forensic"
	"github.com/omni-inspector/photoproof/internal/model"
	"github.com/omni-inspector/photoproof/internal/storage"
)

func writeTestJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func waitForTerminal(t *testing.T, store *storage.MemoryStore, id string) *model.EvidenceRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(id)
		require.NoError(t, err)
		switch rec.Status {
		case model.StatusComplete, model.StatusRejected, model.StatusFailed:
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("evidence %s never reached a terminal status", id)
	return nil
}

func TestProcessorAnalyzesSubmittedJobs(t *testing.T) {
	store := storage.NewMemoryStore()
	analyzer, err := forensic.NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(store, analyzer, 2)
	p.Start(ctx)

	path := writeTestJPEG(t, t.TempDir(), "scene.jpg")
	store.Save(&model.EvidenceRecord{ID: "ev1", Path: path, Status: model.StatusQueued})
	p.Submit(Job{EvidenceID: "ev1", Path: path})

	rec := waitForTerminal(t, store, "ev1")
	// A clean pixel buffer with no EXIF timestamps fails the consistency
	// rule, so the analysis completes with a rejection verdict.
	assert.Equal(t, model.StatusRejected, rec.Status)
	require.NotNil(t, rec.Result)
	assert.False(t, rec.Result.Authentic)
	assert.Contains(t, rec.Message, "Inconsistent")
}

func TestProcessorMissingFile(t *testing.T) {
	store := storage.NewMemoryStore()
	analyzer, err := forensic.NewAnalyzer(0.15, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(store, analyzer, 1)
	p.Start(ctx)

	store.Save(&model.EvidenceRecord{ID: "gone", Path: "/nope/missing.jpg", Status: model.StatusQueued})
	p.Submit(Job{EvidenceID: "gone", Path: "/nope/missing.jpg"})

	rec := waitForTerminal(t, store, "gone")
	assert.Equal(t, model.StatusRejected, rec.Status)
	require.NotNil(t, rec.Result)
	require.NotNil(t, rec.Result.RejectionReason)
	assert.Contains(t, *rec.Result.RejectionReason, "not found")
}
