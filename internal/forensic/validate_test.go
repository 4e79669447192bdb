package forensic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPtr(t time.Time) *time.Time { return &t }

func TestValidateTamperingWinsFirst(t *testing.T) {
	// Tampering outranks timestamp problems, so the reason must name it
	// even when the timestamps are also inconsistent.
	ok, reason := validate(TimestampRecord{}, TamperingReport{ELAScore: 0.4215, Tampered: true}, time.Now())
	assert.False(t, ok)
	assert.Contains(t, reason, "tampering")
	assert.Contains(t, reason, "0.422")
}

func TestValidateBackdatedTimestamps(t *testing.T) {
	ts := TimestampRecord{
		Original: tsPtr(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)),
		Modified: tsPtr(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)),
	}
	ok, reason := validate(ts, TamperingReport{}, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
	assert.Contains(t, reason, "Inconsistent")
}

func TestValidateOneSidedTimestamps(t *testing.T) {
	// A record with only one of original/modified is inconsistent, not
	// merely unknown.
	ts := TimestampRecord{Original: tsPtr(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC))}
	ok, reason := validate(ts, TamperingReport{}, time.Now())
	assert.False(t, ok)
	assert.Contains(t, reason, "Inconsistent")
}

func TestValidateFutureTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	capture := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := TimestampRecord{Original: tsPtr(capture), Modified: tsPtr(capture)}
	ok, reason := validate(ts, TamperingReport{}, now)
	assert.False(t, ok)
	assert.Contains(t, reason, "future")
}

func TestValidateAccepts(t *testing.T) {
	captured := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	ts := TimestampRecord{
		Original: tsPtr(captured),
		Modified: tsPtr(captured.Add(time.Hour)),
	}
	ok, reason := validate(ts, TamperingReport{ELAScore: 0.03}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Empty(t, reason)
}

func TestTimestampConsistency(t *testing.T) {
	at := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.True(t, TimestampRecord{Original: tsPtr(at), Modified: tsPtr(at)}.Consistent())
	assert.True(t, TimestampRecord{Original: tsPtr(at), Modified: tsPtr(at.Add(time.Minute))}.Consistent())
	assert.False(t, TimestampRecord{Original: tsPtr(at), Modified: tsPtr(at.Add(-time.Minute))}.Consistent())
	assert.False(t, TimestampRecord{Original: tsPtr(at)}.Consistent())
	assert.False(t, TimestampRecord{Modified: tsPtr(at)}.Consistent())
	assert.False(t, TimestampRecord{}.Consistent())
}
