package forensic

import (
	"fmt"
	"time"
)

// validate applies the authenticity policy. Rules run in fixed order and the
// first failure wins: tampering evidence is the strongest legal signal and
// is checked before any metadata corroboration.
func validate(ts TimestampRecord, tampering TamperingReport, now time.Time) (bool, string) {
	if tampering.Tampered {
		return false, fmt.Sprintf("Image tampering detected (ELA score: %.3f)", tampering.ELAScore)
	}
	if !ts.Consistent() {
		return false, "Inconsistent timestamps detected"
	}
	if ts.Original != nil && ts.Original.After(now) {
		return false, "Timestamp is in the future"
	}
	return true, ""
}
