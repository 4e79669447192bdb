package forensic

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const hashAlgorithm = "sha256"

// Hash streams r through sha256 and returns the digest in the canonical
// "sha256:<hex>" form. io.Copy reads in fixed-size chunks, so inputs of any
// size hash in constant memory. Read errors are propagated, never swallowed.
func Hash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	return hashAlgorithm + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
