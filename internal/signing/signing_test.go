package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig := s.Sign("evidence123", 1700000000)
	require.NotEmpty(t, sig)

	assert.True(t, s.Validate("evidence123", "1700000000", sig))
	assert.False(t, s.Validate("other", "1700000000", sig), "wrong evidence id must fail")
	assert.False(t, s.Validate("evidence123", "42", sig), "wrong expiry must fail")
	assert.False(t, s.Validate("evidence123", "not-a-number", sig))
}

func TestSignerSecretsAreIndependent(t *testing.T) {
	a := NewSigner([]byte("secret-a"))
	b := NewSigner([]byte("secret-b"))
	sig := a.Sign("evidence123", 1700000000)
	assert.False(t, b.Validate("evidence123", "1700000000", sig))
}
