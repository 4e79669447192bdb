package forensic

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKnownDigest(t *testing.T) {
	got, err := Hash(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestHashEmptyInput(t *testing.T) {
	got, err := Hash(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestHashPropagatesReadErrors(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Hash(failingReader{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
