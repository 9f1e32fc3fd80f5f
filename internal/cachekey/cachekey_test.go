package cachekey

import (
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	key, err := Build("http://a.com/x", "resize:10x10", "centerCrop")
	require.NoError(t, err)
	assert.Equal(t, "http://a.com/x\x00resize:10x10\x00centerCrop\x00", key)

	key, err = Build("http://a.com/x")
	require.NoError(t, err)
	assert.Equal(t, "http://a.com/x\x00", key)
}

func TestBuild_RejectsBadSource(t *testing.T) {
	_, err := Build("")
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	_, err = Build("http://a.com/x\x00evil", "s1")
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))
}

func TestHasSource(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		source string
		want   bool
	}{
		{"exact source", "http://a.com/x\x00s1", "http://a.com/x", true},
		{"longer source sharing prefix", "http://a.com/xyz\x00s2", "http://a.com/x", false},
		{"shorter source", "http://a.com/\x00s3", "http://a.com/x", false},
		{"no separator", "http://a.com/x", "http://a.com/x", false},
		{"empty suffix", "http://a.com/x\x00", "http://a.com/x", true},
		{"separator only in suffix", "other\x00http://a.com/x\x00", "http://a.com/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasSource(tt.key, tt.source))
		})
	}
}

func TestSource(t *testing.T) {
	assert.Equal(t, "http://a.com/x", Source("http://a.com/x\x00s1"))
	assert.Equal(t, "", Source("no-separator"))
}
