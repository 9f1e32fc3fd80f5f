package store

import (
	"testing"

	"image-engine/internal/bitmap"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sized is an image whose byte size is fixed by the test.
type sized int

func (s sized) ByteSize() int { return int(s) }

func newStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	s, err := New(maxSize)
	require.NoError(t, err)
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newStore(t, 1000)
	img := bitmap.New(10, 10, bitmap.ARGB8888)

	require.NoError(t, s.Set("test_key\x00", img))

	got, found, err := s.Get("test_key\x00")
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, img, got)
	assert.Equal(t, 400, s.Size())
	assert.Equal(t, 1, s.HitCount())
	assert.Equal(t, 1, s.PutCount())
}

func TestStore_New_RejectsNonPositiveBudget(t *testing.T) {
	for _, maxSize := range []int{0, -1} {
		s, err := New(maxSize)
		require.Error(t, err)
		assert.Nil(t, s)
		assert.Equal(t, platformerrors.CodeInvalidConfig, platformerrors.GetCode(err))
	}
}

func TestStore_InvalidArguments(t *testing.T) {
	s := newStore(t, 1000)

	_, _, err := s.Get("")
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	err = s.Set("", sized(1))
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	err = s.Set("key", nil)
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	err = s.Set("key", sized(-5))
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	var typedNil *bitmap.Bitmap
	assert.NotPanics(t, func() {
		err = s.Set("key", typedNil)
	})
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	_, err = s.InvalidateByKeyPrefix("")
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	assert.Equal(t, Stats{MaxSize: 1000}, s.Stats(), "invalid calls must not change state")
}

func TestStore_Miss(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(10)))

	got, found, err := s.Get("b")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Equal(t, 1, s.MissCount())
	assert.Equal(t, 0, s.HitCount())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 10, s.Size())
}

func TestStore_ReplaceAdjustsSize(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(300)))
	require.NoError(t, s.Set("b", sized(100)))
	require.NoError(t, s.Set("a", sized(50)))

	assert.Equal(t, 150, s.Size())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, s.PutCount())
	assert.Equal(t, 0, s.EvictionCount())
}

func TestStore_OversizedIsSilentlyRejected(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(400)))
	require.NoError(t, s.Set("b", sized(400)))
	before := s.Stats()

	require.NoError(t, s.Set("huge", sized(1001)))

	assert.Equal(t, before, s.Stats())
	_, found, _ := s.Get("a")
	assert.True(t, found)
	_, found, _ = s.Get("huge")
	assert.False(t, found)
}

func TestStore_ExactlyBudgetIsAccepted(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(1)))
	require.NoError(t, s.Set("full", sized(1000)))

	assert.Equal(t, 1000, s.Size())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.EvictionCount())
}

func TestStore_InvalidateByKeyPrefix(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("http://a.com/x\x00s1", sized(10)))
	require.NoError(t, s.Set("http://a.com/x\x00s2", sized(20)))
	require.NoError(t, s.Set("http://a.com/xyz\x00s2", sized(40)))
	require.NoError(t, s.Set("http://a.com/x", sized(80)))

	removed, err := s.InvalidateByKeyPrefix("http://a.com/x")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, _ := s.Get("http://a.com/x\x00s1")
	assert.False(t, found)
	_, found, _ = s.Get("http://a.com/xyz\x00s2")
	assert.True(t, found)
	_, found, _ = s.Get("http://a.com/x")
	assert.True(t, found, "key without separator is not built for the uri")

	assert.Equal(t, 120, s.Size())
	assert.Equal(t, 0, s.EvictionCount())
}

func TestStore_EvictAllRemovesZeroByteEntries(t *testing.T) {
	s := newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(10)))
	require.NoError(t, s.Set("empty", sized(0)))

	s.Trim(0)
	assert.Equal(t, 1, s.Len(), "trim to zero keeps zero-byte entries")

	s.EvictAll()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 2, s.EvictionCount())

	require.NoError(t, s.Set("b", sized(10)))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestStore_TrimPanicsOnCorruptAccounting(t *testing.T) {
	s := newStore(t, 1000)
	s.size = -1
	assert.Panics(t, func() { s.Trim(10) })

	s = newStore(t, 1000)
	s.size = 5
	assert.Panics(t, func() { s.EvictAll() })

	s = newStore(t, 1000)
	require.NoError(t, s.Set("a", sized(10)))
	s.policy.OnRemove("a")
	assert.Panics(t, func() { s.Trim(0) })
}

func TestStore_ResidentEqualsSumOfEntries(t *testing.T) {
	s := newStore(t, 500)
	sizes := []int{120, 0, 333, 75, 499, 12, 250, 250, 1, 600}
	for i, n := range sizes {
		key := string(rune('a' + i%4))
		require.NoError(t, s.Set(key, sized(n)))
		if i%3 == 0 {
			_, _, _ = s.Get(string(rune('a' + (i+1)%4)))
		}

		sum := 0
		for _, e := range s.items {
			sum += e.size
		}
		assert.Equal(t, sum, s.Size())
		assert.LessOrEqual(t, s.Size(), s.MaxSize())
	}
}
