package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults to GET and normalized URL as unique key", func(t *testing.T) {
		t.Parallel()
		req, err := New("http://Example.com/a", Options{})
		require.NoError(t, err)
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, req.URL, req.UniqueKey)
		assert.Empty(t, req.ID)
	})

	t.Run("rejects GET with payload", func(t *testing.T) {
		t.Parallel()
		_, err := New("http://example.com/a", Options{Payload: []byte("x")})
		require.Error(t, err)
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		t.Parallel()
		_, err := New("not-a-url", Options{})
		require.Error(t, err)
	})

	t.Run("extended unique key combines method and payload hash", func(t *testing.T) {
		t.Parallel()
		a, err := New("http://example.com/a", Options{Method: "POST", Payload: []byte("one"), UseExtendedUniqueKey: true})
		require.NoError(t, err)
		b, err := New("http://example.com/a", Options{Method: "POST", Payload: []byte("two"), UseExtendedUniqueKey: true})
		require.NoError(t, err)
		assert.NotEqual(t, a.UniqueKey, b.UniqueKey)
	})
}

func TestAssignID(t *testing.T) {
	t.Parallel()

	req, err := New("http://example.com/a", Options{})
	require.NoError(t, err)

	id := req.AssignID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, req.AssignID(), "AssignID is idempotent once set")
}

func TestMarkHandled(t *testing.T) {
	t.Parallel()

	req, err := New("http://example.com/a", Options{})
	require.NoError(t, err)
	assert.False(t, req.IsHandled())

	req.MarkHandled(time.Now())
	assert.True(t, req.IsHandled())
}

func TestAddErrorMessageBounded(t *testing.T) {
	t.Parallel()

	req, err := New("http://example.com/a", Options{})
	require.NoError(t, err)

	for i := 0; i < MaxErrorMessages+10; i++ {
		req.AddErrorMessage("err")
	}
	assert.Len(t, req.ErrorMessages, MaxErrorMessages)
}
