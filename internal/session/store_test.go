package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	st := NewMemoryStore()
	_, ok := st.Load()
	assert.False(t, ok)

	var events []bool
	unsub := st.Subscribe(func(_ Session, present bool) { events = append(events, present) })

	require.NoError(t, st.Save(Session{Token: "tkn", UserID: "u1", Role: "driver"}))
	got, ok := st.Load()
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, st.Clear())
	_, ok = st.Load()
	assert.False(t, ok)
	assert.Equal(t, []bool{true, false}, events)

	unsub()
	require.NoError(t, st.Save(Session{Token: "tkn2"}))
	assert.Len(t, events, 2, "no notification after unsubscribe")
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	st := NewFileStore(path)

	_, ok := st.Load()
	assert.False(t, ok)

	require.NoError(t, st.Save(Session{Token: "tkn", UserID: "d-1", Role: "driver", Name: "Binh"}))

	// a fresh store over the same file sees the saved session
	again := NewFileStore(path)
	got, ok := again.Load()
	require.True(t, ok)
	assert.Equal(t, "Binh", got.Name)

	require.NoError(t, st.Clear())
	_, ok = again.Load()
	assert.False(t, ok)
	// double clear is fine
	require.NoError(t, st.Clear())
}

func TestFileStoreRejectsTokenlessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	st := NewFileStore(path)
	require.NoError(t, st.Save(Session{UserID: "u1"}))
	_, ok := st.Load()
	assert.False(t, ok, "a session without a token is not signed in")
}
