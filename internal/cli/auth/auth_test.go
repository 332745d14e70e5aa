package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/paneld-dev/paneld/internal/transport"
)

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store := NewKeyringStore("http://localhost:5000")

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred, "nothing stored yet")

	want := &transport.Credential{Cookies: []transport.StoredCookie{
		{Name: "access_token", Value: "a"},
		{Name: "refresh_token", Value: "r"},
	}}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Scoped per backend
	other, err := NewKeyringStore("https://prod-api.example.com").Load()
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")

	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKeyringStore_CorruptEntry(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(service, getKeyringKey("http://x"), "{not json"))

	_, err := NewKeyringStore("http://x").Load()
	assert.Error(t, err)
}
