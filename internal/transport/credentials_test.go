package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookieNames(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	for _, ck := range r.Cookies() {
		names = append(names, ck.Name)
	}
	sort.Strings(names)
	json.NewEncoder(w).Encode(names)
}

func TestClient_StoredCookiesKeepTheirPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "r1", Path: "/auth/refresh-token"})
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/echo", cookieNames)
	mux.HandleFunc("/auth/refresh-token", cookieNames)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryStore()
	first := newTestClient(t, srv.URL, store, nil)
	require.NoError(t, first.Post(context.Background(), "/login", nil, nil))

	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, []StoredCookie{
		{Name: "refresh", Value: "r1", Path: "/auth/refresh-token"},
		{Name: "session", Value: "s1", Path: "/"},
	}, cred.Cookies)

	// A later process restores the same scoping
	second := newTestClient(t, srv.URL, store, nil)

	var sent []string
	require.NoError(t, second.Get(context.Background(), "/echo", nil, &sent))
	assert.Equal(t, []string{"session"}, sent, "refresh cookie stays off other paths")

	require.NoError(t, second.Post(context.Background(), "/auth/refresh-token", nil, &sent))
	assert.Equal(t, []string{"refresh", "session"}, sent)
}

func TestSessionJar_SeedWithoutPathDefaultsToRoot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", cookieNames)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewMemoryStore()
	require.NoError(t, store.Save(&Credential{Cookies: []StoredCookie{{Name: "session", Value: "old"}}}))

	c := newTestClient(t, srv.URL, store, nil)

	var sent []string
	require.NoError(t, c.Get(context.Background(), "/echo", nil, &sent))
	assert.Equal(t, []string{"session"}, sent)
}
