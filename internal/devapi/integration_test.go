package devapi_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paneld-dev/paneld/internal/devapi"
	"github.com/paneld-dev/paneld/internal/session"
	"github.com/paneld-dev/paneld/internal/transport"
)

type stack struct {
	backend *httptest.Server
	client  *transport.Client
	store   *session.Store
	reg     *prometheus.Registry
	creds   *transport.MemoryStore
}

func newStack(t *testing.T, accessTTL time.Duration) *stack {
	t.Helper()

	api, err := devapi.New(&devapi.Config{
		Database: devapi.DatabaseConfig{URL: filepath.Join(t.TempDir(), "api.db")},
		Tokens: devapi.TokenConfig{
			Secret:     "integration",
			AccessTTL:  accessTTL,
			RefreshTTL: time.Hour,
		},
		AllowedOrigins: []string{"http://localhost:5500"},
		Seed:           devapi.SeedConfig{Email: "a@b.com", Password: "validpass1"},
	}, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	backend := httptest.NewServer(api.Handler())
	t.Cleanup(backend.Close)

	return newClientStack(t, backend, transport.NewMemoryStore())
}

// newClientStack builds a fresh client process against backend, sharing creds
func newClientStack(t *testing.T, backend *httptest.Server, creds *transport.MemoryStore) *stack {
	t.Helper()
	reg := prometheus.NewRegistry()

	client, err := transport.New(transport.Config{
		BaseURL:    backend.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RetryStep:  10 * time.Millisecond,
		Logger:     zerolog.Nop(),
		Registerer: reg,
		Store:      creds,
	})
	require.NoError(t, err)

	store := session.NewStore(client, session.Options{Logger: zerolog.Nop(), Registerer: reg})
	t.Cleanup(store.Close)

	return &stack{backend: backend, client: client, store: store, reg: reg, creds: creds}
}

// refreshes reads paneld_transport_refreshes_total{result} from the registry
func (s *stack) refreshes(result string) float64 {
	families, err := s.reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "paneld_transport_refreshes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestIntegration_LoginVerifyLogout(t *testing.T) {
	s := newStack(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.store.Login(ctx, session.LoginRequest{Email: "a@b.com", Password: "validpass1"}))
	snap := s.store.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snap.Status)
	assert.Equal(t, "a@b.com", snap.User.Email)
	assert.True(t, s.client.HasCredential())

	// A second process resumes the persisted session
	resumed := newClientStack(t, s.backend, s.creds)
	resumed.store.EnsureVerified(ctx)
	snap, err := resumed.store.WaitSettled(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAuthenticated, snap.Status)

	require.NoError(t, s.store.Logout(ctx))
	assert.Equal(t, session.StatusUnauthenticated, s.store.Snapshot().Status)
	assert.False(t, s.client.HasCredential())

	require.Error(t, s.store.Verify(ctx))
	snap = s.store.Snapshot()
	assert.Equal(t, session.StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestIntegration_InvalidCredentials(t *testing.T) {
	s := newStack(t, time.Minute)

	err := s.store.Login(context.Background(), session.LoginRequest{Email: "a@b.com", Password: "wrongpass"})
	require.ErrorIs(t, err, transport.ErrClient)

	snap := s.store.Snapshot()
	assert.Equal(t, session.StatusUnauthenticated, snap.Status)
	assert.Equal(t, "Invalid email or password", snap.Error)
	assert.Zero(t, s.refreshes("success")+s.refreshes("failure"))
}

func TestIntegration_FreshVisitorSkipsRefresh(t *testing.T) {
	s := newStack(t, time.Minute)

	s.store.EnsureVerified(context.Background())
	snap, err := s.store.WaitSettled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Zero(t, s.refreshes("success")+s.refreshes("failure"))
}

func TestIntegration_ExpiredAccessRefreshesOnceForConcurrentRequests(t *testing.T) {
	s := newStack(t, time.Second)
	ctx := context.Background()

	require.NoError(t, s.store.Login(ctx, session.LoginRequest{Email: "a@b.com", Password: "validpass1"}))

	// Let the access cookie and token lapse; the refresh cookie stays valid
	time.Sleep(2100 * time.Millisecond)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var users []session.User
			errs[i] = s.client.Get(ctx, "/users", nil, &users)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, float64(1), s.refreshes("success"))
	assert.Zero(t, s.refreshes("failure"))
	assert.Equal(t, session.StatusAuthenticated, s.store.Snapshot().Status)
}
