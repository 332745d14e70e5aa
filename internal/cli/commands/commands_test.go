package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paneld-dev/paneld/internal/devapi"
	"github.com/paneld-dev/paneld/internal/transport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestEnvironment starts a backend seeded with a@b.com / validpass1 and
// points the CLI at it with an in-memory credential store
func setupTestEnvironment(t *testing.T) *transport.MemoryStore {
	t.Helper()

	api, err := devapi.New(&devapi.Config{
		Database: devapi.DatabaseConfig{URL: filepath.Join(t.TempDir(), "api.db")},
		Tokens: devapi.TokenConfig{
			Secret:     "cli-test",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
		AllowedOrigins: []string{"http://localhost:5500"},
		Seed:           devapi.SeedConfig{Email: "a@b.com", Password: "validpass1"},
	}, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	backend := httptest.NewServer(api.Handler())
	t.Cleanup(backend.Close)

	t.Chdir(t.TempDir())
	t.Setenv("PANELD_ENVIRONMENT", "LOCAL")
	t.Setenv("PANELD_API_URL", backend.URL)
	t.Setenv("PANELD_HTTP_RETRIES", "0")
	t.Setenv("PANELD_DASHBOARD_ADDR", "127.0.0.1:0")
	t.Setenv("PANELD_EMAIL", "")
	t.Setenv("PANELD_PASSWORD", "")

	creds := transport.NewMemoryStore()
	original := credentialStoreFactory
	credentialStoreFactory = func(string) transport.CredentialStore { return creds }
	t.Cleanup(func() { credentialStoreFactory = original })

	return creds
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.Execute()
	return out.String(), err
}

func login(t *testing.T) {
	t.Helper()
	out, err := execute(t, NewLoginCmd(), "--email", "a@b.com", "--password", "validpass1")
	require.NoError(t, err, out)
}

func TestLogin_Success(t *testing.T) {
	creds := setupTestEnvironment(t)

	out, err := execute(t, NewLoginCmd(), "--email", "a@b.com", "--password", "validpass1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Login successful!")
	assert.Contains(t, out, "a@b.com")
	assert.Contains(t, out, "Role: Admin")

	cred, err := creds.Load()
	require.NoError(t, err)
	require.NotNil(t, cred, "session should be persisted")
	assert.NotEmpty(t, cred.Cookies)
}

func TestLogin_EnvFallback(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("PANELD_EMAIL", "a@b.com")
	t.Setenv("PANELD_PASSWORD", "validpass1")

	out, err := execute(t, NewLoginCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Login successful!")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing email in non-interactive mode",
			args:    []string{"--password", "validpass1"},
			wantErr: "email is required",
		},
		{
			name:    "missing password in non-interactive mode",
			args:    []string{"--email", "a@b.com"},
			wantErr: "password is required in non-interactive mode",
		},
		{
			name:    "invalid email",
			args:    []string{"--email", "not-an-email", "--password", "validpass1"},
			wantErr: "login failed: email must be a valid email address",
		},
		{
			name:    "wrong password",
			args:    []string{"--email", "a@b.com", "--password", "wrongpass"},
			wantErr: "login failed: Invalid email or password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := setupTestEnvironment(t)

			_, err := execute(t, NewLoginCmd(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			cred, err := creds.Load()
			require.NoError(t, err)
			assert.Nil(t, cred)
		})
	}
}

func TestWhoami(t *testing.T) {
	setupTestEnvironment(t)

	_, err := execute(t, NewWhoamiCmd())
	assert.ErrorIs(t, err, errNotLoggedIn)

	login(t)

	// A new process resumes the stored session
	out, err := execute(t, NewWhoamiCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "a@b.com")
	assert.Contains(t, out, "LOCAL")
	assert.Contains(t, out, "Role:   admin")
}

func TestRegister(t *testing.T) {
	setupTestEnvironment(t)

	out, err := execute(t, NewRegisterCmd(),
		"--first-name", "Ada", "--last-name", "Byron",
		"--email", "ada@example.com", "--phone", "5551234567",
		"--password", "validpass1",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Account created!")
	assert.Contains(t, out, "paneld login --email ada@example.com")

	out, err = execute(t, NewLoginCmd(), "--email", "ada@example.com", "--password", "validpass1")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Byron")

	_, err = execute(t, NewRegisterCmd(), "--last-name", "Byron", "--email", "x@example.com", "--password", "validpass1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firstName is required")

	_, err = execute(t, NewRegisterCmd(),
		"--first-name", "Ada", "--last-name", "Byron",
		"--email", "ada@example.com", "--password", "validpass1",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email already registered")
}

func TestUsers(t *testing.T) {
	setupTestEnvironment(t)

	_, err := execute(t, NewUsersCmd())
	assert.ErrorIs(t, err, errNotLoggedIn)

	login(t)

	out, err := execute(t, NewUsersCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "a@b.com")
	assert.Contains(t, out, "admin")
}

func TestLogout(t *testing.T) {
	creds := setupTestEnvironment(t)

	out, err := execute(t, NewLogoutCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	login(t)

	out, err = execute(t, NewLogoutCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Logged out")

	cred, err := creds.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)

	_, err = execute(t, NewWhoamiCmd())
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestEnv(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("PANELD_API_URL", "")

	out, err := execute(t, NewEnvCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "LOCAL")
	assert.Contains(t, out, "http://localhost:5000")
	assert.Contains(t, out, "http://localhost:5500")
}

func TestDash_StopsWithContext(t *testing.T) {
	setupTestEnvironment(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewDashCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--no-browser"})

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "URL: http://127.0.0.1:0")
}
