package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		hostname string
		want     Environment
	}{
		{name: "explicit wins over hostname", explicit: "DEV", hostname: "localhost", want: EnvDev},
		{name: "explicit is case insensitive", explicit: "prod", hostname: "", want: EnvProd},
		{name: "localhost", hostname: "localhost", want: EnvLocal},
		{name: "loopback ip", hostname: "127.0.0.1", want: EnvLocal},
		{name: "dev dot prefix", hostname: "dev.example.com", want: EnvDev},
		{name: "dev dash prefix", hostname: "dev-admin.example.com", want: EnvDev},
		{name: "dev not at start", hostname: "admin.dev.example.com", want: EnvProd},
		{name: "anything else", hostname: "admin.example.com", want: EnvProd},
		{name: "empty hostname", hostname: "", want: EnvProd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveEnvironment(tt.explicit, tt.hostname)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEnvironment_UnknownExplicit(t *testing.T) {
	_, err := ResolveEnvironment("staging", "localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, OverridesFileName)
	content := `environments:
  LOCAL:
    api_url: http://localhost:8080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	o, err := LoadOverrides(path)
	require.NoError(t, err)

	local := o.URLsFor(EnvLocal)
	assert.Equal(t, "http://localhost:8080", local.APIURL)
	assert.Equal(t, "http://localhost:5500", local.FrontendURL, "unset fields keep defaults")
	assert.Equal(t, DefaultURLs(EnvProd), o.URLsFor(EnvProd))
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultURLs(EnvDev), o.URLsFor(EnvDev))
}

func TestLoadOverrides_UnknownEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), OverridesFileName)
	require.NoError(t, os.WriteFile(path, []byte("environments:\n  QA:\n    api_url: x\n"), 0644))

	_, err := LoadOverrides(path)
	require.Error(t, err)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PANELD_ENVIRONMENT", "DEV")
	t.Setenv("PANELD_API_URL", "https://api.internal")
	t.Setenv("PANELD_HTTP_RETRIES", "3")
	t.Setenv("PANELD_HTTP_RETRY_STEP", "50ms")
	t.Setenv("PANELD_REVERIFY_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Environment.Name)
	assert.Equal(t, "https://api.internal", cfg.Environment.APIURL)
	assert.Equal(t, "https://dev.example.com", cfg.Environment.FrontendURL)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.HTTP.RetryStep)
	assert.Equal(t, 5*time.Minute, cfg.Session.ReverifyInterval)
	assert.Equal(t, "127.0.0.1:5500", cfg.Dashboard.Address)
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PANELD_ENVIRONMENT", "LOCAL")
	t.Setenv("PANELD_HTTP_RETRIES", "-1")

	_, err := Load()
	require.Error(t, err)
}
