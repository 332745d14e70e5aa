package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Environment names a deployment target of the backend API
type Environment string

const (
	EnvLocal Environment = "LOCAL"
	EnvDev   Environment = "DEV"
	EnvProd  Environment = "PROD"
)

var (
	loopbackHost = regexp.MustCompile(`localhost|127\.0\.0\.1`)
	devHost      = regexp.MustCompile(`^dev[.-]`)
)

// URLs pairs the backend base URL with the front-end's own public URL
type URLs struct {
	APIURL      string `yaml:"api_url"`
	FrontendURL string `yaml:"frontend_url"`
}

var defaultURLs = map[Environment]URLs{
	EnvLocal: {APIURL: "http://localhost:5000", FrontendURL: "http://localhost:5500"},
	EnvDev:   {APIURL: "https://dev-api.example.com", FrontendURL: "https://dev.example.com"},
	EnvProd:  {APIURL: "https://prod-api.example.com", FrontendURL: "https://prod.example.com"},
}

// ResolveEnvironment picks the environment from an explicit selector, falling
// back to sniffing the hostname the front-end runs under.
func ResolveEnvironment(explicit, hostname string) (Environment, error) {
	if explicit != "" {
		env := Environment(strings.ToUpper(strings.TrimSpace(explicit)))
		if _, ok := defaultURLs[env]; !ok {
			return "", fmt.Errorf("unknown environment %q (expected LOCAL, DEV or PROD)", explicit)
		}
		return env, nil
	}

	host := strings.ToLower(hostname)
	switch {
	case loopbackHost.MatchString(host):
		return EnvLocal, nil
	case devHost.MatchString(host):
		return EnvDev, nil
	default:
		return EnvProd, nil
	}
}

// DefaultURLs returns the built-in URL pair for env
func DefaultURLs(env Environment) URLs {
	return defaultURLs[env]
}
