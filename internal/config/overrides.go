package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OverridesFileName is the optional per-project URL override file
const OverridesFileName = "paneld.yaml"

// Overrides replaces the built-in URL table per environment.
//
//	environments:
//	  LOCAL:
//	    api_url: http://localhost:8080
type Overrides struct {
	Environments map[Environment]URLs `yaml:"environments"`
}

// LoadOverrides reads path; a missing file yields empty overrides
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Overrides{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for env := range o.Environments {
		if _, ok := defaultURLs[env]; !ok {
			return nil, fmt.Errorf("%s: unknown environment %q", path, env)
		}
	}

	return &o, nil
}

// URLsFor merges the override for env over the built-in defaults
func (o *Overrides) URLsFor(env Environment) URLs {
	urls := DefaultURLs(env)
	if o == nil {
		return urls
	}
	if ov, ok := o.Environments[env]; ok {
		if ov.APIURL != "" {
			urls.APIURL = ov.APIURL
		}
		if ov.FrontendURL != "" {
			urls.FrontendURL = ov.FrontendURL
		}
	}
	return urls
}
