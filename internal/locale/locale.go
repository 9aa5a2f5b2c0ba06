// Package locale holds the user-facing strings of the assistant, keyed by
// language code. The catalog is embedded YAML so translators can edit it
// without touching Go code.
package locale

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// FallbackCode is used when a requested language has no entry.
const FallbackCode = "en"

type Status struct {
	Listening  string `yaml:"listening"`
	Speaking   string `yaml:"speaking"`
	Responding string `yaml:"responding"`
	Idle       string `yaml:"idle"`
}

// Strings is the full set of texts for one language.
type Strings struct {
	Greeting              string   `yaml:"greeting"`
	ConnectionFallback    string   `yaml:"connection_fallback"`
	MicrophoneUnsupported string   `yaml:"microphone_unsupported"`
	ConnectionBanner      string   `yaml:"connection_banner"`
	QuickActionsTitle     string   `yaml:"quick_actions_title"`
	Placeholder           string   `yaml:"placeholder"`
	Status                Status   `yaml:"status"`
	QuickActions          []string `yaml:"quick_actions"`
}

type Catalog map[string]Strings

//go:embed catalog.yaml
var catalogBytes []byte

var defaultCatalog = sync.OnceValues(func() (Catalog, error) {
	return Parse(catalogBytes)
})

// Parse decodes a catalog and checks that every language carries the texts
// the assistant cannot work without.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse locale catalog: %w", err)
	}
	if _, ok := c[FallbackCode]; !ok {
		return nil, fmt.Errorf("locale catalog has no %q entry", FallbackCode)
	}
	for code, s := range c {
		if s.Greeting == "" || s.ConnectionFallback == "" || s.MicrophoneUnsupported == "" {
			return nil, fmt.Errorf("locale %q is missing required strings", code)
		}
	}
	return c, nil
}

// Default returns the embedded catalog. The embedded file is validated by
// tests, so a parse failure here is a build defect.
func Default() Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// For returns the strings for code, falling back to English.
func (c Catalog) For(code string) Strings {
	if s, ok := c[code]; ok {
		return s
	}
	return c[FallbackCode]
}
