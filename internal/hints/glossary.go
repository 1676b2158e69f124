package hints

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type glossaryFile struct {
	Terms []string `yaml:"terms"`
}

// loadGlossary reads the glossary YAML. A missing file yields an empty
// glossary; a malformed one is an error so a bad edit does not silently
// disable hinting.
func loadGlossary(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read glossary %q: %w", path, err)
	}

	var parsed glossaryFile
	if err := yaml.Unmarshal(contents, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse glossary %q: %w", path, err)
	}

	terms := make([]string, 0, len(parsed.Terms))
	for _, term := range parsed.Terms {
		term = strings.TrimSpace(term)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms, nil
}
