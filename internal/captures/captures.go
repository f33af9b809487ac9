// Package captures loads the custom-capture pattern file: named regexes
// that format templates may reference as placeholders.
package captures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tallyhq/tally/internal/format"
	"github.com/tallyhq/tally/internal/models"
)

// entry is one pattern declaration in the YAML file.
type entry struct {
	Pattern string `yaml:"pattern"`
	Type    string `yaml:"type"` // string (default), number, date
}

// Load reads a capture pattern file of the form:
//
//	card_suffix:
//	  pattern: '\d{4}'
//	store_code:
//	  pattern: '[A-Z]{2}-\d+'
//	  type: string
//
// Custom captures are strings unless the entry declares a type explicitly.
func Load(path string) (map[string]format.CustomPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read captures file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (map[string]format.CustomPattern, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid captures file: %w", err)
	}

	out := make(map[string]format.CustomPattern, len(raw))
	for name, e := range raw {
		if e.Pattern == "" {
			return nil, fmt.Errorf("capture %q has no pattern", name)
		}
		kind := models.KindString
		switch e.Type {
		case "", "string":
		case "number":
			kind = models.KindNumber
		case "date":
			kind = models.KindDate
		default:
			return nil, fmt.Errorf("capture %q has unknown type %q", name, e.Type)
		}
		out[name] = format.CustomPattern{Pattern: e.Pattern, Kind: kind}
	}
	return out, nil
}
