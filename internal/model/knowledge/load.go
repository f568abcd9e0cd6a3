package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Topics []Entry `yaml:"topics"`
}

// LoadFile reads extra entries from a YAML document of the form
//
//	topics:
//	  - keyword: asthma
//	    topic: {description: ..., symptoms: [...], ...}
func LoadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge file %s: %w", path, err)
	}

	for i, entry := range doc.Topics {
		if strings.TrimSpace(entry.Keyword) == "" {
			return nil, fmt.Errorf("knowledge file %s: topic %d has an empty keyword", path, i)
		}
		if strings.TrimSpace(entry.Topic.Description) == "" {
			return nil, fmt.Errorf("knowledge file %s: topic %q has no description", path, entry.Keyword)
		}
	}
	return doc.Topics, nil
}

// Build returns the seed table followed by the entries of path, if any.
// Seed entries keep priority because match order is table order.
func Build(path string) (*MemoryStore, error) {
	entries := Seed()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, extra...)
	}
	return NewMemoryStore(entries), nil
}
