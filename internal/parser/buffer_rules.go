package parser

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/droneguard/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ParseBufferRules parses a YAML file of per-drone safety buffers.
func ParseBufferRules(filePath string) (*models.BufferRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseBufferRulesFromReader(file)
}

// ParseBufferRulesFromReader parses buffer rules from an io.Reader.
func ParseBufferRulesFromReader(r io.Reader) (*models.BufferRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules models.BufferRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}

	if rules.DefaultBuffer < 0 {
		return nil, fmt.Errorf("default_buffer must not be negative")
	}
	for i, o := range rules.Overrides {
		if _, err := path.Match(o.Pattern, ""); err != nil {
			return nil, fmt.Errorf("override %d: bad pattern %q: %w", i, o.Pattern, err)
		}
		if o.Buffer < 0 {
			return nil, fmt.Errorf("override %d: buffer_meters must not be negative", i)
		}
	}
	return &rules, nil
}
