// Package registry builds and serializes the skills.json registry from
// the SKILL.md frontmatter of every skill directory in a corpus.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/parser/skills"
)

// Version is the registry document schema version.
const Version = 1

// DefaultFileName is the registry file written at the corpus root.
const DefaultFileName = "skills.json"

// Entry is one skill in the registry.
type Entry struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Path        string         `json:"path" yaml:"path"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Document is the full registry document.
type Document struct {
	Version     int       `json:"version" yaml:"version"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	SkillsCount int       `json:"skills_count" yaml:"skills_count"`
	Skills      []Entry   `json:"skills" yaml:"skills"`
}

// Build scans the top-level skill directories under root and assembles
// a registry document. Directories without a SKILL.md, dotted
// directories, and skills without valid frontmatter are skipped; the
// latter with a warning.
func Build(root string) (*Document, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus root %q: %w", root, err)
	}

	var result []Entry
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}

		skillFile := filepath.Join(root, entry.Name(), skills.SkillFileName)
		if _, err := os.Stat(skillFile); err != nil {
			continue
		}

		skill, err := skills.ParseSkillFile(skillFile)
		if err != nil {
			logging.Warn("skipping skill without valid frontmatter",
				logging.Skill(entry.Name()),
				logging.Err(err),
			)
			continue
		}

		result = append(result, Entry{
			Name:        skill.Name,
			Description: skill.Description,
			Path:        entry.Name(),
			Metadata:    skill.Metadata,
		})
		logging.Debug("found skill", logging.Skill(skill.Name), logging.Path(skillFile))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })

	return &Document{
		Version:     Version,
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
		SkillsCount: len(result),
		Skills:      result,
	}, nil
}

// Write serializes the document as indented JSON with a trailing
// newline to the given path.
func (d *Document) Write(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	data = append(data, '\n')

	// #nosec G306 - the registry is a published document
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry %q: %w", path, err)
	}
	return nil
}

// Load reads a registry document from disk.
func Load(path string) (*Document, error) {
	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %q: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry %q: %w", path, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported registry version %d (expected %d)", doc.Version, Version)
	}
	return &doc, nil
}
