package model

import "time"

// Skill represents a single documented skill: a directory holding a
// SKILL.md file that teaches an agent how to drive an external tool.
type Skill struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Path        string         `json:"path"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Content     string         `json:"content,omitempty"`
	ModifiedAt  time.Time      `json:"modified_at,omitzero"`

	// Supporting files discovered next to SKILL.md.
	Scripts    []string `json:"scripts,omitempty"`
	References []string `json:"references,omitempty"`
	Assets     []string `json:"assets,omitempty"`
}
