// Package parser provides frontmatter extraction and file discovery
// shared by the skill corpus tooling.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FrontmatterResult contains the parsed frontmatter and remaining content.
type FrontmatterResult struct {
	// Frontmatter contains the raw frontmatter bytes.
	Frontmatter []byte
	// Content contains the remaining content after frontmatter.
	Content string
	// HasFrontmatter indicates whether frontmatter was found.
	HasFrontmatter bool
	// TOML indicates the frontmatter used +++ delimiters.
	TOML bool
}

// SplitFrontmatter extracts frontmatter from content. Supports ---
// (YAML) and +++ (TOML) delimiters, with Unix or Windows line endings.
func SplitFrontmatter(content []byte) FrontmatterResult {
	if bytes.HasPrefix(content, []byte("---\n")) || bytes.HasPrefix(content, []byte("---\r\n")) {
		return extractFrontmatter(content, []byte("---"), false)
	}
	if bytes.HasPrefix(content, []byte("+++\n")) || bytes.HasPrefix(content, []byte("+++\r\n")) {
		return extractFrontmatter(content, []byte("+++"), true)
	}

	return FrontmatterResult{Content: string(content)}
}

// extractFrontmatter extracts frontmatter between delimiters.
func extractFrontmatter(content, delimiter []byte, isTOML bool) FrontmatterResult {
	remaining := content[len(delimiter):]

	if bytes.HasPrefix(remaining, []byte("\r\n")) {
		remaining = remaining[2:]
	} else if bytes.HasPrefix(remaining, []byte("\n")) {
		remaining = remaining[1:]
	}

	var frontmatter []byte
	var bodyStart int
	delimFound := false

	if bytes.HasPrefix(remaining, delimiter) {
		// Empty frontmatter: ---\n---\n
		frontmatter = []byte{}
		bodyStart = len(delimiter)
		delimFound = true
	} else {
		for _, eol := range []string{"\n", "\r\n"} {
			closing := append([]byte(eol), delimiter...)
			if idx := bytes.Index(remaining, closing); idx != -1 {
				frontmatter = remaining[:idx]
				bodyStart = idx + len(closing)
				delimFound = true
				break
			}
		}
	}

	if !delimFound {
		return FrontmatterResult{Content: string(content)}
	}

	cleanFrontmatter := bytes.ReplaceAll(frontmatter, []byte("\r\n"), []byte("\n"))
	cleanFrontmatter = bytes.TrimRight(cleanFrontmatter, "\r")

	if bodyStart < len(remaining) {
		if bytes.HasPrefix(remaining[bodyStart:], []byte("\r\n")) {
			bodyStart += 2
		} else if bytes.HasPrefix(remaining[bodyStart:], []byte("\n")) {
			bodyStart++
		}
	}

	var body string
	if bodyStart < len(remaining) {
		body = string(remaining[bodyStart:])
	}

	return FrontmatterResult{
		Frontmatter:    cleanFrontmatter,
		Content:        body,
		HasFrontmatter: true,
		TOML:           isTOML,
	}
}

// ParseFrontmatter parses frontmatter bytes into a map, using YAML or
// TOML depending on the delimiters found by SplitFrontmatter.
func ParseFrontmatter(result FrontmatterResult) (map[string]any, error) {
	if len(result.Frontmatter) == 0 {
		return make(map[string]any), nil
	}

	out := make(map[string]any)
	if result.TOML {
		if err := toml.Unmarshal(result.Frontmatter, &out); err != nil {
			return nil, fmt.Errorf("failed to parse TOML frontmatter: %w", err)
		}
		return out, nil
	}

	if err := yaml.Unmarshal(result.Frontmatter, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}
	return out, nil
}

// DiscoverFiles finds all files matching the given glob patterns under
// baseDir. Patterns may use ** for recursive matching. Returns sorted,
// deduplicated absolute paths.
func DiscoverFiles(baseDir string, patterns []string) ([]string, error) {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat directory %q: %w", baseDir, err)
	}

	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}

			absPath, err := filepath.Abs(match)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %q: %w", match, err)
			}

			if !seen[absPath] {
				seen[absPath] = true
				files = append(files, absPath)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// ValidateSkillName checks if a skill name is valid. Valid names
// contain only alphanumeric characters, hyphens, and underscores.
func ValidateSkillName(name string) error {
	if name == "" {
		return fmt.Errorf("skill name cannot be empty")
	}

	if strings.TrimSpace(name) != name {
		return fmt.Errorf("skill name cannot have leading/trailing whitespace: %q", name)
	}

	for _, r := range name {
		if !isValidNameChar(r) {
			return fmt.Errorf("skill name contains invalid character %q: %q", r, name)
		}
	}

	return nil
}

// isValidNameChar returns true if the rune is valid in a skill name.
func isValidNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '_'
}

// NormalizeContent trims surrounding whitespace and normalizes line
// endings to \n.
func NormalizeContent(content string) string {
	trimmed := strings.TrimSpace(content)
	return strings.ReplaceAll(trimmed, "\r\n", "\n")
}
