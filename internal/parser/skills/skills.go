// Package skills implements the SKILL.md parser for the skill corpus.
// Each skill is a directory containing a SKILL.md file whose
// frontmatter carries a name, a description, and an optional metadata
// object with install instructions for the external tool it documents.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/model"
	"github.com/openskills/skillbridge/internal/parser"
)

// SkillFileName is the canonical name of a skill document.
const SkillFileName = "SKILL.md"

// Parser discovers and parses SKILL.md files under a corpus root.
type Parser struct {
	root string
}

// New creates a new SKILL.md parser rooted at the given directory.
func New(root string) *Parser {
	return &Parser{root: root}
}

// Root returns the configured corpus root.
func (p *Parser) Root() string {
	return p.root
}

// Parse parses all SKILL.md files found under the corpus root.
// Files that fail to parse are skipped with a warning.
func (p *Parser) Parse() ([]model.Skill, error) {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		logging.Debug("corpus root not found", logging.Path(p.root))
		return []model.Skill{}, nil
	}

	files, err := parser.DiscoverFiles(p.root, []string{SkillFileName, "**/" + SkillFileName})
	if err != nil {
		return nil, fmt.Errorf("failed to discover SKILL.md files in %q: %w", p.root, err)
	}

	logging.Debug("discovered SKILL.md files", logging.Path(p.root), logging.Count(len(files)))

	skills := make([]model.Skill, 0, len(files))
	for _, filePath := range files {
		skill, err := ParseSkillFile(filePath)
		if err != nil {
			logging.Warn("skipping unparseable SKILL.md",
				logging.Path(filePath),
				logging.Err(err),
			)
			continue
		}
		skills = append(skills, skill)
	}

	return skills, nil
}

// ParseSkillFile parses a single SKILL.md file.
func ParseSkillFile(filePath string) (model.Skill, error) {
	// #nosec G304 - filePath comes from corpus discovery
	content, err := os.ReadFile(filePath)
	if err != nil {
		return model.Skill{}, fmt.Errorf("failed to read file %q: %w", filePath, err)
	}

	skill, err := ParseSkillContent(content, deriveNameFromPath(filePath))
	if err != nil {
		return model.Skill{}, fmt.Errorf("%s: %w", filePath, err)
	}
	skill.Path = filePath

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return model.Skill{}, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}
	skill.ModifiedAt = fileInfo.ModTime()

	detectDirectoryStructure(&skill, filepath.Dir(filePath))

	return skill, nil
}

// ParseSkillContent parses SKILL.md content from bytes. The fallback
// name is used when the frontmatter does not carry one.
func ParseSkillContent(content []byte, fallbackName string) (model.Skill, error) {
	result := parser.SplitFrontmatter(content)

	skill := model.Skill{Name: fallbackName}

	if result.HasFrontmatter {
		fm, err := parser.ParseFrontmatter(result)
		if err != nil {
			return model.Skill{}, fmt.Errorf("failed to parse frontmatter: %w", err)
		}

		if name := extractString(fm, "name"); name != "" {
			skill.Name = name
		}
		skill.Description = extractString(fm, "description")
		skill.Scripts = extractStringSlice(fm, "scripts")
		skill.References = extractStringSlice(fm, "references")
		skill.Assets = extractStringSlice(fm, "assets")

		if meta, ok := fm["metadata"]; ok {
			metaMap, ok := meta.(map[string]any)
			if !ok {
				return model.Skill{}, fmt.Errorf("frontmatter metadata must be an object, got %T", meta)
			}
			skill.Metadata = metaMap
		}
	}

	if skill.Name == "" {
		return model.Skill{}, fmt.Errorf("skill name is required")
	}
	if err := parser.ValidateSkillName(skill.Name); err != nil {
		return model.Skill{}, fmt.Errorf("invalid skill name %q: %w", skill.Name, err)
	}

	skill.Content = parser.NormalizeContent(result.Content)

	return skill, nil
}

// HasFrontmatter reports whether content carries parseable frontmatter
// with the required name and description fields.
func HasFrontmatter(content []byte) bool {
	result := parser.SplitFrontmatter(content)
	if !result.HasFrontmatter {
		return false
	}

	fm, err := parser.ParseFrontmatter(result)
	if err != nil {
		return false
	}

	return extractString(fm, "name") != "" && extractString(fm, "description") != ""
}

// ListSkillDirectories finds all directories containing SKILL.md files.
func ListSkillDirectories(root string) ([]string, error) {
	files, err := parser.DiscoverFiles(root, []string{SkillFileName, "**/" + SkillFileName})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(files))
	for _, f := range files {
		dirs = append(dirs, filepath.Dir(f))
	}
	return dirs, nil
}

// deriveNameFromPath extracts a skill name from the SKILL.md file path,
// using the parent directory name.
func deriveNameFromPath(filePath string) string {
	return filepath.Base(filepath.Dir(filePath))
}

// detectDirectoryStructure appends files found in the standard skill
// subdirectories (scripts/, references/, assets/) to the skill,
// preserving anything already declared in frontmatter.
func detectDirectoryStructure(skill *model.Skill, skillDir string) {
	appendDir := func(dst *[]string, sub string) {
		for _, entry := range listFiles(filepath.Join(skillDir, sub)) {
			relPath := filepath.Join(sub, entry)
			if !slices.Contains(*dst, relPath) {
				*dst = append(*dst, relPath)
			}
		}
	}

	appendDir(&skill.Scripts, "scripts")
	appendDir(&skill.References, "references")
	appendDir(&skill.Assets, "assets")
}

// listFiles returns the file names in a directory, or nil if the
// directory doesn't exist or can't be read.
func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files
}

// extractString extracts a string value from a frontmatter map.
func extractString(fm map[string]any, key string) string {
	if val, ok := fm[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}

// extractStringSlice extracts a string slice from a frontmatter map.
func extractStringSlice(fm map[string]any, key string) []string {
	val, ok := fm[key]
	if !ok {
		return nil
	}
	slice, ok := val.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if strVal, ok := item.(string); ok {
			result = append(result, strVal)
		}
	}
	return result
}
