package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openskills/skillbridge/internal/model"
	"github.com/openskills/skillbridge/internal/parser"
	"github.com/openskills/skillbridge/internal/parser/skills"
)

// markdownLinkRe captures the target of inline markdown links.
var markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// CheckFunc validates a single parsed skill against its directory.
type CheckFunc func(skill model.Skill, skillDir string, result *Result)

// DefaultChecks returns the standard corpus lint checks.
func DefaultChecks() []CheckFunc {
	return []CheckFunc{
		CheckRequiredFields,
		CheckNameMatchesDirectory,
		CheckDeclaredFiles,
		CheckRelativeLinks,
	}
}

// ValidateCorpus runs the default checks over every skill directory
// under root. The onSkill callback, if non-nil, is invoked once per
// directory (used for progress reporting).
func ValidateCorpus(root string, onSkill func(dir string)) (*Result, error) {
	dirs, err := skills.ListSkillDirectories(root)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate skill directories: %w", err)
	}

	result := &Result{}
	checks := DefaultChecks()

	for _, dir := range dirs {
		if onSkill != nil {
			onSkill(dir)
		}
		result.SkillsChecked++
		ValidateSkillDir(dir, checks, result)
	}

	return result, nil
}

// ValidateSkillDir validates one skill directory, appending findings
// to result.
func ValidateSkillDir(skillDir string, checks []CheckFunc, result *Result) {
	name := filepath.Base(skillDir)
	skillFile := filepath.Join(skillDir, skills.SkillFileName)

	// #nosec G304 - skillFile comes from corpus discovery
	content, err := os.ReadFile(skillFile)
	if err != nil {
		result.AddError(&Error{Skill: name, Field: skills.SkillFileName, Message: "unreadable", Err: err})
		return
	}

	split := parser.SplitFrontmatter(content)
	if !split.HasFrontmatter {
		result.AddErrorf(name, skills.SkillFileName, "missing frontmatter")
		return
	}

	skill, err := skills.ParseSkillFile(skillFile)
	if err != nil {
		result.AddError(&Error{Skill: name, Field: skills.SkillFileName, Message: "invalid", Err: err})
		return
	}

	for _, check := range checks {
		check(skill, skillDir, result)
	}
}

// CheckRequiredFields verifies name and description are present.
func CheckRequiredFields(skill model.Skill, skillDir string, result *Result) {
	name := filepath.Base(skillDir)
	if skill.Name == "" {
		result.AddErrorf(name, "name", "required field is empty")
	}
	if skill.Description == "" {
		result.AddErrorf(name, "description", "required field is empty")
	}
}

// CheckNameMatchesDirectory warns when the frontmatter name differs
// from the directory name.
func CheckNameMatchesDirectory(skill model.Skill, skillDir string, result *Result) {
	dirName := filepath.Base(skillDir)
	if skill.Name != "" && skill.Name != dirName {
		result.AddWarning(dirName, fmt.Sprintf("frontmatter name %q differs from directory name", skill.Name))
	}
}

// CheckDeclaredFiles verifies every file listed in the scripts,
// references, and assets frontmatter exists in the skill directory.
func CheckDeclaredFiles(skill model.Skill, skillDir string, result *Result) {
	name := filepath.Base(skillDir)

	groups := map[string][]string{
		"scripts":    skill.Scripts,
		"references": skill.References,
		"assets":     skill.Assets,
	}
	for field, files := range groups {
		for _, rel := range files {
			if _, err := os.Stat(filepath.Join(skillDir, rel)); err != nil {
				result.AddErrorf(name, field, "listed file %q does not exist", rel)
			}
		}
	}
}

// CheckRelativeLinks verifies relative markdown links in the skill
// body resolve to files inside the skill directory.
func CheckRelativeLinks(skill model.Skill, skillDir string, result *Result) {
	name := filepath.Base(skillDir)

	for _, match := range markdownLinkRe.FindAllStringSubmatch(skill.Content, -1) {
		target := match[1]
		if !isRelativeLink(target) {
			continue
		}

		// Strip anchors from file links.
		if idx := strings.IndexByte(target, '#'); idx >= 0 {
			target = target[:idx]
			if target == "" {
				continue
			}
		}

		resolved := filepath.Join(skillDir, filepath.FromSlash(target))
		if !strings.HasPrefix(resolved, filepath.Clean(skillDir)+string(filepath.Separator)) {
			result.AddErrorf(name, "link", "link %q escapes the skill directory", match[1])
			continue
		}
		if _, err := os.Stat(resolved); err != nil {
			result.AddErrorf(name, "link", "link target %q does not exist", match[1])
		}
	}
}

// isRelativeLink reports whether a markdown link target points at a
// local file rather than a URL or in-page anchor.
func isRelativeLink(target string) bool {
	switch {
	case strings.Contains(target, "://"):
		return false
	case strings.HasPrefix(target, "mailto:"):
		return false
	case strings.HasPrefix(target, "#"):
		return false
	case strings.HasPrefix(target, "/"):
		return false
	default:
		return true
	}
}
