package parser

import (
	"path/filepath"
	"testing"

	"github.com/openskills/skillbridge/internal/util"
)

func TestSplitFrontmatter(t *testing.T) {
	tests := map[string]struct {
		content         string
		wantFrontmatter string
		wantContent     string
		wantHas         bool
		wantTOML        bool
	}{
		"yaml frontmatter": {
			content:         "---\nname: tailscale\n---\nBody text",
			wantFrontmatter: "name: tailscale",
			wantContent:     "Body text",
			wantHas:         true,
		},
		"toml frontmatter": {
			content:         "+++\nname = \"tailscale\"\n+++\nBody",
			wantFrontmatter: "name = \"tailscale\"",
			wantContent:     "Body",
			wantHas:         true,
			wantTOML:        true,
		},
		"windows line endings": {
			content:         "---\r\nname: x\r\n---\r\nBody",
			wantFrontmatter: "name: x",
			wantContent:     "Body",
			wantHas:         true,
		},
		"empty frontmatter": {
			content:         "---\n---\nBody",
			wantFrontmatter: "",
			wantContent:     "Body",
			wantHas:         true,
		},
		"no frontmatter": {
			content:     "# Just markdown",
			wantContent: "# Just markdown",
		},
		"unclosed frontmatter": {
			content:     "---\nname: broken",
			wantContent: "---\nname: broken",
		},
		"delimiter mid-document ignored": {
			content:     "Text\n---\nmore",
			wantContent: "Text\n---\nmore",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := SplitFrontmatter([]byte(tt.content))
			if got.HasFrontmatter != tt.wantHas {
				t.Errorf("HasFrontmatter = %v, want %v", got.HasFrontmatter, tt.wantHas)
			}
			if string(got.Frontmatter) != tt.wantFrontmatter {
				t.Errorf("Frontmatter = %q, want %q", got.Frontmatter, tt.wantFrontmatter)
			}
			if got.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", got.Content, tt.wantContent)
			}
			if got.TOML != tt.wantTOML {
				t.Errorf("TOML = %v, want %v", got.TOML, tt.wantTOML)
			}
		})
	}
}

func TestParseFrontmatter(t *testing.T) {
	tests := map[string]struct {
		result  FrontmatterResult
		wantKey string
		wantVal string
		wantErr bool
	}{
		"yaml": {
			result:  FrontmatterResult{Frontmatter: []byte("name: tailscale"), HasFrontmatter: true},
			wantKey: "name",
			wantVal: "tailscale",
		},
		"toml": {
			result:  FrontmatterResult{Frontmatter: []byte("name = \"cloudflared\""), HasFrontmatter: true, TOML: true},
			wantKey: "name",
			wantVal: "cloudflared",
		},
		"empty": {
			result: FrontmatterResult{Frontmatter: nil},
		},
		"invalid yaml": {
			result:  FrontmatterResult{Frontmatter: []byte(":\n:bad"), HasFrontmatter: true},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fm, err := ParseFrontmatter(tt.result)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantKey == "" {
				return
			}
			if got, ok := fm[tt.wantKey].(string); !ok || got != tt.wantVal {
				t.Errorf("fm[%q] = %v, want %q", tt.wantKey, fm[tt.wantKey], tt.wantVal)
			}
		})
	}
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	util.WriteFile(t, filepath.Join(dir, "tailscale", "SKILL.md"), "a")
	util.WriteFile(t, filepath.Join(dir, "phone-use", "SKILL.md"), "b")
	util.WriteFile(t, filepath.Join(dir, "phone-use", "scripts", "run.sh"), "c")
	util.WriteFile(t, filepath.Join(dir, "README.md"), "d")

	tests := map[string]struct {
		patterns []string
		want     int
	}{
		"recursive skill files": {
			patterns: []string{"**/SKILL.md"},
			want:     2,
		},
		"overlapping patterns deduplicate": {
			patterns: []string{"**/SKILL.md", "tailscale/SKILL.md"},
			want:     2,
		},
		"no matches": {
			patterns: []string{"**/*.yaml"},
			want:     0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			files, err := DiscoverFiles(dir, tt.patterns)
			if err != nil {
				t.Fatalf("DiscoverFiles() error: %v", err)
			}
			if len(files) != tt.want {
				t.Errorf("DiscoverFiles() returned %d files, want %d: %v", len(files), tt.want, files)
			}
		})
	}
}

func TestDiscoverFiles_MissingDir(t *testing.T) {
	files, err := DiscoverFiles(filepath.Join(t.TempDir(), "nope"), []string{"**/SKILL.md"})
	if err != nil {
		t.Fatalf("DiscoverFiles() error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files for missing dir, got %v", files)
	}
}

func TestValidateSkillName(t *testing.T) {
	tests := map[string]struct {
		skillName string
		wantErr   bool
	}{
		"simple":             {skillName: "tailscale"},
		"hyphenated":         {skillName: "phone-use"},
		"underscored":        {skillName: "home_assistant"},
		"alphanumeric":       {skillName: "expo2"},
		"empty":              {skillName: "", wantErr: true},
		"leading whitespace": {skillName: " tailscale", wantErr: true},
		"embedded space":     {skillName: "phone use", wantErr: true},
		"slash":              {skillName: "phone/use", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateSkillName(tt.skillName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSkillName(%q) error = %v, wantErr %v", tt.skillName, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeContent(t *testing.T) {
	tests := map[string]struct {
		content string
		want    string
	}{
		"trims whitespace": {content: "  body  \n", want: "body"},
		"windows endings":  {content: "a\r\nb", want: "a\nb"},
		"already normal":   {content: "a\nb", want: "a\nb"},
		"empty":            {content: "", want: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := NormalizeContent(tt.content); got != tt.want {
				t.Errorf("NormalizeContent(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
