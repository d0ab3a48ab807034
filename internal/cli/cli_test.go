package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openskills/skillbridge/internal/logging"
)

// runCLI executes Run with the given arguments while capturing stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := Run(context.Background(), append([]string{"skillbridge"}, args...))

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close pipe writer: %v", err)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("failed to close pipe reader: %v", err)
	}

	return buf.String(), runErr
}

// writeSkill creates a skill directory with a SKILL.md under root.
func writeSkill(t *testing.T, root, dir, frontmatter string) {
	t.Helper()

	skillDir := filepath.Join(root, dir)
	if err := os.MkdirAll(skillDir, 0o750); err != nil {
		t.Fatalf("failed to create skill dir: %v", err)
	}
	content := "---\n" + frontmatter + "---\n\n# " + dir + "\n"
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write SKILL.md: %v", err)
	}
}

func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

func TestConfigureLogging(t *testing.T) {
	tests := map[string]struct {
		args      []string
		wantDebug bool
	}{
		"no flags keeps debug disabled": {
			args:      []string{"version"},
			wantDebug: false,
		},
		"verbose flag keeps debug disabled": {
			args:      []string{"--verbose", "version"},
			wantDebug: false,
		},
		"debug flag enables debug level": {
			args:      []string{"--debug", "version"},
			wantDebug: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			logging.SetDefault(logging.New(logging.DefaultOptions()))

			if _, err := runCLI(t, tt.args...); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			enabled := slog.Default().Enabled(context.Background(), slog.LevelDebug)
			if enabled != tt.wantDebug {
				t.Errorf("debug logging enabled = %v, want %v", enabled, tt.wantDebug)
			}
		})
	}
}

func TestRegistryBuildCommand(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "alpha", "name: alpha\ndescription: First skill.\n")
	writeSkill(t, root, "beta", "name: beta\ndescription: Second skill.\n")

	output, err := runCLI(t, "registry", "build", "--root", root)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, "2 skills") {
		t.Errorf("output = %q, want substring %q", output, "2 skills")
	}

	data, err := os.ReadFile(filepath.Join(root, "skills.json"))
	if err != nil {
		t.Fatalf("failed to read registry: %v", err)
	}
	for _, want := range []string{`"alpha"`, `"beta"`, `"skills_count": 2`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("registry = %q, want substring %q", string(data), want)
		}
	}
}

func TestRegistryShowCommand(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "alpha", "name: alpha\ndescription: First skill.\n")

	tests := map[string]struct {
		args       []string
		wantErr    bool
		wantOutput string
	}{
		"json format": {
			args:       []string{"registry", "show", "--root", root, "--format", "json"},
			wantOutput: `"name": "alpha"`,
		},
		"markdown format": {
			args:       []string{"registry", "show", "--root", root, "--format", "markdown"},
			wantOutput: "alpha",
		},
		"invalid format": {
			args:    []string{"registry", "show", "--root", root, "--format", "csv"},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			output, err := runCLI(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !strings.Contains(output, tt.wantOutput) {
				t.Errorf("output = %q, want substring %q", output, tt.wantOutput)
			}
		})
	}
}

func TestRegistryExportCommand(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "alpha", "name: alpha\ndescription: First skill.\n")

	if _, err := runCLI(t, "registry", "build", "--root", root); err != nil {
		t.Fatalf("registry build error = %v", err)
	}

	output, err := runCLI(t, "registry", "export", "--root", root, "--format", "yaml")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, "name: alpha") {
		t.Errorf("output = %q, want substring %q", output, "name: alpha")
	}
}

func TestValidateCommand(t *testing.T) {
	tests := map[string]struct {
		frontmatter string
		extraArgs   []string
		wantErr     bool
		wantOutput  string
	}{
		"valid corpus": {
			frontmatter: "name: alpha\ndescription: First skill.\n",
			wantOutput:  "corpus is valid",
		},
		"missing description fails": {
			frontmatter: "name: alpha\n",
			wantErr:     true,
			wantOutput:  "description",
		},
		"name mismatch warns": {
			frontmatter: "name: omega\ndescription: First skill.\n",
			wantOutput:  "passed with 1 warning(s)",
		},
		"name mismatch fails in strict mode": {
			frontmatter: "name: omega\ndescription: First skill.\n",
			extraArgs:   []string{"--strict"},
			wantErr:     true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeSkill(t, root, "alpha", tt.frontmatter)

			args := append([]string{"validate", "--root", root}, tt.extraArgs...)
			output, err := runCLI(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantOutput != "" && !strings.Contains(output, tt.wantOutput) {
				t.Errorf("output = %q, want substring %q", output, tt.wantOutput)
			}
		})
	}
}

func TestValidateCommandEmptyCorpus(t *testing.T) {
	output, err := runCLI(t, "validate", "--root", t.TempDir())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, "no skills found") {
		t.Errorf("output = %q, want substring %q", output, "no skills found")
	}
}

func TestConfigFlagOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "alpha", "name: alpha\ndescription: First skill.\n")

	cfgPath := filepath.Join(t.TempDir(), "alt.yaml")
	cfgData := "corpus:\n  root: " + root + "\n  registry_file: custom.json\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output, err := runCLI(t, "--config", cfgPath, "config", "path")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(output) != cfgPath {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(output), cfgPath)
	}

	if _, err := runCLI(t, "--config", cfgPath, "registry", "build"); err != nil {
		t.Fatalf("registry build error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "custom.json")); err != nil {
		t.Errorf("registry not written at configured path: %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := runCLI(t, "--config", missing, "registry", "build"); err == nil {
		t.Error("Run() error = nil, want missing config file error")
	}
}

func TestDevicesCommandRejectsUnknownPlatform(t *testing.T) {
	if _, err := runCLI(t, "devices", "--platform", "vax"); err == nil {
		t.Error("Run() error = nil, want platform error")
	}
}

func TestConfigPathCommand(t *testing.T) {
	output, err := runCLI(t, "config", "path")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, "skillbridge") {
		t.Errorf("output = %q, want a skillbridge config path", output)
	}
	if !strings.HasSuffix(strings.TrimSpace(output), "config.yaml") {
		t.Errorf("output = %q, want path ending in config.yaml", output)
	}
}

func TestConfigInitCommand(t *testing.T) {
	output, err := runCLI(t, "config", "init")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, "wrote") {
		t.Errorf("output = %q, want substring %q", output, "wrote")
	}

	// A second init must refuse to clobber the file.
	if _, err := runCLI(t, "config", "init"); err == nil {
		t.Error("second init should fail when the config file exists")
	}

	show, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"corpus:", "bridge:", "rpc:", "forward:"} {
		if !strings.Contains(show, want) {
			t.Errorf("config show output = %q, want substring %q", show, want)
		}
	}
}
