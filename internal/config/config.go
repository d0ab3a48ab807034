// Package config provides configuration management for skillbridge.
// It layers YAML configuration files and environment variables over
// sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openskills/skillbridge/internal/registry"
	"github.com/openskills/skillbridge/internal/util"
)

// Config represents the complete skillbridge configuration.
type Config struct {
	// Corpus configures the skill corpus location.
	Corpus CorpusConfig `yaml:"corpus"`

	// Bridge configures the Android RPC bridge server.
	Bridge BridgeConfig `yaml:"bridge"`

	// RPC configures the RPC client.
	RPC RPCConfig `yaml:"rpc"`

	// Forward configures the iOS localhost forwarder.
	Forward ForwardConfig `yaml:"forward"`

	// Output configures display preferences.
	Output OutputConfig `yaml:"output"`
}

// CorpusConfig holds the skill corpus settings.
type CorpusConfig struct {
	// Root is the corpus root directory. Relative paths and ~ are
	// expanded against the working directory and home directory.
	Root string `yaml:"root"`
	// RegistryFile is the registry file name written at the root.
	RegistryFile string `yaml:"registry_file"`
}

// BridgeConfig holds the Android bridge server settings.
type BridgeConfig struct {
	// Host is the listen address. The bridge refuses non-loopback
	// peers regardless.
	Host string `yaml:"host"`
	// Port is the listen port.
	Port int `yaml:"port"`
	// ADBBinary overrides adb resolution. Defaults to auto-detection.
	ADBBinary string `yaml:"adb_binary,omitempty"`
}

// RPCConfig holds the RPC client settings.
type RPCConfig struct {
	// Host is the bridge address to connect to.
	Host string `yaml:"host"`
	// Port is the bridge port to connect to.
	Port int `yaml:"port"`
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ReadTimeout bounds reading a single response line.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// MaxResponseBytes bounds the size of a response line.
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
	// ArtifactsDir is where screenshots are written.
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// ForwardConfig holds the iOS forwarder settings.
type ForwardConfig struct {
	// Port is the local listen port; the device port is the same.
	Port int `yaml:"port"`
	// ConnectTimeout bounds each remote dial attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Format is the default output format (json, yaml, markdown).
	Format string `yaml:"format"`
	// Color controls color output (auto, always, never).
	Color string `yaml:"color"`
}

// DefaultPort is the port shared by the bridge, forwarder, and client.
const DefaultPort = 45678

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:         ".",
			RegistryFile: registry.DefaultFileName,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: DefaultPort,
		},
		RPC: RPCConfig{
			Host:             "127.0.0.1",
			Port:             DefaultPort,
			ConnectTimeout:   5 * time.Second,
			ReadTimeout:      30 * time.Second,
			MaxResponseBytes: 10 * 1024 * 1024,
			ArtifactsDir:     util.DefaultArtifactsDir(),
		},
		Forward: ForwardConfig{
			Port:           DefaultPort,
			ConnectTimeout: 2 * time.Second,
		},
		Output: OutputConfig{
			Format: "json",
			Color:  "auto",
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.ConfigDir(), configFileName)
}

// Load loads the configuration from the default file, merging with
// defaults. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from the config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	configPath := FilePath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(configPath, data, 0o644)
}

// applyEnvironment applies environment variable overrides. Variables
// follow the pattern SKILLBRIDGE_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("SKILLBRIDGE_CORPUS_ROOT"); v != "" {
		c.Corpus.Root = v
	}
	if v := os.Getenv("SKILLBRIDGE_CORPUS_REGISTRY_FILE"); v != "" {
		c.Corpus.RegistryFile = v
	}

	if v := os.Getenv("SKILLBRIDGE_BRIDGE_HOST"); v != "" {
		c.Bridge.Host = v
	}
	if v := os.Getenv("SKILLBRIDGE_BRIDGE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Bridge.Port = p
		}
	}
	if v := os.Getenv("SKILLBRIDGE_ADB"); v != "" {
		c.Bridge.ADBBinary = v
	}

	if v := os.Getenv("SKILLBRIDGE_RPC_HOST"); v != "" {
		c.RPC.Host = v
	}
	if v := os.Getenv("SKILLBRIDGE_RPC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.RPC.Port = p
		}
	}
	if v := os.Getenv("SKILLBRIDGE_RPC_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RPC.ConnectTimeout = d
		}
	}
	if v := os.Getenv("SKILLBRIDGE_RPC_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RPC.ReadTimeout = d
		}
	}
	if v := os.Getenv("SKILLBRIDGE_RPC_ARTIFACTS_DIR"); v != "" {
		c.RPC.ArtifactsDir = v
	}

	if v := os.Getenv("SKILLBRIDGE_FORWARD_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Forward.ConnectTimeout = d
		}
	}

	if v := os.Getenv("SKILLBRIDGE_OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("SKILLBRIDGE_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
}

// CorpusRoot returns the corpus root, expanded against baseDir.
func (c *Config) CorpusRoot(baseDir string) string {
	return util.ExpandPath(c.Corpus.Root, baseDir)
}

// RegistryPath returns the full path of the registry file.
func (c *Config) RegistryPath(baseDir string) string {
	return filepath.Join(c.CorpusRoot(baseDir), c.Corpus.RegistryFile)
}

// ColorEnabled resolves the color setting against NO_COLOR semantics
// handled by the color package; "never" forces colors off, "always"
// forces them on, anything else leaves auto-detection alone.
func (c *Config) ColorEnabled() (force, disable bool) {
	switch strings.ToLower(c.Output.Color) {
	case "always":
		return true, false
	case "never":
		return false, true
	default:
		return false, false
	}
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
