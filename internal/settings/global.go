package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/lrv/config.yml.
type GlobalConfig struct {
	CommitterName  string `yaml:"committer_name,omitempty"`
	CommitterEmail string `yaml:"committer_email,omitempty"`
	S2APIKey       string `yaml:"s2_api_key,omitempty"`
	LocalIndexPath string `yaml:"local_index_path,omitempty"`
	PDFViewer      string `yaml:"pdf_viewer,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "lrv"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment overrides.
const (
	EnvUser       = "LRV_USER"
	EnvEmail      = "LRV_EMAIL"
	EnvS2APIKey   = "S2_API_KEY"
	EnvLocalIndex = "LRV_LOCAL_INDEX"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/lrv/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadDotEnv loads a .env file from dir into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. Returns an empty config (not an error) if the
// file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	override(&cfg.CommitterName, EnvUser)
	override(&cfg.CommitterEmail, EnvEmail)
	override(&cfg.S2APIKey, EnvS2APIKey)
	override(&cfg.LocalIndexPath, EnvLocalIndex)
	if cfg.LocalIndexPath != "" {
		cfg.LocalIndexPath = ExpandPath(cfg.LocalIndexPath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Committer returns the git identity for operation commits, falling back
// to a generic identity when none is configured.
func (c *GlobalConfig) Committer() (name, email string) {
	name, email = c.CommitterName, c.CommitterEmail
	if name == "" {
		name = "lrv"
	}
	if email == "" {
		email = "lrv@localhost"
	}
	return name, email
}

// LocalIndex returns the local index database path for the repository at
// root: the configured path, or the per-repository default.
func (c *GlobalConfig) LocalIndex(root string) string {
	if c.LocalIndexPath != "" {
		return c.LocalIndexPath
	}
	return filepath.Join(root, LocalIndexFile)
}

// GetS2APIKey returns the Semantic Scholar API key from global config.
func GetS2APIKey() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return os.Getenv(EnvS2APIKey)
	}
	return cfg.S2APIKey
}
