package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGlobalConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(EnvUser, "")
	t.Setenv(EnvEmail, "")
	t.Setenv(EnvS2APIKey, "")
	t.Setenv(EnvLocalIndex, "")
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() without file error = %v", err)
	}
	if name, email := cfg.Committer(); name != "lrv" || email != "lrv@localhost" {
		t.Errorf("Committer() = %q, %q", name, email)
	}
	if got := cfg.LocalIndex("/repo"); got != filepath.Join("/repo", LocalIndexFile) {
		t.Errorf("LocalIndex() = %q", got)
	}

	path := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := "committer_name: Ada\ncommitter_email: ada@example.org\ns2_api_key: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	ResetGlobalConfigCache()
	t.Setenv(EnvS2APIKey, "from-env")

	cfg, err = LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if name, email := cfg.Committer(); name != "Ada" || email != "ada@example.org" {
		t.Errorf("Committer() = %q, %q", name, email)
	}
	if cfg.S2APIKey != "from-env" {
		t.Errorf("S2APIKey = %q, want env override", cfg.S2APIKey)
	}
	if GetS2APIKey() != "from-env" {
		t.Error("GetS2APIKey() should use the cached config")
	}
}

func TestLoadGlobalConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	path := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("committer_name: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() should fail on malformed YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv(missing) error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LRV_DOTENV_PROBE=yes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LRV_DOTENV_PROBE") })
	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if os.Getenv("LRV_DOTENV_PROBE") != "yes" {
		t.Error("LoadDotEnv() did not set variable")
	}
}
