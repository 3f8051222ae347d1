package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SOCIALHUB_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	old := DotEnvFile
	DotEnvFile = filepath.Join(home, "missing.env")
	t.Cleanup(func() { DotEnvFile = old })
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Provider != "groq" || c.Model != "mixtral-8x7b-32768" || c.MaxTokens != 1024 || c.Temperature != 0.7 {
		t.Fatalf("defaults = %+v", c)
	}
	if c.ListenAddr != ":8000" || c.RetryMaxAttempts != 3 || c.RateLimitPerMin != 60 || c.TrustProxy {
		t.Fatalf("server defaults = %+v", c)
	}
	if want := filepath.Join(home, ".socialhub", "session.json"); c.SessionFile != want {
		t.Fatalf("session file = %q, want %q", c.SessionFile, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg.yaml")
	if err := Save(&Global{Model: "llama3-8b-8192", MaxTokens: 200, APIKey: "from-file"}, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("SOCIALHUB_MAX_TOKENS", "300")
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Model != "llama3-8b-8192" || c.MaxTokens != 300 || c.APIKey != "from-file" {
		t.Fatalf("config = %+v", c)
	}
}

func TestGroqKeyFallbackAndDotEnv(t *testing.T) {
	home := isolate(t)
	env := filepath.Join(home, "test.env")
	if err := os.WriteFile(env, []byte("SOCIALHUB_LISTEN_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	DotEnvFile = env
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Cleanup(func() { os.Unsetenv("SOCIALHUB_LISTEN_ADDR") })

	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.APIKey != "gsk_test" {
		t.Fatalf("api key = %q", c.APIKey)
	}
	if c.ListenAddr != ":9999" {
		t.Fatalf("listen addr = %q", c.ListenAddr)
	}
}

func TestSaveDefaultLocation(t *testing.T) {
	home := isolate(t)
	if err := Save(&Global{Model: "m"}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(home, ".socialhub", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Model != "m" {
		t.Fatalf("model = %q", c.Model)
	}
}
