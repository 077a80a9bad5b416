package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvLogLevel)
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
}

func TestNew_PortFromEnv(t *testing.T) {
	os.Setenv(EnvPort, "4242")
	defer os.Unsetenv(EnvPort)
	os.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 4242 {
		t.Errorf("Port() = %d, want 4242", cfg.Port())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("New() should return error for invalid port")
	}
}

func TestNew_YAMLOverlay(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	content := "port: 9090\nlog_level: debug\ndata_dir: " + tmpDir + "\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, cfgPath)
	defer os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvLogLevel)
	os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.DBPath() != filepath.Join(tmpDir, DBFilename) {
		t.Errorf("DBPath() = %q, want under %q", cfg.DBPath(), tmpDir)
	}
}

func TestNew_EnvWinsOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("port: 9090\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, cfgPath)
	os.Setenv(EnvPort, "7070")
	defer os.Unsetenv(EnvConfigFile)
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 7070 {
		t.Errorf("Port() = %d, want 7070 (env should win)", cfg.Port())
	}
}

func TestNew_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("port: [nope"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, cfgPath)
	defer os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("New() should return error for malformed config file")
	}
}
