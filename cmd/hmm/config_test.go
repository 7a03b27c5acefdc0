package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyFileConfigOnlyOverridesSetFields(t *testing.T) {
	cfg := agentConfig{Model: defaultModel, MaxTokens: defaultMaxTokens, DBPath: defaultDBPath}
	applyFileConfig(&cfg, fileConfig{Model: "gpt-4o"})

	if cfg.Model != "gpt-4o" {
		t.Errorf("expected model overridden, got %q", cfg.Model)
	}
	if cfg.MaxTokens != defaultMaxTokens {
		t.Errorf("expected max tokens left at default, got %d", cfg.MaxTokens)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected db path left at default, got %q", cfg.DBPath)
	}
}

func TestApplyFlagsOnlyAppliesChangedFlags(t *testing.T) {
	cfg := agentConfig{Model: "gpt-4o", DBPath: "existing.db"}
	applyFlags(&cfg, resolvedFlags{DBPath: "override.db", dbPathSet: true, Model: "ignored"})

	if cfg.Model != "gpt-4o" {
		t.Errorf("expected model untouched since modelSet is false, got %q", cfg.Model)
	}
	if cfg.DBPath != "override.db" {
		t.Errorf("expected db path overridden, got %q", cfg.DBPath)
	}
}

func TestLoadFileConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hmm.yaml")
	content := "model: gpt-4o\nmax_tokens: 16000\ndb_path: custom.db\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if fc.Model != "gpt-4o" || fc.MaxTokens != 16000 || fc.DBPath != "custom.db" {
		t.Errorf("unexpected parsed config: %+v", fc)
	}
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
