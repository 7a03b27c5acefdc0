package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional on-disk layer of the config cascade. It is
// loaded from --config (or ./hmm.yaml if present) and sits below
// environment variables and flags in priority.
type fileConfig struct {
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	DBPath       string `yaml:"db_path"`
	ArchivalPath string `yaml:"archival_path"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
}

// agentConfig is the fully-resolved configuration for a run, after
// cascading default < yaml < env < flag.
type agentConfig struct {
	Model        string
	MaxTokens    int
	DBPath       string
	ArchivalPath string
	APIKey       string
	BaseURL      string
}

const (
	defaultModel        = "gpt-4"
	defaultMaxTokens    = 8000
	defaultDBPath       = "hmm.db"
	defaultArchivalPath = "./data/archival"
)

// resolveConfig builds an agentConfig by layering, lowest to highest
// priority: built-in defaults, an optional YAML file, environment
// variables (loaded from .env if present), then explicit flag values.
// Flag values are only applied when the caller actually set them
// (the resolvedFlags *Set fields report which flags were changed on the
// command line).
func resolveConfig(flags resolvedFlags) (agentConfig, error) {
	cfg := agentConfig{
		Model:        defaultModel,
		MaxTokens:    defaultMaxTokens,
		DBPath:       defaultDBPath,
		ArchivalPath: defaultArchivalPath,
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("hmm.yaml"); err == nil {
			path = "hmm.yaml"
		}
	}
	if path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		applyFileConfig(&cfg, fc)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("HMM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	applyFlags(&cfg, flags)

	if cfg.APIKey == "" {
		key, err := promptForAPIKey()
		if err != nil {
			return cfg, err
		}
		cfg.APIKey = key
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return fc, nil
}

func applyFileConfig(cfg *agentConfig, fc fileConfig) {
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.MaxTokens != 0 {
		cfg.MaxTokens = fc.MaxTokens
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.ArchivalPath != "" {
		cfg.ArchivalPath = fc.ArchivalPath
	}
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
}

// resolvedFlags carries the CLI flag values that should override the
// yaml/env layers when set.
type resolvedFlags struct {
	Model        string
	MaxTokens    int
	DBPath       string
	ArchivalPath string
	APIKey       string
	modelSet     bool
	maxTokensSet bool
	dbPathSet    bool
	archivalSet  bool
	apiKeySet    bool
}

func applyFlags(cfg *agentConfig, f resolvedFlags) {
	if f.modelSet {
		cfg.Model = f.Model
	}
	if f.maxTokensSet {
		cfg.MaxTokens = f.MaxTokens
	}
	if f.dbPathSet {
		cfg.DBPath = f.DBPath
	}
	if f.archivalSet {
		cfg.ArchivalPath = f.ArchivalPath
	}
	if f.apiKeySet {
		cfg.APIKey = f.APIKey
	}
}

// promptForAPIKey masks input the same way forge-cli's passphrase prompt
// does, falling back to an error when stdin is not a terminal (e.g. CI).
func promptForAPIKey() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no API key configured: set --api-key, OPENAI_API_KEY, or api_key in the config file")
	}
	fmt.Fprint(os.Stderr, "Enter OpenAI API key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("no API key provided")
	}
	return string(raw), nil
}
