package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AUSKUNFT_CONFIG env, ./auskunft.yaml,
//     ~/.config/auskunft/config.yaml, /etc/auskunft/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
//  1. Explicit configPath argument
//  2. AUSKUNFT_CONFIG environment variable
//  3. ./auskunft.yaml in the current directory
//  4. ~/.config/auskunft/config.yaml
//  5. /etc/auskunft/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check AUSKUNFT_CONFIG env var.
	if envPath := os.Getenv("AUSKUNFT_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{"auskunft.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "auskunft", "config.yaml"))
	}
	candidates = append(candidates, "/etc/auskunft/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Backend
// selection and credentials use the canonical variable names shared with
// the rest of the RAG deployment (LLM_BACKEND, OLLAMA_*, WATSONX_*);
// service-level settings use the AUSKUNFT_ prefix.
func applyEnvOverrides(cfg *Config) {
	// Backend selection.
	if v := os.Getenv("LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}

	// Local backend.
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.LLM.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_GENERATION_MODEL"); v != "" {
		cfg.LLM.Ollama.GenerationModel = v
	}
	if v := os.Getenv("OLLAMA_ENRICHMENT_MODEL"); v != "" {
		cfg.LLM.Ollama.EnrichmentModel = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.Ollama.EmbeddingModel = v
	}

	// Cloud backend.
	if v := os.Getenv("WATSONX_API_KEY"); v != "" {
		cfg.LLM.Watsonx.APIKey = v
	}
	if v := os.Getenv("WATSONX_API_KEY_FILE"); v != "" {
		cfg.LLM.Watsonx.APIKeyFile = v
	}
	if v := os.Getenv("WATSONX_PROJECT_ID"); v != "" {
		cfg.LLM.Watsonx.ProjectID = v
	}
	if v := os.Getenv("WATSONX_URL"); v != "" {
		cfg.LLM.Watsonx.URL = v
	}
	if v := os.Getenv("WATSONX_GENERATION_MODEL"); v != "" {
		cfg.LLM.Watsonx.GenerationModel = v
	}
	if v := os.Getenv("WATSONX_ENRICHMENT_MODEL"); v != "" {
		cfg.LLM.Watsonx.EnrichmentModel = v
	}
	if v := os.Getenv("WATSONX_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.Watsonx.EmbeddingModel = v
	}

	// Service settings.
	if v := os.Getenv("AUSKUNFT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AUSKUNFT_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("AUSKUNFT_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("AUSKUNFT_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("AUSKUNFT_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("AUSKUNFT_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// AUSKUNFT_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("AUSKUNFT_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// llm.watsonx.api_key_file -> llm.watsonx.api_key
	if cfg.LLM.Watsonx.APIKeyFile != "" && cfg.LLM.Watsonx.APIKey == "" {
		val, err := readSecretFile(cfg.LLM.Watsonx.APIKeyFile)
		if err != nil {
			return fmt.Errorf("llm.watsonx.api_key_file: %w", err)
		}
		cfg.LLM.Watsonx.APIKey = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
