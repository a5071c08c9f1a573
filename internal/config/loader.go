package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the controller.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	Llama   LlamaConfig   `json:"llama" yaml:"llama" toml:"llama"`
	GPU     GPUConfig     `json:"gpu" yaml:"gpu" toml:"gpu"`
	Restart RestartConfig `json:"restart" yaml:"restart" toml:"restart"`
	Health  HealthConfig  `json:"health" yaml:"health" toml:"health"`
	CORS    CORSConfig    `json:"cors" yaml:"cors" toml:"cors"`

	// Models declared explicitly, merged over the models_dir scan.
	Models []ModelConfig `json:"models" yaml:"models" toml:"models"`
}

// LlamaConfig locates the llama-server binary and its listen ports.
type LlamaConfig struct {
	Bin      string `json:"bin" yaml:"bin" toml:"bin"`
	Host     string `json:"host" yaml:"host" toml:"host"`
	GPU0Port int    `json:"gpu0_port" yaml:"gpu0_port" toml:"gpu0_port"`
	GPU1Port int    `json:"gpu1_port" yaml:"gpu1_port" toml:"gpu1_port"`
}

// GPUConfig controls probing. MockDataPath points at a captured nvidia-smi
// output used instead of the real tool.
type GPUConfig struct {
	SMIPath      string `json:"smi_path" yaml:"smi_path" toml:"smi_path"`
	ThresholdMiB int    `json:"threshold_mib" yaml:"threshold_mib" toml:"threshold_mib"`
	MockMode     bool   `json:"mock_mode" yaml:"mock_mode" toml:"mock_mode"`
	MockDataPath string `json:"mock_data_path" yaml:"mock_data_path" toml:"mock_data_path"`
}

// RestartConfig bounds the crash-restart loop.
type RestartConfig struct {
	MaxRestarts            int `json:"max_restarts" yaml:"max_restarts" toml:"max_restarts"`
	BackoffSeconds         int `json:"backoff_seconds" yaml:"backoff_seconds" toml:"backoff_seconds"`
	BackoffCapSeconds      int `json:"backoff_cap_seconds" yaml:"backoff_cap_seconds" toml:"backoff_cap_seconds"`
	StartupDeadlineSeconds int `json:"startup_deadline_seconds" yaml:"startup_deadline_seconds" toml:"startup_deadline_seconds"`
}

// HealthConfig controls the instance health watch and shutdown grace.
type HealthConfig struct {
	IntervalSeconds  int `json:"interval_seconds" yaml:"interval_seconds" toml:"interval_seconds"`
	TimeoutSeconds   int `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	StopGraceSeconds int `json:"stop_grace_seconds" yaml:"stop_grace_seconds" toml:"stop_grace_seconds"`
}

// CORSConfig enables permissive cross-origin access for browser frontends.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// ModelConfig declares one model with optional extra llama-server arguments.
type ModelConfig struct {
	ID   string   `json:"id" yaml:"id" toml:"id"`
	Name string   `json:"name" yaml:"name" toml:"name"`
	Path string   `json:"path" yaml:"path" toml:"path"`
	Args []string `json:"args" yaml:"args" toml:"args"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
