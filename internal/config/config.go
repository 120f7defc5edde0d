package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Ranker    RankerConfig    `json:"ranker"`
	Edge      EdgeConfig      `json:"edge"`
	Sampling  SamplingConfig  `json:"sampling"`
	Detect    DetectConfig    `json:"detect"`
	Output    OutputConfig    `json:"output"`
	Transcode TranscodeConfig `json:"transcode"`
}

// RankerConfig holds thresholds for subject ranking
type RankerConfig struct {
	ObjectMinConfidence float64 `json:"object_min_confidence"`
	ObjectMinAreaRatio  float64 `json:"object_min_area_ratio"`
}

// EdgeConfig holds thresholds for edge-based fallback analysis
type EdgeConfig struct {
	EdgeThreshold      float64 `json:"edge_threshold"`
	MinRegionAreaRatio float64 `json:"min_region_area_ratio"`
	MinAspect          float64 `json:"min_aspect"`
	MaxAspect          float64 `json:"max_aspect"`
	ThirdsWindow       int     `json:"thirds_window"`
}

// SamplingConfig controls video frame sampling
type SamplingConfig struct {
	FrameCount int `json:"frame_count"`
	Workers    int `json:"workers"`
}

// DetectConfig holds settings for the detection backends
type DetectConfig struct {
	CascadePath string `json:"cascade_path"`
	OllamaHost  string `json:"ollama_host"`
	OllamaModel string `json:"ollama_model"`
	TimeoutSecs int    `json:"timeout_secs"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	Quality       int    `json:"quality"`
	OutputDir     string `json:"output_dir"`
	Suffix        string `json:"suffix"`
}

// TranscodeConfig controls the final video render
type TranscodeConfig struct {
	CRF    int    `json:"crf"`
	Preset string `json:"preset"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Ranker: RankerConfig{
			ObjectMinConfidence: 0.2,
			ObjectMinAreaRatio:  0.01,
		},
		Edge: EdgeConfig{
			EdgeThreshold:      0.15,
			MinRegionAreaRatio: 0.005,
			MinAspect:          0.3,
			MaxAspect:          3.0,
			ThirdsWindow:       100,
		},
		Sampling: SamplingConfig{
			FrameCount: 10,
			Workers:    4,
		},
		Detect: DetectConfig{
			CascadePath: "",
			OllamaHost:  "",
			OllamaModel: "openbmb/minicpm-v4.5",
			TimeoutSecs: 300,
		},
		Output: OutputConfig{
			DefaultFormat: "jpg",
			Quality:       90,
			OutputDir:     "./output",
			Suffix:        "_reframed",
		},
		Transcode: TranscodeConfig{
			CRF:    23,
			Preset: "medium",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Ranker.ObjectMinConfidence < 0 || c.Ranker.ObjectMinConfidence > 1 {
		return fmt.Errorf("ranker.object_min_confidence must be between 0 and 1")
	}

	if c.Ranker.ObjectMinAreaRatio < 0 || c.Ranker.ObjectMinAreaRatio > 1 {
		return fmt.Errorf("ranker.object_min_area_ratio must be between 0 and 1")
	}

	if c.Edge.EdgeThreshold < 0 || c.Edge.EdgeThreshold > 1 {
		return fmt.Errorf("edge.edge_threshold must be between 0 and 1")
	}

	if c.Edge.MinAspect <= 0 || c.Edge.MaxAspect < c.Edge.MinAspect {
		return fmt.Errorf("edge.min_aspect must be positive and not exceed edge.max_aspect")
	}

	if c.Sampling.FrameCount < 1 {
		return fmt.Errorf("sampling.frame_count must be at least 1")
	}

	if c.Sampling.Workers < 1 {
		return fmt.Errorf("sampling.workers must be at least 1")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Transcode.CRF < 0 || c.Transcode.CRF > 51 {
		return fmt.Errorf("transcode.crf must be between 0 and 51")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "reframe", "config.json")
}
