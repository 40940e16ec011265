package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// HeroConfigEnv names the variable holding the path of the data config file.
const HeroConfigEnv = "HOMEWORK_HERO_CONFIG_PATH"

// HeroConfig locates reference data on disk.
type HeroConfig struct {
	ReferenceData  string `json:"reference_data"`
	SourceDatasets string `json:"source_datasets"`
	ThemesDir      string `json:"themes_dir,omitempty"`

	path string
}

// ConfigError reports an unusable data config file.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("config %s='%s': %s: %v", HeroConfigEnv, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s='%s': %s", HeroConfigEnv, e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadHeroConfig reads the JSON file at path. reference_data is required;
// source_datasets is optional here and checked by the dataset loader.
func LoadHeroConfig(path string) (*HeroConfig, error) {
	if path == "" {
		return nil, &ConfigError{Reason: HeroConfigEnv + " is not set."}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "failed to load", Err: err}
	}
	var hc HeroConfig
	if err := json.Unmarshal(b, &hc); err != nil {
		return nil, &ConfigError{Path: path, Reason: "failed to load", Err: err}
	}
	if hc.ReferenceData == "" {
		return nil, &ConfigError{Path: path, Reason: "missing 'reference_data'"}
	}
	hc.path = path
	return &hc, nil
}

// Path returns the file the config was read from.
func (h *HeroConfig) Path() string { return h.path }

// SourceDatasetsFile is the catalog of data sources shown in the UI.
func (h *HeroConfig) SourceDatasetsFile() string {
	return filepath.Join(h.ReferenceData, "source_datasets.json")
}

// ThemeDir is where "<theme id>.txt" files live. Defaults to <reference_data>/themes.
func (h *HeroConfig) ThemeDir() string {
	if h.ThemesDir != "" {
		return h.ThemesDir
	}
	return filepath.Join(h.ReferenceData, "themes")
}
