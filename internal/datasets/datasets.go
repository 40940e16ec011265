// Package datasets resolves worksheet source datasets from reference data on disk.
package datasets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/local/homeworkhero/internal/config"
	"github.com/local/homeworkhero/internal/filetype"
	"github.com/local/homeworkhero/internal/worksheet"
)

// DatasetError reports a dataset that could not be resolved or parsed.
type DatasetError struct {
	Name   string
	Path   string
	Reason string
	Err    error
}

func (e *DatasetError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DatasetError) Unwrap() error { return e.Err }

// Loader reads datasets below the directories named in a HeroConfig.
type Loader struct {
	cfg      *config.HeroConfig
	detector *filetype.Detector
}

func NewLoader(cfg *config.HeroConfig) *Loader {
	return &Loader{cfg: cfg, detector: filetype.New()}
}

// Path resolves a dataset name to <source_datasets>/<name>.json. Names may
// not contain path separators or dot segments.
func (l *Loader) Path(name string) (string, error) {
	if l.cfg.SourceDatasets == "" {
		return "", &DatasetError{Name: name, Reason: fmt.Sprintf("config at '%s' missing 'source_datasets' key", l.cfg.Path())}
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", &DatasetError{Name: name, Reason: fmt.Sprintf("invalid dataset name %q", name)}
	}
	return filepath.Join(l.cfg.SourceDatasets, name+".json"), nil
}

// Load reads and parses the named dataset.
func (l *Loader) Load(name string) (*worksheet.Document, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return nil, &DatasetError{Name: name, Path: path, Reason: "dataset file not found"}
	}
	if _, err := l.detector.RequireText(path); err != nil {
		return nil, &DatasetError{Name: name, Path: path, Reason: "dataset is not a JSON file", Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &DatasetError{Name: name, Path: path, Reason: "failed to open dataset", Err: err}
	}
	defer f.Close()
	doc, err := worksheet.Decode(f)
	if err != nil {
		return nil, &DatasetError{Name: name, Path: path, Reason: "failed to parse dataset JSON", Err: err}
	}
	log.Debug().Str("dataset", name).Str("path", path).Int("keys", doc.Len()).Msg("dataset loaded")
	return doc, nil
}

// SourceDatasets reads the catalog of data sources from
// <reference_data>/source_datasets.json. The file may hold a list of
// entries or a single entry. Entries without a short_name are skipped; a
// missing name is derived from short_name.
func SourceDatasets(cfg *config.HeroConfig) ([]config.Option, error) {
	path := cfg.SourceDatasetsFile()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &DatasetError{Path: path, Reason: "failed to read source datasets", Err: err}
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &DatasetError{Path: path, Reason: "failed to parse source datasets", Err: err}
	}
	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, &DatasetError{Path: path, Reason: "source_datasets.json must be a list or object"}
	}

	out := make([]config.Option, 0, len(items))
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		short, _ := entry["short_name"].(string)
		if short == "" {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			name = DisplayName(short)
		}
		out = append(out, config.Option{ID: short, Name: name})
	}
	return out, nil
}

// DisplayName turns a short name like "wordly_wise_b" into "Wordly Wise B".
func DisplayName(short string) string {
	// Casers keep state; one per call.
	return cases.Title(language.Und).String(strings.ReplaceAll(short, "_", " "))
}
