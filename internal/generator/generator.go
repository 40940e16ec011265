// Package generator builds worksheets from a dataset, a theme and an optional section selector.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/homeworkhero/internal/datasets"
	"github.com/local/homeworkhero/internal/metrics"
	"github.com/local/homeworkhero/internal/selector"
	"github.com/local/homeworkhero/internal/worksheet"
)

// DatasetSource supplies parsed datasets by name.
type DatasetSource interface {
	Load(name string) (*worksheet.Document, error)
}

// ThemeSource supplies theme text by id.
type ThemeSource interface {
	Text(id string) (string, error)
}

// Request describes one worksheet build. A nil Sections means every section.
type Request struct {
	Dataset  string  `json:"dataset"`
	Theme    string  `json:"theme"`
	Seed     int64   `json:"seed"`
	Sections *string `json:"sections,omitempty"`
}

// Result is a built worksheet and its rendered form.
type Result struct {
	Document *worksheet.Document
	JSON     []byte
	Sections int
}

// ThemeError wraps a failure to read theme text.
type ThemeError struct {
	Theme string
	Err   error
}

func (e *ThemeError) Error() string { return fmt.Sprintf("theme %q: %v", e.Theme, e.Err) }
func (e *ThemeError) Unwrap() error { return e.Err }

type Builder struct {
	datasets DatasetSource
	themes   ThemeSource
}

func New(ds DatasetSource, ts ThemeSource) *Builder {
	return &Builder{datasets: ds, themes: ts}
}

// Build runs the whole pipeline and renders the worksheet as indented JSON.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := b.build(ctx, req)
	metrics.ObserveBuild(Outcome(err), time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("dataset", req.Dataset).Str("theme", req.Theme).Msg("worksheet build failed")
		return nil, err
	}
	metrics.ObserveSectionsKept(res.Sections)
	log.Info().
		Str("dataset", req.Dataset).
		Str("theme", req.Theme).
		Int64("seed", req.Seed).
		Int("sections", res.Sections).
		Dur("took", time.Since(start)).
		Msg("worksheet built")
	return res, nil
}

func (b *Builder) build(ctx context.Context, req Request) (*Result, error) {
	// Parse the selector first: a typo should not cost a dataset read.
	var filter selector.Set
	if req.Sections != nil {
		var err error
		if filter, err = selector.Parse(*req.Sections); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := b.datasets.Load(req.Dataset)
	if err != nil {
		return nil, err
	}
	theme, err := b.themes.Text(req.Theme)
	if err != nil {
		return nil, &ThemeError{Theme: req.Theme, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := worksheet.Transform(doc, worksheet.Metadata{Seed: req.Seed, Theme: theme}, filter)
	if err != nil {
		return nil, err
	}
	sections, err := worksheet.Sections(out)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := worksheet.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode worksheet: %w", err)
	}
	return &Result{Document: out, JSON: buf.Bytes(), Sections: len(sections)}, nil
}

// Outcome labels an error for metrics and job status.
func Outcome(err error) string {
	var (
		pe *selector.ParseError
		se *worksheet.ShapeError
		de *datasets.DatasetError
		te *ThemeError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &se):
		return "shape_error"
	case errors.As(err, &de):
		return "dataset_error"
	case errors.As(err, &te):
		return "theme_error"
	default:
		return "error"
	}
}
