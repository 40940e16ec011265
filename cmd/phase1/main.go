// Command phase1 reads a worksheet JSON document on stdin, stamps it with a
// seed and theme text, optionally narrows its sections, and writes the
// result to stdout as indented JSON.
//
//	phase1 --seed 42 --themepath themes/wof.txt --section 1,3-5 < ww3.json
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/homeworkhero/internal/config"
	logpkg "github.com/local/homeworkhero/internal/logger"
	"github.com/local/homeworkhero/internal/selector"
	"github.com/local/homeworkhero/internal/themes"
	"github.com/local/homeworkhero/internal/worksheet"
)

// stageError carries the prefix the CLI prints for a failure. lead
// replaces the usual "Error: " at the start of the line.
type stageError struct {
	lead   string
	prefix string
	err    error
}

func (e *stageError) Error() string { return e.prefix + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func (e *stageError) line() string {
	if e.lead == "" {
		return "Error: " + e.Error()
	}
	return e.lead + e.Error()
}

type options struct {
	seed      int64
	themePath string
	section   string
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "phase1",
		Short: "Augment and optionally filter a Wordly Wise-style JSON structure",
		Long: `Reads a worksheet JSON object from STDIN and writes it to STDOUT with a
root-level "seed", a root-level "theme" holding the text of --themepath, and
the "sections" array optionally narrowed by --section.

--section accepts a single id ("3"), a list ("1,3,5"), ranges ("2-4") or any
combination ("1,3-5,7"). Omit it to keep every section.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *string
			if cmd.Flags().Changed("section") {
				filter = &opts.section
			}
			return run(stdin, stdout, opts.seed, opts.themePath, filter)
		},
	}
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Integer seed value to include as the root-level 'seed' key.")
	cmd.Flags().StringVar(&opts.themePath, "themepath", "", "Path to a text file whose contents are stored under the root-level 'theme' key.")
	cmd.Flags().StringVar(&opts.section, "section", "", "Optional section filter, e.g. '3', '1,3,5', '2-4' or '1,3-5,7'. Omit to include all sections.")
	_ = cmd.MarkFlagRequired("seed")
	_ = cmd.MarkFlagRequired("themepath")
	return cmd
}

func run(stdin io.Reader, stdout io.Writer, seed int64, themePath string, sectionSpec *string) error {
	doc, err := worksheet.Decode(stdin)
	if err != nil {
		return &stageError{prefix: "failed to parse JSON from STDIN: ", err: err}
	}

	theme, err := themes.ReadText(themePath)
	if err != nil {
		return &stageError{err: err}
	}

	var filter selector.Set
	if sectionSpec != nil {
		if filter, err = selector.Parse(*sectionSpec); err != nil {
			return &stageError{err: err}
		}
	}

	out, err := worksheet.Transform(doc, worksheet.Metadata{Seed: seed, Theme: theme}, filter)
	if err != nil {
		return &stageError{lead: "Error while building output structure: ", err: err}
	}
	log.Debug().Int64("seed", seed).Str("theme_path", themePath).Str("sections", filter.String()).Bool("filtered", filter != nil).Msg("worksheet transformed")
	if err := worksheet.Encode(stdout, out); err != nil {
		return &stageError{prefix: "failed to write output: ", err: err}
	}
	return nil
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfgpkg.LoadDotEnv()
	cfg := cfgpkg.FromEnv()
	level := os.Getenv("PHASE1_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	_ = logpkg.Init(logpkg.Options{Level: level, Pretty: cfg.Logging.Pretty, Console: stderr, Service: "homeworkhero-cli"})
	defer logpkg.Close()

	cmd := newRootCmd(stdin, stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		// Flag and usage problems exit 2, failures while running exit 1.
		var se *stageError
		if !errors.As(err, &se) {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return 2
		}
		fmt.Fprintln(stderr, se.line())
		return 1
	}
	return 0
}
