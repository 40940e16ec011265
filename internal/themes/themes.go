// Package themes reads theme text blobs that get stamped onto worksheets.
package themes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/local/homeworkhero/internal/filetype"
)

// ReadText returns the full contents of a theme file. The file must be
// UTF-8 text; the content is otherwise opaque.
func ReadText(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("could not read theme file %q: %w", path, err)
	}
	if st.IsDir() {
		return "", fmt.Errorf("could not read theme file %q: is a directory", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read theme file %q: %w", path, err)
	}
	if !utf8.Valid(b) {
		info := filetype.New().DetectBytes(b)
		return "", fmt.Errorf("could not read theme file %q: not valid UTF-8 (detected %s)", path, info.MIMEType)
	}
	return string(b), nil
}

// Dir resolves theme ids to "<dir>/<id>.txt".
type Dir string

// Path returns the file for id, rejecting ids that would escape the directory.
func (d Dir) Path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid theme id %q", id)
	}
	return filepath.Join(string(d), id+".txt"), nil
}

// Text reads the theme text for id.
func (d Dir) Text(id string) (string, error) {
	p, err := d.Path(id)
	if err != nil {
		return "", err
	}
	return ReadText(p)
}
