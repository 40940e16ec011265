package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func themeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "theme.txt")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPhase1NoFilter(t *testing.T) {
	theme := themeFile(t, "Hi")
	code, out, errOut := runCLI(t, `{"title":"T","sections":[]}`, "--seed", "42", "--themepath", theme)

	require.Equal(t, 0, code, errOut)
	want := `{
  "seed": 42,
  "theme": "Hi",
  "title": "T",
  "sections": []
}
`
	assert.Equal(t, want, out)
}

func TestPhase1Filter(t *testing.T) {
	theme := themeFile(t, "Dragons.\n")
	in := `{"input_title":"WW","sections":[{"section":1,"x":"a"},{"section":2,"x":"b"},{"y":"z"},{"section":4}]}`
	code, out, errOut := runCLI(t, in, "--seed=7", "--themepath", theme, "--section", "2-4")

	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, `{"seed":7,"theme":"Dragons.\n","input_title":"WW","sections":[{"section":2,"x":"b"},{"section":4}]}`, out)
}

func TestPhase1EmptySectionFlagSelectsNothing(t *testing.T) {
	theme := themeFile(t, "x")
	code, out, _ := runCLI(t, `{"sections":[{"section":1}]}`, "--seed", "1", "--themepath", theme, "--section", "")

	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"seed":1,"theme":"x","sections":[]}`, out)
}

func TestPhase1Errors(t *testing.T) {
	theme := themeFile(t, "x")
	cases := []struct {
		name   string
		stdin  string
		args   []string
		code   int
		stderr string
	}{
		{"bad json", `{"a":`, []string{"--seed", "1", "--themepath", theme}, 1, "Error: failed to parse JSON from STDIN"},
		{"not an object", `[1]`, []string{"--seed", "1", "--themepath", theme}, 1, "Error: failed to parse JSON from STDIN"},
		{"missing theme", `{}`, []string{"--seed", "1", "--themepath", filepath.Join(t.TempDir(), "nope.txt")}, 1, "Error: could not read theme file"},
		{"bad section", `{}`, []string{"--seed", "1", "--themepath", theme, "--section", "3-b"}, 1, `Error: Invalid section range: "3-b"`},
		{"bad shape", `{"sections":"x"}`, []string{"--seed", "1", "--themepath", theme}, 1, "Error while building output structure: "},
		{"missing seed", `{}`, []string{"--themepath", theme}, 2, "seed"},
		{"non-integer seed", `{}`, []string{"--seed", "abc", "--themepath", theme}, 2, "Error:"},
		{"stray argument", `{}`, []string{"--seed", "1", "--themepath", theme, "extra"}, 2, "Error:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tc.stdin, tc.args...)
			assert.Equal(t, tc.code, code)
			assert.Empty(t, out, "no partial output on error")
			assert.Contains(t, errOut, tc.stderr)
		})
	}
}
