package filetype

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"data.json":  []byte(`{"sections":[{"section":1}]}`),
		"theme.txt":  []byte("Dragons soar over the vocabulary canyon.\n"),
		"image.png":  {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
		"binary.bin": {0x00, 0x01, 0x02, 0xff, 0xfe, 0x00},
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0o644))
	}

	d := New()

	info, err := d.Detect(filepath.Join(dir, "data.json"))
	require.NoError(t, err)
	assert.True(t, info.IsJSON)
	assert.True(t, info.IsText)

	info, err = d.Detect(filepath.Join(dir, "theme.txt"))
	require.NoError(t, err)
	assert.False(t, info.IsJSON)
	assert.True(t, info.IsText)

	info, err = d.Detect(filepath.Join(dir, "image.png"))
	require.NoError(t, err)
	assert.False(t, info.IsText)
	assert.Equal(t, "image/png", info.MIMEType)

	_, err = d.RequireText(filepath.Join(dir, "binary.bin"))
	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "text", ue.Want)

	_, err = d.Detect(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDetectBytes(t *testing.T) {
	d := New()
	assert.True(t, d.DetectBytes([]byte(`[1,2,3]`)).IsJSON)
	assert.True(t, d.DetectBytes([]byte("héllo wörld")).IsText)
}
