package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsText      bool
	IsJSON      bool
	Description string
}

// UnsupportedError is returned when a file's content does not match what the caller expects.
type UnsupportedError struct {
	Path     string
	MIMEType string
	Want     string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: expected %s content, detected %s", e.Path, e.Want, e.MIMEType)
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := classify(mtype)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// DetectBytes classifies in-memory content.
func (d *Detector) DetectBytes(data []byte) *FileTypeInfo {
	return classify(mimetype.Detect(data))
}

// RequireText fails unless the file holds text (JSON counts as text).
func (d *Detector) RequireText(filePath string) (*FileTypeInfo, error) {
	info, err := d.Detect(filePath)
	if err != nil {
		return nil, err
	}
	if !info.IsText {
		return info, &UnsupportedError{Path: filePath, MIMEType: info.MIMEType, Want: "text"}
	}
	return info, nil
}

// classify walks the mimetype hierarchy: application/json descends from
// text/plain, so every textual format reports IsText. Large JSON files are
// only sniffed on their prefix and may come back as plain text; callers
// that need JSON still parse the content.
func classify(mtype *mimetype.MIME) *FileTypeInfo {
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/json"):
			info.IsJSON = true
			info.IsText = true
		case m.Is("text/plain"):
			info.IsText = true
		}
	}
	switch {
	case info.IsJSON:
		info.Description = "JSON document"
	case info.IsText:
		info.Description = "Plain text file"
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
	return info
}
