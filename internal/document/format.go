package document

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Format identifies how the editor interprets a stored document.
type Format string

const (
	FormatDocx   Format = "Docx"
	FormatDoc    Format = "Doc"
	FormatRtf    Format = "Rtf"
	FormatTxt    Format = "Txt"
	FormatWordML Format = "WordML"
	FormatHTML   Format = "Html"
)

// DefaultExtension is appended to new document names that carry no
// recognized extension.
const DefaultExtension = ".docx"

var ErrUnsupportedFormat = errors.New("document editor does not support this file format")

var formatsByExt = map[string]Format{
	".docx": FormatDocx,
	".docm": FormatDocx,
	".dotx": FormatDocx,
	".dotm": FormatDocx,
	".doc":  FormatDoc,
	".dot":  FormatDoc,
	".rtf":  FormatRtf,
	".txt":  FormatTxt,
	".xml":  FormatWordML,
	".html": FormatHTML,
}

// FormatOf maps a file extension (".docx", "DOCX", "docx") to its format.
func FormatOf(ext string) (Format, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return "", ErrUnsupportedFormat
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f, ok := formatsByExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// FormatOfName resolves the format from a document name's extension.
func FormatOfName(name string) (Format, error) {
	return FormatOf(path.Ext(strings.TrimSpace(name)))
}

// ContentType is the MIME type used when streaming a document back to a client.
func ContentType(f Format) string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatDoc:
		return "application/msword"
	case FormatRtf:
		return "application/rtf"
	case FormatTxt:
		return "text/plain; charset=utf-8"
	case FormatWordML:
		return "application/xml"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
