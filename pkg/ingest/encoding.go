package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	sniffLen      = 512
	checkLen      = 1024
	nullThreshold = 0.15
)

// TextDecoder turns raw input bytes into UTF-8 text.
type TextDecoder interface {
	// Decode detects the encoding of content and converts it to UTF-8. The
	// returned name is the canonical encoding name ("utf-8", "windows-1252", ...).
	Decode(content []byte) (utf8Content []byte, encodingName string, err error)

	// IsBinary reports whether content looks like binary data rather than text.
	IsBinary(content []byte) bool
}

type charsetDecoder struct {
	fallback string
}

// NewCharsetDecoder returns a TextDecoder backed by golang.org/x/net/html/charset.
// A BOM or unambiguous UTF-8 always wins; otherwise fallback (e.g. "latin1") is
// used when it names a known encoding, and detection's best guess when it doesn't.
func NewCharsetDecoder(fallback string) TextDecoder {
	return &charsetDecoder{fallback: fallback}
}

func (d *charsetDecoder) Decode(content []byte) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(content, "text/plain")
	if !certain && d.fallback != "" && !utf8.Valid(content) {
		if e, n := charset.Lookup(d.fallback); e != nil {
			enc, name = e, n
		}
	}
	if name == "" {
		name = "utf-8"
	}
	if enc == nil || name == "utf-8" {
		return bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")), name, nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), enc.NewDecoder()))
	if err != nil {
		return content, name, fmt.Errorf("failed to convert from '%s': %w", name, err)
	}
	return out, name, nil
}

// IsBinary sniffs the MIME type of the first bytes and, for text-like types,
// counts NUL bytes.
func (d *charsetDecoder) IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	contentType := http.DetectContentType(content[:min(len(content), sniffLen)])
	if !isTextMIME(contentType) {
		return true
	}
	window := content[:min(len(content), checkLen)]
	nulls := bytes.Count(window, []byte{0x00})
	return float64(nulls)/float64(len(window)) > nullThreshold
}

func isTextMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", mimeType == "application/octet-stream":
		return true
	case strings.HasSuffix(mimeType, "+json"):
		return true
	}
	return false
}
