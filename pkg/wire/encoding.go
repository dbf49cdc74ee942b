package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is the byte encoding used for the text fields of a process
// variable (string values, unit, enum strings).
type Encoding struct {
	name string
	enc  encoding.Encoding
	raw  bool
}

var (
	// UTF8 is the default text encoding.
	UTF8 = &Encoding{name: "UTF-8", enc: unicode.UTF8}

	// RawBytes accepts only text that is already byte encoded and performs
	// no conversion.
	RawBytes = &Encoding{name: "raw", raw: true}
)

// LookupEncoding returns the encoding registered under an IANA name or alias
// ("utf-8", "latin1", "windows-1252", ...). The names "raw" and "none"
// select RawBytes.
func LookupEncoding(name string) (*Encoding, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "raw", "none", "bytes":
		return RawBytes, nil
	case "utf-8", "utf8":
		return UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	// ianaindex knows some names it has no implementation for.
	if enc == nil {
		return nil, fmt.Errorf("%w: %q is not supported", ErrUnknownEncoding, name)
	}
	if enc == unicode.UTF8 {
		return UTF8, nil
	}

	// Prefer the MIME name (ISO-8859-1) over the IANA registry name
	// (ISO_8859-1:1987).
	canonical, err := ianaindex.MIME.Name(enc)
	if err != nil || canonical == "" {
		if canonical, err = ianaindex.IANA.Name(enc); err != nil {
			canonical = name
		}
	}
	return &Encoding{name: canonical, enc: enc}, nil
}

// Name returns the canonical encoding name.
func (e *Encoding) Name() string {
	return e.name
}

// String returns the encoding name.
func (e *Encoding) String() string {
	return e.name
}

// IsRaw reports whether the encoding requires pre-encoded bytes.
func (e *Encoding) IsRaw() bool {
	return e.raw
}

// Encode converts text to its byte form.
func (e *Encoding) Encode(s string) ([]byte, error) {
	if e.raw {
		return nil, fmt.Errorf("%w: text %q given where raw bytes are required", ErrEncoding, s)
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrEncoding)
	}
	if e == UTF8 {
		return []byte(s), nil
	}
	b, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot represent %q in %s: %v", ErrEncoding, s, e.name, err)
	}
	return b, nil
}

// Decode converts the byte form back to text. Invalid byte sequences fail
// instead of being replaced.
func (e *Encoding) Decode(b []byte) (string, error) {
	if e.raw {
		return "", fmt.Errorf("%w: raw bytes cannot be decoded to text", ErrEncoding)
	}
	if e == UTF8 {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: invalid UTF-8 byte sequence", ErrEncoding)
		}
		return string(b), nil
	}
	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: invalid %s byte sequence: %v", ErrEncoding, e.name, err)
	}
	// x/text decoders substitute U+FFFD for undefined bytes.
	if strings.ContainsRune(string(out), utf8.RuneError) {
		return "", fmt.Errorf("%w: invalid %s byte sequence", ErrEncoding, e.name)
	}
	return string(out), nil
}
