package core

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxTextBytes bounds document text read by ReadText.
const DefaultMaxTextBytes = 8 << 20

// ErrTextTooLarge is returned when document text exceeds the read limit.
var ErrTextTooLarge = errors.New("document text too large")

// Charsets lists the accepted charset names. The empty name sniffs a byte
// order mark and otherwise reads UTF-8.
var Charsets = []string{"utf-8", "shift_jis", "euc-jp", "iso-2022-jp"}

// decoderFor returns the transformer that turns charset-encoded bytes into
// UTF-8. Invalid input decodes to U+FFFD.
func decoderFor(charset string) (transform.Transformer, error) {
	name := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(charset)))
	switch name {
	case "", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "shiftjis", "sjis", "cp932", "windows31j":
		return japanese.ShiftJIS.NewDecoder(), nil
	case "eucjp":
		return japanese.EUCJP.NewDecoder(), nil
	case "iso2022jp", "jis":
		return japanese.ISO2022JP.NewDecoder(), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}

// NewTextReader wraps r so it yields UTF-8 text decoded from charset.
func NewTextReader(r io.Reader, charset string) (io.Reader, error) {
	t, err := decoderFor(charset)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, t), nil
}

// countingReader tracks how many source bytes have been consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadText reads document text in charset. At most limit source bytes are
// accepted; zero or less means DefaultMaxTextBytes.
func ReadText(r io.Reader, charset string, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxTextBytes
	}
	src := &countingReader{r: io.LimitReader(r, limit+1)}
	dec, err := NewTextReader(src, charset)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	if src.n > limit {
		return "", ErrTextTooLarge
	}
	return string(data), nil
}
