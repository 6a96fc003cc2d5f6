package tabular

import (
	"io"
	"strings"

	"github.com/parkgrove/clubsync/pkg/errors"
)

// Encoder writes rows back out as delimited text. It exists for artifact
// export and to keep decoding honest: encoding then decoding any well-formed
// rows must reproduce the same values.
type Encoder struct {
	comma rune
}

// NewEncoder creates an Encoder with options applied.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{comma: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncodeDelimiter sets the field delimiter. The default is a comma.
func WithEncodeDelimiter(comma rune) EncoderOption {
	return func(e *Encoder) {
		e.comma = comma
	}
}

// Encode writes a header row followed by one line per row, quoting fields
// that contain the delimiter, quotes, or newlines.
func (e *Encoder) Encode(w io.Writer, headers []string, rows []Row) error {
	var sb strings.Builder

	e.writeLine(&sb, headers)
	for _, row := range rows {
		values := make([]string, len(headers))
		for i, h := range headers {
			values[i] = row.Get(h)
		}
		e.writeLine(&sb, values)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.WrapIO("write", "", err)
	}
	return nil
}

func (e *Encoder) writeLine(sb *strings.Builder, values []string) {
	for i, v := range values {
		if i > 0 {
			sb.WriteRune(e.comma)
		}
		sb.WriteString(e.quote(v))
	}
	sb.WriteString("\n")
}

// quote wraps a value in quotes when it needs them, doubling embedded quotes.
func (e *Encoder) quote(v string) string {
	if !strings.ContainsAny(v, string(e.comma)+"\"\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
