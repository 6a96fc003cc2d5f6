// Package tabular decodes delimited text exports into ordered rows of named
// string fields. It is deliberately tolerant: quoting errors common in
// spreadsheet exports are recovered best-effort rather than rejected, so the
// only hard failure is an unreadable source.
package tabular

import (
	"io"
	"strings"

	"github.com/parkgrove/clubsync/pkg/errors"
)

// Row is one decoded data row. Field order follows the header row; lookups
// are by header name. Line is the physical row number in the source file,
// where the header occupies row 1 and the first data row is row 2.
type Row struct {
	Line    int
	Headers []string
	fields  map[string]string
}

// Get returns the value for the named column, or the empty string when the
// column is absent from the row.
func (r Row) Get(name string) string {
	return r.fields[name]
}

// Has reports whether the row carries the named column.
func (r Row) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Values returns the row's values in header order.
func (r Row) Values() []string {
	values := make([]string, len(r.Headers))
	for i, h := range r.Headers {
		values[i] = r.fields[h]
	}
	return values
}

// Decoder decodes delimited text into rows.
type Decoder struct {
	comma rune
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDelimiter sets the field delimiter. The default is a comma.
func WithDelimiter(comma rune) DecoderOption {
	return func(d *Decoder) {
		d.comma = comma
	}
}

// NewDecoder creates a Decoder with options applied.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{comma: ','}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads the whole source and returns its data rows. The header row is
// consumed, not emitted. Blank lines are dropped. Malformed quoting never
// produces an error; fields are recovered the way common spreadsheet tools
// would read them.
func (d *Decoder) Decode(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", "", err)
	}

	records := scan(string(data), d.comma)

	var headers []string
	var rows []Row
	for _, rec := range records {
		if blank(rec.fields) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(rec.fields))
			for i, f := range rec.fields {
				headers[i] = strings.TrimSpace(f)
			}
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec.fields) {
				fields[h] = rec.fields[i]
			} else {
				fields[h] = ""
			}
		}
		rows = append(rows, Row{Line: rec.line, Headers: headers, fields: fields})
	}

	return rows, nil
}

// record is a raw scanned record before header mapping.
type record struct {
	line   int
	fields []string
}

// blank reports whether a record is an empty line after trimming.
func blank(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}

// scan splits raw text into records, honoring quoted fields that may contain
// the delimiter, doubled-quote escapes, and embedded newlines. CRLF and LF
// line endings are both accepted. A quote opening mid-field or an unclosed
// quote at EOF is recovered, not rejected.
func scan(data string, comma rune) []record {
	var records []record

	line := 1
	recordLine := 1
	var fields []string
	var field strings.Builder
	inQuotes := false
	started := false // true once the current record has any content

	flushField := func() {
		fields = append(fields, field.String())
		field.Reset()
	}
	flushRecord := func() {
		flushField()
		records = append(records, record{line: recordLine, fields: fields})
		fields = nil
		started = false
	}

	runes := []rune(data)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if !started {
			recordLine = line
			started = true
		}

		switch {
		case inQuotes:
			switch c {
			case '"':
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			case '\r':
				// Normalize CRLF inside quotes to LF; keep a lone CR.
				if i+1 < len(runes) && runes[i+1] == '\n' {
					field.WriteRune('\n')
					line++
					i++
				} else {
					field.WriteRune('\r')
				}
			case '\n':
				field.WriteRune('\n')
				line++
			default:
				field.WriteRune(c)
			}
		case c == '"':
			if field.Len() == 0 {
				inQuotes = true
			} else {
				// Bare quote mid-field: keep it literally.
				field.WriteRune('"')
			}
		case c == comma:
			flushField()
		case c == '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			line++
			flushRecord()
		case c == '\n':
			line++
			flushRecord()
		default:
			field.WriteRune(c)
		}
	}

	// Unterminated final record, including an unclosed quote at EOF.
	if started || field.Len() > 0 || len(fields) > 0 {
		flushRecord()
	}

	return records
}
