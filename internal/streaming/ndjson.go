package streaming

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"chatbridge/internal/core"
)

// ContentType is the media type of an NDJSON chunk stream.
const ContentType = "application/x-ndjson"

// Line is the wire shape of one streamed chunk.
type Line struct {
	Chunk      string `json:"chunk"`
	Index      int    `json:"index"`
	TokenCount int    `json:"token_count"`
	IsFinal    bool   `json:"is_final"`
	Error      string `json:"error,omitempty"`
}

// LineFromChunk converts a chunk to its wire shape.
func LineFromChunk(c core.StreamChunk) Line {
	l := Line{
		Chunk:      c.Text,
		Index:      c.Index,
		TokenCount: c.DeltaCount,
		IsFinal:    c.IsFinal,
	}
	if c.Err != nil {
		l.Error = c.Err.Error()
	}
	return l
}

// Encoder writes chunks as newline-delimited JSON, flushing after each line
// when the writer supports it.
type Encoder struct {
	enc     *json.Encoder
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{enc: json.NewEncoder(w)}
	e.enc.SetEscapeHTML(false)
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one chunk.
func (e *Encoder) Encode(c core.StreamChunk) error {
	if err := e.enc.Encode(LineFromChunk(c)); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Decoder reads a chunk stream produced by Encoder.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Decoder{scanner: s}
}

// Next returns the next line. It returns io.EOF at the end of the stream.
func (d *Decoder) Next() (Line, error) {
	for d.scanner.Scan() {
		raw := d.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l Line
		if err := json.Unmarshal(raw, &l); err != nil {
			return Line{}, fmt.Errorf("malformed chunk line: %w", err)
		}
		return l, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Line{}, err
	}
	return Line{}, io.EOF
}

// ErrStreamFailed reports a stream whose final line carried an error.
var ErrStreamFailed = errors.New("stream failed")
