package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

const maxEventSize = 1 << 20

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// ScanEvents reads a server-sent event stream and calls fn with the payload
// of every "data:" line. Comment, event and id lines are skipped. Scanning
// stops at the "[DONE]" marker, at EOF, when fn returns false, or when ctx
// is cancelled.
func ScanEvents(ctx context.Context, r io.Reader, fn func(data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimSpace(line[len(dataPrefix):])
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneMarker) {
			return nil
		}
		if !fn(data) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
