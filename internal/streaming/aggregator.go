// Package streaming re-segments provider deltas into client-facing chunks
// and encodes them on the wire.
package streaming

import (
	"context"
	"strings"
	"unicode/utf8"

	"chatbridge/internal/core"
)

// Policy controls when buffered deltas are flushed as a chunk.
type Policy struct {
	// BatchSize flushes after every BatchSize deltas. Values below 1 mean 1.
	BatchSize int
	// Terminators flush early when a delta is exactly one of these characters.
	Terminators string
	// EmptyFinal emits an empty final chunk when the stream ends with nothing
	// buffered, so every stream carries an explicit terminal chunk.
	EmptyFinal bool
}

// DefaultPolicy flushes every 5 deltas or on a lone sentence terminator.
func DefaultPolicy() Policy {
	return Policy{BatchSize: 5, Terminators: ".!?", EmptyFinal: true}
}

// Aggregator accumulates deltas for a single stream. It is not safe for
// concurrent use; Aggregate drives one per stream.
type Aggregator struct {
	policy Policy
	buf    strings.Builder
	count  int
	index  int
	done   bool
}

func NewAggregator(policy Policy) *Aggregator {
	if policy.BatchSize < 1 {
		policy.BatchSize = 1
	}
	return &Aggregator{policy: policy}
}

// Push consumes one delta and returns the chunks it caused, oldest first.
// A delta carrying an error flushes the buffer and terminates the stream
// with a final error chunk. Pushes after termination are ignored.
func (a *Aggregator) Push(d core.Delta) []core.StreamChunk {
	if a.done {
		return nil
	}
	if d.Err != nil {
		var out []core.StreamChunk
		if a.buf.Len() > 0 {
			out = append(out, a.emit(false, nil))
		}
		a.buf.WriteString(core.UserMessage(d.Err))
		out = append(out, a.emit(true, d.Err))
		a.done = true
		return out
	}

	a.buf.WriteString(d.Text)
	a.count++
	if a.count%a.policy.BatchSize == 0 || a.isTerminator(d.Text) {
		return []core.StreamChunk{a.emit(false, nil)}
	}
	return nil
}

// Finish ends the stream. It returns the final chunk, if any.
func (a *Aggregator) Finish() (core.StreamChunk, bool) {
	if a.done {
		return core.StreamChunk{}, false
	}
	a.done = true
	if a.buf.Len() == 0 && !a.policy.EmptyFinal {
		return core.StreamChunk{}, false
	}
	return a.emit(true, nil), true
}

// Count returns the number of deltas consumed so far.
func (a *Aggregator) Count() int { return a.count }

func (a *Aggregator) isTerminator(text string) bool {
	if utf8.RuneCountInString(text) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text)
	return strings.ContainsRune(a.policy.Terminators, r)
}

func (a *Aggregator) emit(final bool, err error) core.StreamChunk {
	chunk := core.StreamChunk{
		Text:       a.buf.String(),
		Index:      a.index,
		DeltaCount: a.count,
		IsFinal:    final,
		Err:        err,
	}
	a.buf.Reset()
	a.index++
	return chunk
}

// Aggregate consumes deltas until the channel closes, an error delta arrives,
// or ctx is cancelled, and delivers the resulting chunks. The returned
// channel is closed when aggregation stops.
func Aggregate(ctx context.Context, deltas <-chan core.Delta, policy Policy) <-chan core.StreamChunk {
	out := make(chan core.StreamChunk)
	go func() {
		defer close(out)
		agg := NewAggregator(policy)

		send := func(chunks ...core.StreamChunk) bool {
			for _, c := range chunks {
				select {
				case out <- c:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deltas:
				if !ok {
					// adapters close without an error delta when cancelled
					if ctx.Err() != nil {
						return
					}
					if final, ok := agg.Finish(); ok {
						send(final)
					}
					return
				}
				if !send(agg.Push(d)...) || d.Err != nil {
					return
				}
			}
		}
	}()
	return out
}

// Single returns a closed channel holding one final chunk for err. It is used
// when a stream fails before any provider call is made.
func Single(err error) <-chan core.StreamChunk {
	out := make(chan core.StreamChunk, 1)
	out <- core.StreamChunk{Text: core.UserMessage(err), IsFinal: true, Err: err}
	close(out)
	return out
}
