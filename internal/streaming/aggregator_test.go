package streaming

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chatbridge/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func deltas(texts ...string) []core.Delta {
	out := make([]core.Delta, len(texts))
	for i, t := range texts {
		out[i] = core.Delta{Text: t}
	}
	return out
}

func feed(ds []core.Delta) <-chan core.Delta {
	ch := make(chan core.Delta, len(ds))
	for _, d := range ds {
		ch <- d
	}
	close(ch)
	return ch
}

func collect(ch <-chan core.StreamChunk) []core.StreamChunk {
	var out []core.StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func texts(chunks []core.StreamChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestAggregator_BatchAndTerminator(t *testing.T) {
	input := deltas("a", "b", "c", "d", "e", "f", ".")

	t.Run("without empty final", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.EmptyFinal = false
		chunks := collect(Aggregate(context.Background(), feed(input), policy))

		require.Len(t, chunks, 2)
		assert.Equal(t, []string{"abcde", "f."}, texts(chunks))
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 5, chunks[0].DeltaCount)
		assert.Equal(t, 1, chunks[1].Index)
		assert.Equal(t, 7, chunks[1].DeltaCount)
		assert.False(t, chunks[0].IsFinal)
		assert.False(t, chunks[1].IsFinal)
	})

	t.Run("with empty final", func(t *testing.T) {
		chunks := collect(Aggregate(context.Background(), feed(input), DefaultPolicy()))

		require.Len(t, chunks, 3)
		assert.Equal(t, []string{"abcde", "f.", ""}, texts(chunks))
		assert.True(t, chunks[2].IsFinal)
		assert.Equal(t, 2, chunks[2].Index)
	})
}

func TestAggregator_RemainderIsFinal(t *testing.T) {
	chunks := collect(Aggregate(context.Background(), feed(deltas("Hel", "lo", " there")), DefaultPolicy()))

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello there", chunks[0].Text)
	assert.True(t, chunks[0].IsFinal)
	assert.Equal(t, 3, chunks[0].DeltaCount)
}

func TestAggregator_TerminatorMustBeWholeDelta(t *testing.T) {
	policy := DefaultPolicy()
	policy.EmptyFinal = false
	chunks := collect(Aggregate(context.Background(), feed(deltas("Yes.", " No", "!")), policy))

	require.Len(t, chunks, 1)
	assert.Equal(t, "Yes. No!", chunks[0].Text)
	assert.False(t, chunks[0].IsFinal)
}

func TestAggregator_EmptyStream(t *testing.T) {
	chunks := collect(Aggregate(context.Background(), feed(nil), DefaultPolicy()))
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsFinal)
	assert.Empty(t, chunks[0].Text)

	policy := DefaultPolicy()
	policy.EmptyFinal = false
	assert.Empty(t, collect(Aggregate(context.Background(), feed(nil), policy)))
}

func TestAggregator_ErrorAfterTwoDeltas(t *testing.T) {
	streamErr := core.AsStreamError("deepseek", errors.New("connection reset"))
	input := append(deltas("Hel", "lo"), core.Delta{Err: streamErr})

	chunks := collect(Aggregate(context.Background(), feed(input), DefaultPolicy()))

	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello", chunks[0].Text)
	assert.False(t, chunks[0].IsFinal)
	assert.NoError(t, chunks[0].Err)

	assert.True(t, chunks[1].IsFinal)
	assert.Equal(t, "❌ DeepSeek stream error: connection reset", chunks[1].Text)
	assert.ErrorIs(t, chunks[1].Err, streamErr)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestAggregator_ErrorWithEmptyBuffer(t *testing.T) {
	input := append(deltas("a", "b", "c", "d", "e"), core.Delta{Err: errors.New("boom")})
	chunks := collect(Aggregate(context.Background(), feed(input), DefaultPolicy()))

	require.Len(t, chunks, 2)
	assert.Equal(t, "abcde", chunks[0].Text)
	assert.True(t, chunks[1].IsFinal)
	assert.Error(t, chunks[1].Err)
}

func TestAggregator_IgnoresInputAfterError(t *testing.T) {
	agg := NewAggregator(DefaultPolicy())
	agg.Push(core.Delta{Err: errors.New("boom")})

	assert.Nil(t, agg.Push(core.Delta{Text: "late"}))
	_, ok := agg.Finish()
	assert.False(t, ok)
}

// Exactly one final chunk, indexes consecutive from 0, and concatenated text
// equal to the input.
func TestAggregator_Invariants(t *testing.T) {
	inputs := [][]string{
		{},
		{"x"},
		{"a", "b", "c", "d", "e"},
		{"Hi", "!", " How", " are", " you", "?", " I", " am", " fine", "."},
		strings.Split("the quick brown fox jumps over the lazy dog", ""),
	}
	for _, in := range inputs {
		chunks := collect(Aggregate(context.Background(), feed(deltas(in...)), DefaultPolicy()))

		finals := 0
		var joined strings.Builder
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			if c.IsFinal {
				finals++
				assert.Equal(t, len(chunks)-1, i, "final chunk must be last")
			}
			joined.WriteString(c.Text)
		}
		assert.Equal(t, 1, finals)
		assert.Equal(t, strings.Join(in, ""), joined.String())
	}
}

func TestAggregate_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan core.Delta)
	out := Aggregate(ctx, in, DefaultPolicy())

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop after cancellation")
	}
}

func TestSingle(t *testing.T) {
	chunks := collect(Single(core.NewUnavailableError("unknown")))
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsFinal)
	assert.Equal(t, "❌ Provider 'unknown' not available", chunks[0].Text)
}
