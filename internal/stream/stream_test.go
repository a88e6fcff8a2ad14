package stream_test

import (
	"testing"

	"github.com/rediscore/server/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(name, value string) stream.Field {
	return stream.Field{Name: []byte(name), Value: []byte(value)}
}

func TestAppendExplicitOrdering(t *testing.T) {
	s := stream.New()

	id, err := s.Append("1-1", []stream.Field{f("field", "v")})
	require.NoError(t, err)
	assert.Equal(t, "1-1", id.String())

	_, err = s.Append("1-1", []stream.Field{f("field", "v")})
	assert.ErrorIs(t, err, stream.ErrNotGreater)

	_, err = s.Append("0-0", []stream.Field{f("field", "v")})
	assert.ErrorIs(t, err, stream.ErrZero)

	id2, err := s.Append("1-2", []stream.Field{f("field", "v")})
	require.NoError(t, err)
	assert.Equal(t, "1-2", id2.String())
}

func TestSequenceAuto(t *testing.T) {
	s := stream.New()

	id, err := s.Append("5-*", nil)
	require.NoError(t, err)
	assert.Equal(t, "5-0", id.String())

	id, err = s.Append("5-*", nil)
	require.NoError(t, err)
	assert.Equal(t, "5-1", id.String())

	id, err = stream.New().Append("0-*", nil)
	require.NoError(t, err)
	assert.Equal(t, "0-1", id.String())
}

func TestRangeAndReadAfter(t *testing.T) {
	s := stream.New()
	ids := []string{"1-0", "1-1", "2-0", "3-0"}
	for _, id := range ids {
		_, err := s.Append(id, []stream.Field{f("f", "v")})
		require.NoError(t, err)
	}

	entries := s.Range(stream.Zero, stream.Max)
	require.Len(t, entries, 4)
	assert.Equal(t, "1-0", entries[0].ID.String())
	assert.Equal(t, "3-0", entries[3].ID.String())

	after, err := stream.ParseExplicit("1-1")
	require.NoError(t, err)
	next := s.ReadAfter(after)
	require.Len(t, next, 2)
	assert.Equal(t, "2-0", next[0].ID.String())
	assert.Equal(t, "3-0", next[1].ID.String())
}

func TestParseRangeBoundSentinels(t *testing.T) {
	lo, err := stream.ParseRangeBound("-", true)
	require.NoError(t, err)
	assert.Equal(t, stream.Zero, lo)

	hi, err := stream.ParseRangeBound("+", false)
	require.NoError(t, err)
	assert.Equal(t, stream.Max, hi)
}
