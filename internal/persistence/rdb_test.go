package persistence_test

import (
	"bytes"
	"testing"

	"github.com/rediscore/server/internal/persistence"
	"github.com/rediscore/server/internal/store"
	"github.com/rediscore/server/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ks := store.New()
	ks.Set("greeting", store.NewString([]byte("Hello")))

	l := store.NewList()
	store.RPush(l.List, [][]byte{[]byte("apple"), []byte("banana")})
	ks.Set("fruits", l)

	s := store.NewStream()
	_, err := s.Strm.Append("1-0", []stream.Field{{Name: []byte("f1"), Value: []byte("v1")}})
	require.NoError(t, err)
	_, err = s.Strm.Append("2-0", []stream.Field{{Name: []byte("f2"), Value: []byte("v2")}})
	require.NoError(t, err)
	ks.Set("s", s)

	z := store.NewSortedSet()
	z.ZSet.Add("alice", 1.5)
	z.ZSet.Add("bob", 2.5)
	ks.Set("z", z)

	ks.Set("small", store.NewInteger(42))

	var buf bytes.Buffer
	require.NoError(t, persistence.Encode(&buf, ks))

	loaded := store.New()
	require.NoError(t, persistence.Decode(&buf, loaded))

	assert.Equal(t, 5, loaded.Len())

	v, ok := loaded.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "Hello", string(v.AsBytes()))

	fv, ok := loaded.Get("fruits")
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("apple"), []byte("banana")}, store.ToSlice(fv.List))

	sv, ok := loaded.Get("s")
	require.True(t, ok)
	entries := sv.Strm.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "1-0", entries[0].ID.String())
	assert.Equal(t, "2-0", entries[1].ID.String())

	zv, ok := loaded.Get("z")
	require.True(t, ok)
	score, ok := zv.ZSet.Score("alice")
	require.True(t, ok)
	assert.Equal(t, 1.5, score)

	nv, ok := loaded.Get("small")
	require.True(t, ok)
	assert.Equal(t, "42", string(nv.AsBytes()))
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	loaded := store.New()
	err := persistence.Decode(bytes.NewReader([]byte("NOTREDIS1")), loaded)
	assert.ErrorIs(t, err, persistence.ErrCorrupt)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(persistence.Magic)
	buf.WriteByte(0xAA)

	loaded := store.New()
	err := persistence.Decode(&buf, loaded)
	assert.ErrorIs(t, err, persistence.ErrCorrupt)
}

func TestExpiryPersists(t *testing.T) {
	ks := store.New()
	v := store.NewString([]byte("x"))
	v.ExpiresAtMs = 123456789
	ks.Set("k", v)

	var buf bytes.Buffer
	require.NoError(t, persistence.Encode(&buf, ks))

	loaded := store.New()
	require.NoError(t, persistence.Decode(&buf, loaded))

	lv, ok := loaded.Get("k")
	require.True(t, ok)
	assert.Equal(t, int64(123456789), lv.ExpiresAtMs)
}
