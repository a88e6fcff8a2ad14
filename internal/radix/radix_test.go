package radix_test

import (
	"testing"

	"github.com/rediscore/server/internal/radix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGet(t *testing.T) {
	tree := radix.New()

	require.True(t, tree.Insert([]byte("1-1"), "a"))
	require.True(t, tree.Insert([]byte("1-2"), "b"))
	require.True(t, tree.Insert([]byte("2-0"), "c"))
	require.False(t, tree.Insert([]byte("1-1"), "a-overwritten"))

	v, ok := tree.Get([]byte("1-1"))
	require.True(t, ok)
	assert.Equal(t, "a-overwritten", v)

	_, ok = tree.Get([]byte("9-9"))
	assert.False(t, ok)

	assert.Equal(t, 3, tree.Len())
}

func TestRangeOrder(t *testing.T) {
	tree := radix.New()
	ids := []string{"10-0", "2-0", "1-5", "1-0", "100-0"}
	for _, id := range ids {
		tree.Insert([]byte(id), id)
	}

	entries := tree.Range([]byte("0"), []byte("~"))
	require.Len(t, entries, len(ids))

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = string(e.Key)
	}
	assert.Equal(t, []string{"1-0", "1-5", "10-0", "100-0", "2-0"}, got)
}

func TestRangeBounds(t *testing.T) {
	tree := radix.New()
	for _, id := range []string{"1-0", "1-1", "1-2", "2-0"} {
		tree.Insert([]byte(id), id)
	}

	entries := tree.Range([]byte("1-1"), []byte("1-9"))
	require.Len(t, entries, 2)
	assert.Equal(t, "1-1", string(entries[0].Key))
	assert.Equal(t, "1-2", string(entries[1].Key))
}

func TestDelete(t *testing.T) {
	tree := radix.New()
	tree.Insert([]byte("foo"), 1)
	tree.Insert([]byte("foobar"), 2)

	require.True(t, tree.Delete([]byte("foo")))
	_, ok := tree.Get([]byte("foo"))
	assert.False(t, ok)

	v, ok := tree.Get([]byte("foobar"))
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.False(t, tree.Delete([]byte("missing")))
}
