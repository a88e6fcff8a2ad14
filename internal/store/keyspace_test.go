package store_test

import (
	"testing"

	"github.com/rediscore/server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	ks := store.New()
	ks.Set("foo", store.NewString([]byte("bar")))

	v, ok := ks.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), v.AsBytes())
}

func TestDeleteAndExists(t *testing.T) {
	ks := store.New()
	ks.Set("k", store.NewString([]byte("v")))
	assert.True(t, ks.Exists("k"))
	assert.True(t, ks.Delete("k"))
	assert.False(t, ks.Exists("k"))
	assert.False(t, ks.Delete("k"))
}

func TestTypeTag(t *testing.T) {
	ks := store.New()
	assert.Equal(t, "none", ks.Type("missing"))

	ks.Set("s", store.NewString([]byte("x")))
	assert.Equal(t, "string", ks.Type("s"))

	ks.Set("l", store.NewList())
	assert.Equal(t, "list", ks.Type("l"))
}

func TestKeysWildcardOnly(t *testing.T) {
	ks := store.New()
	ks.Set("a", store.NewString([]byte("1")))
	ks.Set("b", store.NewString([]byte("2")))

	keys := ks.Keys("*")
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	assert.Empty(t, ks.Keys("a*"))
}

func TestExpiryLazyDeletion(t *testing.T) {
	ks := store.New()
	ks.Set("k", store.NewString([]byte("v")))
	ks.SetExpiry("k", 1) // already in the past relative to real now()

	_, ok := ks.Get("k")
	assert.False(t, ok)
	assert.NotContains(t, ks.Keys("*"), "k")
}

func TestPersistClearsExpiry(t *testing.T) {
	ks := store.New()
	ks.Set("k", store.NewString([]byte("v")))
	ks.SetExpiry("k", 99999999999999)

	assert.Equal(t, int64(1), ks.Persist("k"))
	_, status := ks.Expiry("k")
	assert.Equal(t, store.ExpNoTimeout, status)
	assert.Equal(t, int64(0), ks.Persist("k"))
}

func TestWrongTypeLeavesStateUnchanged(t *testing.T) {
	ks := store.New()
	ks.Set("k", store.NewString([]byte("v")))

	_, err := ks.GetList("k", true)
	assert.ErrorIs(t, err, store.ErrWrongType)

	v, ok := ks.Get("k")
	require.True(t, ok)
	assert.Equal(t, store.KindString, v.Kind)
}
