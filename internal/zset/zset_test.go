package zset_test

import (
	"testing"

	"github.com/rediscore/server/internal/zset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddScoreRank(t *testing.T) {
	z := zset.New()
	z.Add("b", 2)
	z.Add("a", 1)
	z.Add("c", 3)

	score, ok := z.Score("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, score)

	assert.Equal(t, 0, z.Rank("a"))
	assert.Equal(t, 1, z.Rank("b"))
	assert.Equal(t, 2, z.Rank("c"))
	assert.Equal(t, 3, z.Card())
}

func TestAddReplacesScore(t *testing.T) {
	z := zset.New()
	z.Add("a", 1)
	z.Add("a", 5)

	score, ok := z.Score("a")
	require.True(t, ok)
	assert.Equal(t, 5.0, score)
	assert.Equal(t, 1, z.Card())
}

func TestTieBreakByMember(t *testing.T) {
	z := zset.New()
	z.Add("zeta", 1)
	z.Add("alpha", 1)

	members := z.Range(0, -1)
	require.Len(t, members, 2)
	assert.Equal(t, "alpha", members[0].Name)
	assert.Equal(t, "zeta", members[1].Name)
}

func TestRemove(t *testing.T) {
	z := zset.New()
	z.Add("a", 1)
	assert.True(t, z.Remove("a"))
	assert.False(t, z.Remove("a"))
	assert.Equal(t, -1, z.Rank("a"))
}

func TestRangeClamped(t *testing.T) {
	z := zset.New()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Add(m, float64(i))
	}

	assert.Len(t, z.Range(-2, -1), 2)
	assert.Len(t, z.Range(0, 100), 4)
	assert.Empty(t, z.Range(10, 20))
}
