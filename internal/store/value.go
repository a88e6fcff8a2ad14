package store

import (
	"container/list"
	"strconv"

	"github.com/rediscore/server/internal/stream"
	"github.com/rediscore/server/internal/zset"
)

// Value is the tagged union stored at each keyspace key (spec §3's
// "value object"): String, Integer, List, Stream, SortedSet or Channel.
// Channel exists only for tagged-union completeness (KindChannel); no
// command path in this package ever constructs one — pub/sub channel
// state lives in the server package's own subscriber map (C12).
type Value struct {
	Kind Kind

	Str  []byte        // KindString
	Int  int64         // KindInteger
	List *list.List    // KindList, elements are []byte
	Strm *stream.Stream // KindStream
	ZSet *zset.SortedSet // KindSortedSet

	// ExpiresAtMs is an absolute millisecond deadline; 0 means no expiry.
	ExpiresAtMs int64
}

// NewString constructs a string value.
func NewString(b []byte) *Value {
	return &Value{Kind: KindString, Str: b}
}

// NewInteger constructs a decimal-representable integer value.
func NewInteger(n int64) *Value {
	return &Value{Kind: KindInteger, Int: n}
}

// NewList constructs an empty list value.
func NewList() *Value {
	return &Value{Kind: KindList, List: list.New()}
}

// NewStream constructs an empty stream value.
func NewStream() *Value {
	return &Value{Kind: KindStream, Strm: stream.New()}
}

// NewSortedSet constructs an empty sorted-set value.
func NewSortedSet() *Value {
	return &Value{Kind: KindSortedSet, ZSet: zset.New()}
}

// AsBytes renders a String or Integer value as the byte slice a GET-style
// command would reply with.
func (v *Value) AsBytes() []byte {
	if v.Kind == KindInteger {
		return []byte(strconv.FormatInt(v.Int, 10))
	}
	return v.Str
}
