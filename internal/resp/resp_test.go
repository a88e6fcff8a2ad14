package resp_test

import (
	"testing"

	"github.com/rediscore/server/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBasicFrames(t *testing.T) {
	assert.Equal(t, "+OK\r\n", string(resp.Encode(nil, resp.MakeSimpleString("OK"))))
	assert.Equal(t, "-ERR bad\r\n", string(resp.Encode(nil, resp.MakeError("ERR bad"))))
	assert.Equal(t, ":42\r\n", string(resp.Encode(nil, resp.MakeInteger(42))))
	assert.Equal(t, "$3\r\nbar\r\n", string(resp.Encode(nil, resp.MakeBulkStringFromString("bar"))))
	assert.Equal(t, "$-1\r\n", string(resp.Encode(nil, resp.MakeNilBulkString())))
	assert.Equal(t, "*-1\r\n", string(resp.Encode(nil, resp.MakeNilArray())))
}

func TestEncodeArray(t *testing.T) {
	v := resp.MakeArray([]resp.Value{
		resp.MakeBulkStringFromString("q"),
		resp.MakeBulkStringFromString("hello"),
	})
	assert.Equal(t, "*2\r\n$1\r\nq\r\n$5\r\nhello\r\n", string(resp.Encode(nil, v)))
}

func TestDecodeCompleteCommand(t *testing.T) {
	d := resp.NewDecoder()
	d.Feed([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))

	v, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(resp.TypeArray), v.Type)
	require.Len(t, v.Array, 2)
	assert.Equal(t, "GET", string(v.Array[0].Str))
	assert.Equal(t, "foo", string(v.Array[1].Str))
	assert.Equal(t, 0, d.Buffered())
}

func TestDecodeResumesOnPartialInput(t *testing.T) {
	d := resp.NewDecoder()
	d.Feed([]byte("*1\r\n$5\r\nhel"))

	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, len("*1\r\n$5\r\nhel"), d.Buffered())

	d.Feed([]byte("lo\r\n"))
	v, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(v.Array[0].Str))
}

func TestDecodeNullBulkAndArray(t *testing.T) {
	d := resp.NewDecoder()
	d.Feed([]byte("$-1\r\n*-1\r\n"))

	v, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.IsNull)
	assert.Equal(t, byte(resp.TypeBulkString), v.Type)

	v, ok, err = d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.IsNull)
	assert.Equal(t, byte(resp.TypeArray), v.Type)
}

func TestDecodeInvalidIntegerTrailer(t *testing.T) {
	d := resp.NewDecoder()
	d.Feed([]byte(":12x\r\n"))

	_, _, err := d.Next()
	assert.ErrorIs(t, err, resp.ErrProtocol)
}

func TestDecodeUnknownLeadingByte(t *testing.T) {
	d := resp.NewDecoder()
	d.Feed([]byte("!oops\r\n"))

	_, _, err := d.Next()
	assert.ErrorIs(t, err, resp.ErrProtocol)
}

func TestSerializeCommandRoundTrips(t *testing.T) {
	raw := resp.SerializeCommand("SET", []resp.Value{
		resp.MakeBulkStringFromString("k"),
		resp.MakeBulkStringFromString("v"),
	})

	d := resp.NewDecoder()
	d.Feed(raw)
	v, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, v.Array, 3)
	assert.Equal(t, "SET", string(v.Array[0].Str))
}
