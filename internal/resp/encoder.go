package resp

import "strconv"

// Encode appends v's wire encoding to dst and returns the extended slice.
// Encoding is pure and allocation-light (append-based) so the server can
// encode directly into a session's outgoing buffer without an
// intermediate bytes.Buffer, matching the event loop's non-blocking
// write path.
func Encode(dst []byte, v Value) []byte {
	switch v.Type {
	case TypeSimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case TypeError:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case TypeInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Integer, 10)
		return append(dst, '\r', '\n')

	case TypeBulkString:
		if v.IsNull {
			return append(dst, '$', '-', '1', '\r', '\n')
		}
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')

	case TypeArray:
		if v.IsNull {
			return append(dst, '*', '-', '1', '\r', '\n')
		}
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Array)), 10)
		dst = append(dst, '\r', '\n')
		for _, elem := range v.Array {
			dst = Encode(dst, elem)
		}
		return dst

	default:
		return dst
	}
}

// SerializeCommand encodes cmd and args as a RESP command array, used both
// to build the raw frame a MULTI transaction replays and the frame a
// leader appends to its replication stream.
func SerializeCommand(cmd string, args []Value) []byte {
	elems := make([]Value, 1+len(args))
	elems[0] = MakeBulkStringFromString(cmd)
	copy(elems[1:], args)
	return Encode(nil, MakeArray(elems))
}
