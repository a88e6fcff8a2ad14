// Package stream implements the append-only stream value type of spec
// component C5: monotonic ID generation per §4.5 and range reads backed
// by internal/radix, grounded on
// _examples/original_source/src/streams/redis_stream.c/.h.
package stream

import (
	"time"

	"github.com/rediscore/server/internal/radix"
)

// Field is one (name, value) pair carried by an entry, order-preserving.
type Field struct {
	Name  []byte
	Value []byte
}

// Entry is a single appended record.
type Entry struct {
	ID     ID
	Fields []Field
}

// Stream is an append-only log with monotonic IDs and range reads.
type Stream struct {
	LastMs  uint64
	LastSeq uint64
	entries *radix.Tree
}

// New creates an empty stream.
func New() *Stream {
	return &Stream{entries: radix.New()}
}

// Len returns the number of entries.
func (s *Stream) Len() int { return s.entries.Len() }

// LastID returns the largest ID ever assigned in this stream.
func (s *Stream) LastID() ID {
	return ID{Ms: s.LastMs, Seq: s.LastSeq}
}

// nowMs is overridable in tests to make auto-ID generation deterministic.
var nowMs = func() uint64 { return uint64(time.Now().UnixMilli()) }

// ResolveID computes the concrete ID for one of XADD's three forms:
// "*" (full auto), "<ms>-*" (sequence auto) or an explicit "<ms>-<seq>".
// It performs the not-greater-than-last and equals-zero-zero checks for
// the explicit and sequence-auto forms but does not mutate the stream.
func (s *Stream) ResolveID(spec string) (ID, error) {
	switch {
	case spec == "*":
		ms := nowMs()
		if ms < s.LastMs {
			// clock moved backward: reuse the stored last timestamp
			ms = s.LastMs
		}
		seq := uint64(0)
		if ms == s.LastMs {
			seq = s.LastSeq + 1
		}
		return ID{Ms: ms, Seq: seq}, nil

	case len(spec) > 2 && spec[len(spec)-2:] == "-*":
		msPart := spec[:len(spec)-2]
		ms, err := parseUintStrict(msPart)
		if err != nil {
			return ID{}, ErrInvalidFormat
		}
		var seq uint64
		switch {
		case ms == s.LastMs:
			seq = s.LastSeq + 1
		case ms == 0:
			seq = 1
		default:
			seq = 0
		}
		id := ID{Ms: ms, Seq: seq}
		if id.IsZero() {
			return ID{}, ErrZero
		}
		if !s.LastID().Less(id) {
			return ID{}, ErrNotGreater
		}
		return id, nil

	default:
		id, err := ParseExplicit(spec)
		if err != nil {
			return ID{}, err
		}
		if id.IsZero() {
			return ID{}, ErrZero
		}
		if !s.LastID().Less(id) {
			return ID{}, ErrNotGreater
		}
		return id, nil
	}
}

func parseUintStrict(s string) (uint64, error) {
	if s == "" {
		return 0, ErrInvalidFormat
	}
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ErrInvalidFormat
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

// Append resolves spec into a concrete ID via ResolveID, stores the entry,
// and advances LastMs/LastSeq/length. It returns the assigned ID.
func (s *Stream) Append(spec string, fields []Field) (ID, error) {
	id, err := s.ResolveID(spec)
	if err != nil {
		return ID{}, err
	}
	s.entries.Insert(id.key(), Entry{ID: id, Fields: fields})
	s.LastMs = id.Ms
	s.LastSeq = id.Seq
	return id, nil
}

// AppendExact inserts an entry at a caller-resolved ID without revalidating
// ordering; used to rebuild a stream's entries when loading a snapshot.
func (s *Stream) AppendExact(id ID, fields []Field) {
	s.entries.Insert(id.key(), Entry{ID: id, Fields: fields})
	if s.LastID().Less(id) {
		s.LastMs = id.Ms
		s.LastSeq = id.Seq
	}
}

// Range returns entries with ID in [lo, hi] inclusive, in ascending order.
func (s *Stream) Range(lo, hi ID) []Entry {
	raw := s.entries.Range(lo.key(), hi.key())
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		out = append(out, e.Value.(Entry))
	}
	return out
}

// ReadAfter returns entries strictly greater than id, i.e. from id's
// successor to the top of the stream.
func (s *Stream) ReadAfter(id ID) []Entry {
	return s.Range(id.Successor(), Max)
}

// All returns every entry in ascending order, for snapshot encoding.
func (s *Stream) All() []Entry {
	return s.Range(Zero, Max)
}
