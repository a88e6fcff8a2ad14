package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID is a stream entry identifier, totally ordered by (Ms, Seq).
type ID struct {
	Ms  uint64
	Seq uint64
}

// Zero is the reserved sentinel 0-0, forbidden as an entry ID.
var Zero = ID{}

// Max is the sentinel used as the upper bound of an unbounded range scan.
var Max = ID{Ms: ^uint64(0), Seq: ^uint64(0)}

var (
	// ErrInvalidFormat is returned when an explicit ID string does not
	// parse as <ms>-<seq> or <ms>.
	ErrInvalidFormat = errors.New("invalid stream ID specified as stream command argument")
	// ErrNotGreater is returned when an explicit ID is not strictly
	// greater than the stream's current last ID.
	ErrNotGreater = errors.New("The ID specified in XADD is equal or smaller than the target stream top item")
	// ErrZero is returned when an explicit ID equals the reserved 0-0
	// sentinel.
	ErrZero = errors.New("The ID specified in XADD must be greater than 0-0")
)

// String renders the ID in <ms>-<seq> wire form.
func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Less reports id < other under (Ms, Seq) ordering.
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// Compare returns -1, 0 or 1 comparing id to other.
func (id ID) Compare(other ID) int {
	switch {
	case id.Less(other):
		return -1
	case other.Less(id):
		return 1
	default:
		return 0
	}
}

// IsZero reports whether id is the forbidden 0-0 sentinel.
func (id ID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// Successor returns the smallest ID strictly greater than id, incrementing
// the sequence and carrying into the millisecond part on overflow.
func (id ID) Successor() ID {
	if id.Seq == ^uint64(0) {
		return ID{Ms: id.Ms + 1, Seq: 0}
	}
	return ID{Ms: id.Ms, Seq: id.Seq + 1}
}

// ParseExplicit parses a full "<ms>-<seq>" or bare "<ms>" ID string.
func ParseExplicit(s string) (ID, error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ID{}, ErrInvalidFormat
	}
	if len(parts) == 1 {
		return ID{Ms: ms}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return ID{}, ErrInvalidFormat
	}
	return ID{Ms: ms, Seq: seq}, nil
}

// ParseRangeBound parses a range endpoint for XRANGE: "-" maps to the
// zero sentinel, "+" to the maximum sentinel, otherwise it parses like an
// explicit ID with a missing sequence defaulting according to isStart.
func ParseRangeBound(s string, isStart bool) (ID, error) {
	switch s {
	case "-":
		return Zero, nil
	case "+":
		return Max, nil
	}
	id, err := ParseExplicit(s)
	if err != nil {
		return ID{}, err
	}
	if !strings.Contains(s, "-") {
		if !isStart {
			id.Seq = ^uint64(0)
		}
	}
	return id, nil
}

// key returns the fixed-width, lexicographically-ordered radix key for id.
// Both fields are zero-padded to 20 decimal digits so that byte-string
// comparison matches numeric (Ms, Seq) comparison.
func (id ID) key() []byte {
	return []byte(fmt.Sprintf("%020d-%020d", id.Ms, id.Seq))
}
