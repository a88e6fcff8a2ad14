package store

import "container/list"

// GetList returns the list at key. If key is absent it creates the list
// when createIfAbsent is set and otherwise returns nil. If key holds a
// non-list value, returns ErrWrongType and leaves state unchanged.
func (k *Keyspace) GetList(key string, createIfAbsent bool) (*list.List, error) {
	v, ok := k.Get(key)
	if !ok {
		if !createIfAbsent {
			return nil, nil
		}
		nv := NewList()
		k.Set(key, nv)
		return nv.List, nil
	}
	if v.Kind != KindList {
		return nil, ErrWrongType
	}
	return v.List, nil
}

// LPush prepends values (in argument order, so the last pushed ends up
// frontmost) and returns the new length.
func LPush(l *list.List, values [][]byte) int {
	for _, v := range values {
		l.PushFront(v)
	}
	return l.Len()
}

// RPush appends values in argument order and returns the new length.
func RPush(l *list.List, values [][]byte) int {
	for _, v := range values {
		l.PushBack(v)
	}
	return l.Len()
}

// LPop removes and returns up to count elements from the front.
func LPop(l *list.List, count int) [][]byte {
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		e := l.Front()
		if e == nil {
			break
		}
		out = append(out, e.Value.([]byte))
		l.Remove(e)
	}
	return out
}

// RPop removes and returns up to count elements from the back.
func RPop(l *list.List, count int) [][]byte {
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		e := l.Back()
		if e == nil {
			break
		}
		out = append(out, e.Value.([]byte))
		l.Remove(e)
	}
	return out
}

// LRange returns the elements between start and stop inclusive, with
// negative indices counting from the end and out-of-range bounds clamped,
// matching LRANGE's semantics.
func LRange(l *list.List, start, stop int) [][]byte {
	n := l.Len()
	if n == 0 {
		return nil
	}

	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}

	out := make([][]byte, 0, stop-start+1)
	i := 0
	for e := l.Front(); e != nil && i <= stop; e = e.Next() {
		if i >= start {
			out = append(out, e.Value.([]byte))
		}
		i++
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// ToSlice materializes a list's elements in order, for snapshot encoding.
func ToSlice(l *list.List) [][]byte {
	out := make([][]byte, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.([]byte))
	}
	return out
}
