package value

import (
	"bytes"
	"math"
)

// Equal reports structural equality between a and b. Values of different
// Kind are never equal.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare orders a relative to b: scalar types order within their own
// kind, composites order lexicographically by element. Values of
// different Kind order by Kind number, which makes Compare a total order
// suitable for canonical table-key encoding.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNone:
		return 0
	case KindBool:
		return compareBool(a.b, b.b)
	case KindCount:
		return compareUint(a.u, b.u)
	case KindInt:
		return compareInt(a.i, b.i)
	case KindReal:
		return compareFloat(a.f, b.f)
	case KindString:
		return bytes.Compare([]byte(a.s), []byte(b.s))
	case KindAddress:
		return bytes.Compare(a.addr.AsSlice(), b.addr.AsSlice())
	case KindSubnet:
		return bytes.Compare([]byte(a.subnet.String()), []byte(b.subnet.String()))
	case KindPort:
		return compareUint(uint64(a.port), uint64(b.port))
	case KindTimestamp:
		if a.ts.Before(b.ts) {
			return -1
		}
		if a.ts.After(b.ts) {
			return 1
		}
		return 0
	case KindTimespan:
		return compareInt(int64(a.dur), int64(b.dur))
	case KindEnum:
		return bytes.Compare([]byte(a.enum), []byte(b.enum))
	case KindSet, KindVector:
		return compareSlice(a.elems, b.elems)
	case KindTable:
		return compareTable(a.table, b.table)
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareSlice(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(int64(len(a)), int64(len(b)))
}

func compareTable(a, b []TableEntry) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i].Index, b[i].Index); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return compareInt(int64(len(a)), int64(len(b)))
}

// CanonicalKey produces a deterministic byte encoding of v suitable for
// use as a map key (backend indexing, table lookups). Equal values always
// produce an identical key.
func CanonicalKey(v Value) string {
	var buf bytes.Buffer
	encodeCanonical(&buf, v)
	return buf.String()
}

func encodeCanonical(buf *bytes.Buffer, v Value) {
	buf.WriteByte(byte(v.kind))
	switch v.kind {
	case KindNone:
	case KindBool:
		if v.b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindCount:
		writeUint(buf, v.u)
	case KindInt:
		writeUint(buf, uint64(v.i))
	case KindReal:
		f := v.f
		if f == 0 {
			f = 0 // -0 compares equal to +0, so both share one key
		}
		writeUint(buf, math.Float64bits(f))
	case KindString:
		buf.WriteString(v.s)
	case KindAddress:
		buf.Write(v.addr.AsSlice())
	case KindSubnet:
		buf.WriteString(v.subnet.String())
	case KindPort:
		writeUint(buf, uint64(v.port))
	case KindTimestamp:
		writeUint(buf, uint64(v.ts.UnixNano()))
	case KindTimespan:
		writeUint(buf, uint64(v.dur))
	case KindEnum:
		buf.WriteString(v.enum)
	case KindSet, KindVector:
		for _, e := range v.elems {
			encodeCanonical(buf, e)
		}
	case KindTable:
		for _, e := range v.table {
			encodeCanonical(buf, e.Index)
			encodeCanonical(buf, e.Value)
		}
	}
}

func writeUint(buf *bytes.Buffer, u uint64) {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(u >> (8 * (7 - i)))
	}
	buf.Write(tmp[:])
}
