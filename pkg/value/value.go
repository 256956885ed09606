/*
Package value implements the `data` universe shared by every store
operation: a small tagged union over scalars, addresses, timestamps, and
three container shapes (set, table, vector).

Values compare by structural equality and order lexicographically within
composites; construction is via the constructor functions below (None,
Bool, Count, ...) rather than exported struct literals, so the zero
Value is always the well-formed
`none`.
*/
package value

import (
	"fmt"
	"net/netip"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindCount // unsigned integer
	KindInt   // signed integer
	KindReal
	KindString
	KindAddress
	KindSubnet
	KindPort
	KindTimestamp
	KindTimespan
	KindEnum
	KindSet
	KindTable
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindCount:
		return "count"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindAddress:
		return "address"
	case KindSubnet:
		return "subnet"
	case KindPort:
		return "port"
	case KindTimestamp:
		return "timestamp"
	case KindTimespan:
		return "timespan"
	case KindEnum:
		return "enum"
	case KindSet:
		return "set"
	case KindTable:
		return "table"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TableEntry is one index->value binding inside a KindTable Value.
// Table iteration order is unspecified, per the data model contract.
type TableEntry struct {
	Index Value
	Value Value
}

// Value is a single immutable `data` instance. The zero Value is `none`.
type Value struct {
	kind Kind

	b      bool
	u      uint64
	i      int64
	f      float64
	s      string
	addr   netip.Addr
	subnet netip.Prefix
	port   uint16
	ts     time.Time
	dur    time.Duration
	enum   string
	elems  []Value      // KindSet, KindVector
	table  []TableEntry // KindTable
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// None is the empty/absent value.
func None() Value { return Value{kind: KindNone} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Count(u uint64) Value { return Value{kind: KindCount, u: u} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Real(f float64) Value { return Value{kind: KindReal, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func Address(a netip.Addr) Value { return Value{kind: KindAddress, addr: a} }

func Subnet(p netip.Prefix) Value { return Value{kind: KindSubnet, subnet: p} }

func Port(p uint16) Value { return Value{kind: KindPort, port: p} }

func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

func Timespan(d time.Duration) Value { return Value{kind: KindTimespan, dur: d} }

func Enum(tag string) Value { return Value{kind: KindEnum, enum: tag} }

// Set builds a KindSet value, deduplicating members by structural equality.
func Set(members ...Value) Value {
	out := make([]Value, 0, len(members))
	for _, m := range members {
		found := false
		for _, existing := range out {
			if Equal(existing, m) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, m)
		}
	}
	return Value{kind: KindSet, elems: out}
}

// Vector builds a KindVector value, preserving order and duplicates.
func Vector(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindVector, elems: cp}
}

// Table builds a KindTable value from explicit bindings. A later entry
// with an equal index overwrites an earlier one, mirroring add's
// overwrite-allowed semantics.
func Table(entries ...TableEntry) Value {
	var out []TableEntry
	for _, e := range entries {
		out = upsertTable(out, e.Index, e.Value)
	}
	return Value{kind: KindTable, table: out}
}

func upsertTable(table []TableEntry, index, val Value) []TableEntry {
	for i, e := range table {
		if Equal(e.Index, index) {
			table[i].Value = val
			return table
		}
	}
	return append(table, TableEntry{Index: index, Value: val})
}

// Zero returns the zero/empty value for a given Kind, used to seed `add`
// on an absent target (init_type semantics, spec §4.1).
func Zero(k Kind) Value {
	switch k {
	case KindNone:
		return None()
	case KindBool:
		return Bool(false)
	case KindCount:
		return Count(0)
	case KindInt:
		return Int(0)
	case KindReal:
		return Real(0)
	case KindString:
		return String("")
	case KindAddress:
		return Address(netip.Addr{})
	case KindSubnet:
		return Subnet(netip.Prefix{})
	case KindPort:
		return Port(0)
	case KindTimestamp:
		return Timestamp(time.Time{})
	case KindTimespan:
		return Timespan(0)
	case KindEnum:
		return Enum("")
	case KindSet:
		return Set()
	case KindTable:
		return Table()
	case KindVector:
		return Vector()
	default:
		return None()
	}
}

// AsBool, AsCount, ... are narrow accessors; callers should check Kind()
// first since these do not panic on mismatch but silently return the
// zero value.
func (v Value) AsBool() bool             { return v.b }
func (v Value) AsCount() uint64          { return v.u }
func (v Value) AsInt() int64             { return v.i }
func (v Value) AsReal() float64          { return v.f }
func (v Value) AsString() string        { return v.s }
func (v Value) AsAddress() netip.Addr    { return v.addr }
func (v Value) AsSubnet() netip.Prefix   { return v.subnet }
func (v Value) AsPort() uint16           { return v.port }
func (v Value) AsTimestamp() time.Time   { return v.ts }
func (v Value) AsTimespan() time.Duration { return v.dur }
func (v Value) AsEnum() string           { return v.enum }

// Elems returns the backing elements of a set or vector. The returned
// slice must not be mutated by callers.
func (v Value) Elems() []Value { return v.elems }

// TableEntries returns the backing bindings of a table. The returned
// slice must not be mutated by callers.
func (v Value) TableEntries() []TableEntry { return v.table }

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "none"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindCount:
		return fmt.Sprintf("%d", v.u)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindAddress:
		return v.addr.String()
	case KindSubnet:
		return v.subnet.String()
	case KindPort:
		return fmt.Sprintf("%d", v.port)
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindTimespan:
		return v.dur.String()
	case KindEnum:
		return v.enum
	case KindSet:
		return fmt.Sprintf("set%v", v.elems)
	case KindTable:
		return fmt.Sprintf("table%v", v.table)
	case KindVector:
		return fmt.Sprintf("vector%v", v.elems)
	default:
		return "?"
	}
}
