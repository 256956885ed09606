package value

import "errors"

// ErrTypeClash and ErrNoSuchKey are the sentinel errors ops.go can return;
// callers (the backend and store actor layers) translate these into the
// storeerr taxonomy's type_clash / no_such_key kinds.
var (
	ErrTypeClash  = errors.New("value: type clash")
	ErrNoSuchKey  = errors.New("value: no such key")
)

// Add implements the type-dispatched `add` augmentation (spec §4.1).
// present reports whether target previously existed; when false, target
// is first replaced by Zero(initType) before the delta is applied.
func Add(target Value, present bool, delta Value, initType Kind) (Value, error) {
	if !present {
		target = Zero(initType)
	}
	switch target.kind {
	case KindCount:
		if delta.kind != KindCount {
			return Value{}, ErrTypeClash
		}
		return Count(target.u + delta.u), nil
	case KindInt:
		if delta.kind != KindInt {
			return Value{}, ErrTypeClash
		}
		return Int(target.i + delta.i), nil
	case KindReal:
		if delta.kind != KindReal {
			return Value{}, ErrTypeClash
		}
		return Real(target.f + delta.f), nil
	case KindTimestamp:
		if delta.kind != KindTimespan {
			return Value{}, ErrTypeClash
		}
		return Timestamp(target.ts.Add(delta.dur)), nil
	case KindString:
		if delta.kind != KindString {
			return Value{}, ErrTypeClash
		}
		return String(target.s + delta.s), nil
	case KindSet:
		return Set(append(append([]Value{}, target.elems...), delta)...), nil
	case KindTable:
		if delta.kind != KindVector || len(delta.elems) != 2 {
			return Value{}, ErrTypeClash
		}
		next := append([]TableEntry{}, target.table...)
		next = upsertTable(next, delta.elems[0], delta.elems[1])
		return Value{kind: KindTable, table: next}, nil
	case KindVector:
		return Vector(append(append([]Value{}, target.elems...), delta)...), nil
	default:
		return Value{}, ErrTypeClash
	}
}

// Subtract implements the type-dispatched `subtract` erosion (spec
// §4.1). Vector subtraction always pops the last element regardless of
// delta's contents (resolved Open Question, see SPEC_FULL.md §4.1).
func Subtract(target Value, delta Value) (Value, error) {
	switch target.kind {
	case KindCount:
		if delta.kind != KindCount {
			return Value{}, ErrTypeClash
		}
		if delta.u > target.u {
			return Count(0), nil
		}
		return Count(target.u - delta.u), nil
	case KindInt:
		if delta.kind != KindInt {
			return Value{}, ErrTypeClash
		}
		return Int(target.i - delta.i), nil
	case KindReal:
		if delta.kind != KindReal {
			return Value{}, ErrTypeClash
		}
		return Real(target.f - delta.f), nil
	case KindTimestamp:
		if delta.kind != KindTimespan {
			return Value{}, ErrTypeClash
		}
		return Timestamp(target.ts.Add(-delta.dur)), nil
	case KindSet:
		idx := -1
		for i, e := range target.elems {
			if Equal(e, delta) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Value{}, ErrNoSuchKey
		}
		out := append([]Value{}, target.elems[:idx]...)
		out = append(out, target.elems[idx+1:]...)
		return Value{kind: KindSet, elems: out}, nil
	case KindTable:
		idx := -1
		for i, e := range target.table {
			if Equal(e.Index, delta) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Value{}, ErrNoSuchKey
		}
		out := append([]TableEntry{}, target.table[:idx]...)
		out = append(out, target.table[idx+1:]...)
		return Value{kind: KindTable, table: out}, nil
	case KindVector:
		if len(target.elems) == 0 {
			return Value{}, ErrNoSuchKey
		}
		out := append([]Value{}, target.elems[:len(target.elems)-1]...)
		return Value{kind: KindVector, elems: out}, nil
	default:
		return Value{}, ErrTypeClash
	}
}

// IndexInto implements `index_into`: table/vector lookup, or set
// membership test returning a KindBool Value.
func IndexInto(container Value, index Value) (Value, error) {
	switch container.kind {
	case KindTable:
		for _, e := range container.table {
			if Equal(e.Index, index) {
				return e.Value, nil
			}
		}
		return Value{}, ErrNoSuchKey
	case KindVector:
		if index.kind != KindCount && index.kind != KindInt {
			return Value{}, ErrTypeClash
		}
		var pos int64
		if index.kind == KindCount {
			pos = int64(index.u)
		} else {
			pos = index.i
		}
		if pos < 0 || pos >= int64(len(container.elems)) {
			return Value{}, ErrNoSuchKey
		}
		return container.elems[pos], nil
	case KindSet:
		for _, e := range container.elems {
			if Equal(e, index) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	default:
		return Value{}, ErrTypeClash
	}
}
