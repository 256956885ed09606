package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"
)

// wireValue is the JSON-serializable mirror of Value used by the
// persistent backends (sqlitestore, boltstore) to reconstruct a data
// value identically across restarts. The real wire framing for `data`
// belongs to the out-of-scope transport layer (spec.md §1); this codec
// only needs to round-trip through local storage.
type wireValue struct {
	Kind   Kind         `json:"kind"`
	Bool   bool         `json:"b,omitempty"`
	Uint   uint64       `json:"u,omitempty"`
	Int    int64        `json:"i,omitempty"`
	Real   float64      `json:"f,omitempty"`
	Str    string       `json:"s,omitempty"`
	Addr   string       `json:"addr,omitempty"`
	Subnet string       `json:"subnet,omitempty"`
	Port   uint16       `json:"port,omitempty"`
	TS     int64        `json:"ts,omitempty"`
	Dur    int64        `json:"dur,omitempty"`
	Enum   string       `json:"enum,omitempty"`
	Elems  []wireValue  `json:"elems,omitempty"`
	Table  []wireEntry  `json:"table,omitempty"`
	Bytes  string       `json:"bytes,omitempty"` // reserved for raw-string kinds needing base64
}

type wireEntry struct {
	Index wireValue `json:"index"`
	Value wireValue `json:"value"`
}

func toWire(v Value) wireValue {
	w := wireValue{Kind: v.kind}
	switch v.kind {
	case KindBool:
		w.Bool = v.b
	case KindCount:
		w.Uint = v.u
	case KindInt:
		w.Int = v.i
	case KindReal:
		w.Real = v.f
	case KindString:
		w.Str = v.s
	case KindAddress:
		w.Addr = v.addr.String()
	case KindSubnet:
		w.Subnet = v.subnet.String()
	case KindPort:
		w.Port = v.port
	case KindTimestamp:
		w.TS = v.ts.UnixNano()
	case KindTimespan:
		w.Dur = int64(v.dur)
	case KindEnum:
		w.Enum = v.enum
	case KindSet, KindVector:
		w.Elems = make([]wireValue, len(v.elems))
		for i, e := range v.elems {
			w.Elems[i] = toWire(e)
		}
	case KindTable:
		w.Table = make([]wireEntry, len(v.table))
		for i, e := range v.table {
			w.Table[i] = wireEntry{Index: toWire(e.Index), Value: toWire(e.Value)}
		}
	}
	return w
}

func fromWire(w wireValue) (Value, error) {
	switch w.Kind {
	case KindNone:
		return None(), nil
	case KindBool:
		return Bool(w.Bool), nil
	case KindCount:
		return Count(w.Uint), nil
	case KindInt:
		return Int(w.Int), nil
	case KindReal:
		return Real(w.Real), nil
	case KindString:
		return String(w.Str), nil
	case KindAddress:
		addr, err := netip.ParseAddr(w.Addr)
		if err != nil {
			return Value{}, fmt.Errorf("value: decode address: %w", err)
		}
		return Address(addr), nil
	case KindSubnet:
		p, err := netip.ParsePrefix(w.Subnet)
		if err != nil {
			return Value{}, fmt.Errorf("value: decode subnet: %w", err)
		}
		return Subnet(p), nil
	case KindPort:
		return Port(w.Port), nil
	case KindTimestamp:
		return Timestamp(time.Unix(0, w.TS).UTC()), nil
	case KindTimespan:
		return Timespan(time.Duration(w.Dur)), nil
	case KindEnum:
		return Enum(w.Enum), nil
	case KindSet:
		elems, err := fromWireSlice(w.Elems)
		if err != nil {
			return Value{}, err
		}
		return Set(elems...), nil
	case KindVector:
		elems, err := fromWireSlice(w.Elems)
		if err != nil {
			return Value{}, err
		}
		return Vector(elems...), nil
	case KindTable:
		entries := make([]TableEntry, len(w.Table))
		for i, e := range w.Table {
			idx, err := fromWire(e.Index)
			if err != nil {
				return Value{}, err
			}
			val, err := fromWire(e.Value)
			if err != nil {
				return Value{}, err
			}
			entries[i] = TableEntry{Index: idx, Value: val}
		}
		return Table(entries...), nil
	default:
		return Value{}, fmt.Errorf("value: unknown kind %d", w.Kind)
	}
}

func fromWireSlice(in []wireValue) ([]Value, error) {
	out := make([]Value, len(in))
	for i, w := range in {
		v, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(v))
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := fromWire(w)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Encode/Decode wrap the JSON codec as opaque bytes, used by backends
// that store a single blob column per entry.
func Encode(v Value) ([]byte, error) { return json.Marshal(v) }

func Decode(b []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(b, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// EncodeBase64 is a convenience used when a caller needs a text-safe
// representation (e.g. CLI manifests).
func EncodeBase64(v Value) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
