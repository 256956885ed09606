/*
Package storeerr implements the store subsystem's error-as-value
taxonomy (spec.md §7): a kind identified by a stable string name (kinds
have no numeric code), an optional context, and a faithful round-trip to and from a `data` vector so that
scripting-language consumers of the event/command streams can inspect
errors without linking against Go types.
*/
package storeerr

import (
	"fmt"

	"github.com/cuemby/storebroker/pkg/value"
)

// Kind names one error in the taxonomy. Values are stable strings so the
// enum round-trips through `data` as a KindEnum.
type Kind string

const (
	KindNone        Kind = "none"
	KindUnspecified Kind = "unspecified"

	// peer lifecycle
	KindPeerIncompatible            Kind = "peer_incompatible"
	KindPeerInvalid                 Kind = "peer_invalid"
	KindPeerUnavailable              Kind = "peer_unavailable"
	KindPeerDisconnectDuringHandshake Kind = "peer_disconnect_during_handshake"
	KindPeerTimeout                  Kind = "peer_timeout"

	// store topology
	KindMasterExists Kind = "master_exists"
	KindNoSuchMaster Kind = "no_such_master"

	// data-plane
	KindNoSuchKey  Kind = "no_such_key"
	KindTypeClash  Kind = "type_clash"
	KindInvalidData Kind = "invalid_data"
	KindStaleData   Kind = "stale_data"

	// timing
	KindRequestTimeout Kind = "request_timeout"

	// backend
	KindBackendFailure  Kind = "backend_failure"
	KindCannotOpenFile  Kind = "cannot_open_file"
	KindCannotWriteFile Kind = "cannot_write_file"

	// protocol / parse
	KindInvalidTopicKey Kind = "invalid_topic_key"
	KindEndOfFile       Kind = "end_of_file"
	KindInvalidTag      Kind = "invalid_tag"
	KindInvalidStatus   Kind = "invalid_status"
)

// category reports the group a Kind belongs to, mirroring the grouping
// spec.md §7 lists the taxonomy under. The `data` round trip does not
// encode it; only the kind name and context are carried.
func (k Kind) category() string {
	switch k {
	case KindNone, KindUnspecified:
		return "general"
	case KindPeerIncompatible, KindPeerInvalid, KindPeerUnavailable,
		KindPeerDisconnectDuringHandshake, KindPeerTimeout:
		return "peer"
	case KindMasterExists, KindNoSuchMaster:
		return "topology"
	case KindNoSuchKey, KindTypeClash, KindInvalidData, KindStaleData:
		return "data"
	case KindRequestTimeout:
		return "timing"
	case KindBackendFailure, KindCannotOpenFile, KindCannotWriteFile:
		return "backend"
	case KindInvalidTopicKey, KindEndOfFile, KindInvalidTag, KindInvalidStatus:
		return "protocol"
	default:
		return "general"
	}
}

// EndpointInfo is the minimal endpoint description carried in error
// context; the real endpoint/peering model lives in the out-of-scope
// transport layer, so this is deliberately just an opaque label.
type EndpointInfo struct {
	Label string
}

// Context is the optional payload attached to an Error: nil, a bare
// description, or a description paired with endpoint info.
type Context struct {
	Endpoint    *EndpointInfo
	Description string
}

// Error is a taxonomy-typed error value.
type Error struct {
	Kind     Kind
	Context  Context
	hasCtx   bool
	hasEndpt bool
}

// New builds an Error with no context.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf builds an Error carrying a description-only context.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: Context{Description: fmt.Sprintf(format, args...)}, hasCtx: true}
}

// NewWithEndpoint builds an Error carrying endpoint info plus a
// description.
func NewWithEndpoint(kind Kind, endpoint EndpointInfo, description string) *Error {
	e := &EndpointInfo{Label: endpoint.Label}
	return &Error{Kind: kind, Context: Context{Endpoint: e, Description: description}, hasCtx: true, hasEndpt: true}
}

func (e *Error) Error() string {
	if e == nil {
		return string(KindNone)
	}
	if !e.hasCtx {
		return string(e.Kind)
	}
	if e.hasEndpt {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Context.Description, e.Context.Endpoint.Label)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context.Description)
}

// Is supports errors.Is comparison by Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// ToData encodes e as the canonical `data` vector:
// ["error", enum(kind), context] where context is nil, [description], or
// [endpoint_info, description].
func ToData(e *Error) value.Value {
	if e == nil {
		e = New(KindNone)
	}
	var ctx value.Value
	switch {
	case e.hasCtx && e.hasEndpt:
		ctx = value.Vector(value.String(e.Context.Endpoint.Label), value.String(e.Context.Description))
	case e.hasCtx:
		ctx = value.Vector(value.String(e.Context.Description))
	default:
		ctx = value.None()
	}
	return value.Vector(value.String("error"), value.Enum(string(e.Kind)), ctx)
}

// FromData decodes the canonical `data` vector produced by ToData back
// into an Error. It returns an error if v is not a well-formed
// ["error", kind, context] vector.
func FromData(v value.Value) (*Error, error) {
	if v.Kind() != value.KindVector {
		return nil, fmt.Errorf("storeerr: not a vector")
	}
	elems := v.Elems()
	if len(elems) != 3 || elems[0].Kind() != value.KindString || elems[0].AsString() != "error" {
		return nil, fmt.Errorf("storeerr: not an error vector")
	}
	if elems[1].Kind() != value.KindEnum {
		return nil, fmt.Errorf("storeerr: kind slot is not an enum")
	}
	kind := Kind(elems[1].AsEnum())
	ctx := elems[2]
	switch ctx.Kind() {
	case value.KindNone:
		return New(kind), nil
	case value.KindVector:
		ctxElems := ctx.Elems()
		switch len(ctxElems) {
		case 1:
			return Newf(kind, "%s", ctxElems[0].AsString()), nil
		case 2:
			return NewWithEndpoint(kind, EndpointInfo{Label: ctxElems[0].AsString()}, ctxElems[1].AsString()), nil
		default:
			return nil, fmt.Errorf("storeerr: malformed context vector of length %d", len(ctxElems))
		}
	default:
		return nil, fmt.Errorf("storeerr: malformed context kind %s", ctx.Kind())
	}
}
