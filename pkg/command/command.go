/*
Package command implements the command protocol vocabulary linking a
store master to its clones (spec.md §4.3, §6): the message envelope, the
payload shapes for each command type, and the topic-naming convention the
store actor and bus share.
*/
package command

import (
	"fmt"
	"time"

	"github.com/cuemby/storebroker/pkg/value"
)

// EntityID identifies the originator of a command or event:
// (endpoint, object). The absent-endpoint sentinel is the zero value.
type EntityID struct {
	Endpoint string
	Object   string
}

// NilEntity is the absent-endpoint sentinel (spec.md §3).
var NilEntity = EntityID{}

// IsNil reports whether e is the absent sentinel.
func (e EntityID) IsNil() bool { return e == NilEntity }

// Type enumerates the over-the-wire command tags (spec.md §6).
type Type string

const (
	TypePut              Type = "put"
	TypePutUnique        Type = "put_unique"
	TypePutUniqueResult  Type = "put_unique_result"
	TypeErase            Type = "erase"
	TypeExpire           Type = "expire"
	TypeClear            Type = "clear"
	TypeAdd              Type = "add"
	TypeSubtract         Type = "subtract"
	TypeSnapshotRequest  Type = "snapshot_request"
	TypeSnapshotReply    Type = "snapshot_reply"
	TypeAckClone         Type = "ack_clone"
)

// Entry is one (key, value, expiry) triple as carried in a
// snapshot_reply payload.
type Entry struct {
	Key     value.Value
	Value   value.Value
	Expiry  *time.Time
}

// KeyExpiry pairs a key with its expiry, as returned by the backend's
// expiries() operation and carried in snapshot_reply.
type KeyExpiry struct {
	Key    value.Value
	Expiry time.Time
}

// Payload carries the fields relevant to Type; unused fields are zero.
type Payload struct {
	Key       value.Value
	Value     value.Value
	InitType  value.Kind
	Expiry    *time.Time
	Publisher EntityID

	ReqID  uint64
	Bool   bool
	CloneID string

	Seq      uint64
	Entries  []Entry
	Expiries []KeyExpiry
}

// Message is the structured command envelope (spec.md §3 "Command").
// Seq is 0 for snapshot_request and for frontend→master pre-commit
// writes, which are tagged with the master's seq only once applied.
type Message struct {
	Sender  EntityID
	Seq     uint64
	Type    Type
	Payload Payload
}

func (m Message) String() string {
	return fmt.Sprintf("command{type=%s seq=%d sender=%s/%s}", m.Type, m.Seq, m.Sender.Endpoint, m.Sender.Object)
}

// IsWrite reports whether t mutates the store (as opposed to the
// snapshot/ack control messages).
func (t Type) IsWrite() bool {
	switch t {
	case TypePut, TypePutUnique, TypeErase, TypeExpire, TypeClear, TypeAdd, TypeSubtract:
		return true
	default:
		return false
	}
}

// Topic naming (spec.md §6 "Event topic naming" applies equally to
// command topics): the separator is configurable so a surrounding broker
// can plug in its own topic-hierarchy separator; it defaults to "/".
const DefaultSeparator = "/"

// CommandTopic is the master→clones broadcast topic for a store.
func CommandTopic(storeName, separator string) string {
	return join(separator, "store_cmd", storeName)
}

// ProposalTopic is the clone→master forwarding topic: clones publish
// pre-commit writes and snapshot_request here; the master subscribes.
func ProposalTopic(storeName, separator string) string {
	return join(separator, "store_proposals", storeName)
}

// ReplyTopic is a per-clone topic the master uses for snapshot_reply and
// put_unique_result, addressed by clone id so replies don't fan out to
// every clone.
func ReplyTopic(storeName, cloneID, separator string) string {
	return join(separator, "store_reply", storeName, cloneID)
}

func join(sep string, parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += sep + p
	}
	return out
}
