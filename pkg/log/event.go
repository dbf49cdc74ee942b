package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the remote peer or write request (UUID).
	// Empty for engine-internal events.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow relative to the server.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// PV is the process variable name the event concerns.
	PV string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Monitor   *MonitorEvent   `cbor:"10,keyasint,omitempty"` // Posted events
	Write     *WriteEvent     `cbor:"11,keyasint,omitempty"` // Write outcomes
	Interest  *InterestEvent  `cbor:"12,keyasint,omitempty"` // Publishing toggles
	Lifecycle *LifecycleEvent `cbor:"13,keyasint,omitempty"` // Create/close/alias
	Error     *ErrorEventData `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a request from a remote peer.
	DirectionIn Direction = 0
	// DirectionOut indicates data pushed to remote peers.
	DirectionOut Direction = 1
	// DirectionNone indicates an engine-internal event.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "-"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	// LayerTransport is the network-facing server surface.
	LayerTransport Layer = 0
	// LayerWire is the codec boundary.
	LayerWire Layer = 1
	// LayerEngine is the PV state engine.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryEvent indicates a posted PV event (monitor update).
	CategoryEvent Category = 0
	// CategoryWrite indicates a write request outcome.
	CategoryWrite Category = 1
	// CategoryInterest indicates a publishing toggle.
	CategoryInterest Category = 2
	// CategoryLifecycle indicates PV creation, release or aliasing.
	CategoryLifecycle Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryEvent:
		return "EVENT"
	case CategoryWrite:
		return "WRITE"
	case CategoryInterest:
		return "INTEREST"
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MonitorEvent captures an event posted to subscribers.
type MonitorEvent struct {
	// Mask is the event bitset (VALUE=1, ARCHIVE=2, ALARM=4, PROPERTY=8).
	Mask uint8 `cbor:"1,keyasint"`

	// Size is the encoded snapshot size in bytes.
	Size int `cbor:"2,keyasint"`

	// Snapshot is the CBOR snapshot (may be truncated for large arrays).
	Snapshot []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Snapshot was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// WriteEvent captures the outcome of a remote write request.
type WriteEvent struct {
	// RequestID correlates the request with its deferred completion.
	RequestID string `cbor:"1,keyasint"`

	// Outcome of the request.
	Outcome WriteOutcome `cbor:"2,keyasint"`

	// Reason for a rejection (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// WriteOutcome is the state a write request reached.
type WriteOutcome uint8

const (
	// WriteAccepted indicates the store was updated.
	WriteAccepted WriteOutcome = 0
	// WriteRejected indicates the request failed; the store is unchanged.
	WriteRejected WriteOutcome = 1
	// WritePending indicates the request was deferred.
	WritePending WriteOutcome = 2
)

// String returns the outcome name.
func (o WriteOutcome) String() string {
	switch o {
	case WriteAccepted:
		return "ACCEPTED"
	case WriteRejected:
		return "REJECTED"
	case WritePending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// InterestEvent captures an interest registration or deletion.
type InterestEvent struct {
	// Enabled is the new publishing state.
	Enabled bool `cbor:"1,keyasint"`
}

// LifecycleEvent captures PV lifecycle changes.
type LifecycleEvent struct {
	// Action performed.
	Action LifecycleAction `cbor:"1,keyasint"`

	// Type is the PV element type name as pv.Type.String spells it (for create).
	Type string `cbor:"2,keyasint,omitempty"`

	// Count is the element count (for create).
	Count int `cbor:"3,keyasint,omitempty"`

	// Target is the canonical name (for alias actions).
	Target string `cbor:"4,keyasint,omitempty"`
}

// LifecycleAction indicates what happened to a PV.
type LifecycleAction uint8

const (
	// LifecycleCreated indicates a PV was created and registered.
	LifecycleCreated LifecycleAction = 0
	// LifecycleClosed indicates a PV was explicitly released.
	LifecycleClosed LifecycleAction = 1
	// LifecycleCollected indicates a PV was garbage collected.
	LifecycleCollected LifecycleAction = 2
	// LifecycleAliasAdded indicates an alias was added.
	LifecycleAliasAdded LifecycleAction = 3
	// LifecycleAliasRemoved indicates an alias was removed.
	LifecycleAliasRemoved LifecycleAction = 4
)

// String returns the action name.
func (a LifecycleAction) String() string {
	switch a {
	case LifecycleCreated:
		return "CREATED"
	case LifecycleClosed:
		return "CLOSED"
	case LifecycleCollected:
		return "COLLECTED"
	case LifecycleAliasAdded:
		return "ALIAS_ADDED"
	case LifecycleAliasRemoved:
		return "ALIAS_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind classifies the error.
	Kind ErrorKind `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// ErrorKind classifies reported errors.
type ErrorKind uint8

const (
	// ErrorKindOther is an unclassified error.
	ErrorKindOther ErrorKind = 0
	// ErrorKindEncoding is a codec failure.
	ErrorKindEncoding ErrorKind = 1
	// ErrorKindProtocolMisuse is a completion token misuse.
	ErrorKindProtocolMisuse ErrorKind = 2
	// ErrorKindConfiguration is a rejected PV configuration.
	ErrorKindConfiguration ErrorKind = 3
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindOther:
		return "OTHER"
	case ErrorKindEncoding:
		return "ENCODING"
	case ErrorKindProtocolMisuse:
		return "PROTOCOL_MISUSE"
	case ErrorKindConfiguration:
		return "CONFIGURATION"
	default:
		return "UNKNOWN"
	}
}

// MaxSnapshotLog is the number of snapshot bytes kept in a MonitorEvent.
const MaxSnapshotLog = 4096

// NewMonitorEvent builds a MonitorEvent, truncating large snapshots.
func NewMonitorEvent(mask uint8, snapshot []byte) *MonitorEvent {
	m := &MonitorEvent{Mask: mask, Size: len(snapshot)}
	if len(snapshot) > MaxSnapshotLog {
		m.Snapshot = append([]byte(nil), snapshot[:MaxSnapshotLog]...)
		m.Truncated = true
	} else {
		m.Snapshot = append([]byte(nil), snapshot...)
	}
	return m
}
