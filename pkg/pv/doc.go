// Package pv implements the Channel Access process variable engine.
//
// A PV owns one attribute store guarded by a single lock. All mutation goes
// through Apply (or the per-attribute setters built on it), which constrains
// the value to the control limits, derives status and severity from the
// warning and alarm limits, classifies the change into VALUE, ARCHIVE, ALARM
// and PROPERTY events using the configured deadbands, and commits the result
// atomically. A failing update leaves the store untouched.
//
// # Publishing
//
// Events are published in two phases. Phase one runs under the store lock:
// it commits the update, drains the outstanding event set and encodes the
// wire snapshot into a delivery. Phase two runs with the lock released and
// hands the delivery to the change monitor and the transport sink. Deliveries
// for one PV are queued and flushed in order, so the events of update N are
// never delivered after those of update N+1, and callbacks may call back into
// the PV.
//
// While no subscriber has registered interest, events accumulate in the
// outstanding set but are never posted. Registering interest discards them.
//
// # Writes
//
// Remote writes arrive through Write with a WriteContext created by the
// transport. The configured WriteHandler answers with AcceptAsIs, AcceptWith,
// Reject or an AsyncWrite token that defers the decision. A token must be
// resolved exactly once with Complete or Fail; resolving it twice, or
// releasing the PV while it is unresolved, is reported as ErrProtocolMisuse.
package pv
