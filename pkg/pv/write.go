package pv

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// WriteHandler decides the outcome of a remote write. It runs without any
// PV lock held and may call back into p.
type WriteHandler func(p *PV, v Value, ts time.Time, wc *WriteContext) WriteReply

// WriteReply is the answer of a WriteHandler: AcceptAsIs, AcceptWith,
// Reject or an *AsyncWrite.
type WriteReply interface {
	writeReply()
}

type acceptAsIs struct{}

type acceptWith struct {
	v  Value
	ts time.Time
}

type reject struct {
	err error
}

func (acceptAsIs) writeReply() {}
func (acceptWith) writeReply() {}
func (reject) writeReply()     {}

// AcceptAsIs applies the written value and timestamp.
func AcceptAsIs() WriteReply { return acceptAsIs{} }

// AcceptWith applies v and ts instead of the written value.
func AcceptWith(v Value, ts time.Time) WriteReply { return acceptWith{v: v.clone(), ts: ts} }

// Reject refuses the write. err may be nil.
func Reject(err error) WriteReply { return reject{err: err} }

// FailingWriteHandler rejects every write.
func FailingWriteHandler(*PV, Value, time.Time, *WriteContext) WriteReply {
	return Reject(errors.New("writes are not accepted"))
}

// WriteStatus is the immediate outcome of Write.
type WriteStatus uint8

const (
	WriteAccepted WriteStatus = iota
	WriteRejected
	// WritePending means the request is held open until its AsyncWrite
	// token is resolved.
	WritePending
)

// String returns the status name.
func (s WriteStatus) String() string {
	switch s {
	case WriteAccepted:
		return "accepted"
	case WriteRejected:
		return "rejected"
	case WritePending:
		return "pending"
	default:
		return fmt.Sprintf("WriteStatus(%d)", uint8(s))
	}
}

type writeState uint8

const (
	writeIdle writeState = iota
	writeActive
	writeDeferred
	writeDone
)

// WriteContext is one remote write request. The transport creates it with
// NewWriteContext and passes it to Write; onDone fires exactly once with the
// outcome (nil on success). A context serves a single request.
//
// A WriteContext holds no reference to the PV it was written to, so a PV
// whose deferred writes are abandoned can still be collected.
type WriteContext struct {
	id         uuid.UUID
	onDone     func(error)
	onDeferred func()

	mu     sync.Mutex
	state  writeState
	pvID   uint64
	issued bool // token created
	voided bool // token not returned by the handler
	used   bool // token resolved (or being resolved)
	lost   bool // PV released while deferred
	early  bool // token settled while the handler ran
	result error
}

// NewWriteContext creates a request context. onDone may be nil.
func NewWriteContext(onDone func(error)) *WriteContext {
	return &WriteContext{id: uuid.New(), onDone: onDone}
}

// ID returns the request ID.
func (wc *WriteContext) ID() uuid.UUID { return wc.id }

// OnDeferred sets a hook run once when the handler returns a completion
// token, before the request can be resolved through it. It must be set
// before the context is passed to Write.
func (wc *WriteContext) OnDeferred(hook func()) *WriteContext {
	wc.onDeferred = hook
	return wc
}

// Done reports whether the request has completed.
func (wc *WriteContext) Done() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.state == writeDone
}

func (wc *WriteContext) done(err error) {
	if wc.onDone != nil {
		wc.onDone(err)
	}
}

// abandon fails a deferred request whose PV is going away.
func (wc *WriteContext) abandon(err error) bool {
	wc.mu.Lock()
	if wc.state != writeDeferred || wc.used {
		wc.mu.Unlock()
		return false
	}
	wc.state = writeDone
	wc.used = true
	wc.lost = true
	wc.mu.Unlock()
	wc.done(err)
	return true
}

// AsyncWrite is a single-use completion token for a deferred write. It is
// created inside the write handler and returned as its reply; the request
// stays open until Complete or Fail is called.
type AsyncWrite struct {
	pv *PV
	wc *WriteContext
}

// NewAsyncWrite creates the completion token for the request wc currently
// being handled by p. Only one token per request is valid.
func NewAsyncWrite(p *PV, wc *WriteContext) (*AsyncWrite, error) {
	if p == nil || wc == nil {
		return nil, fmt.Errorf("%w: nil pv or write context", ErrProtocolMisuse)
	}
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.state != writeActive || wc.pvID != p.id {
		return nil, fmt.Errorf("%w: write context is not being handled by %s", ErrProtocolMisuse, p.name)
	}
	if wc.issued {
		return nil, fmt.Errorf("%w: write %s already has a completion token", ErrProtocolMisuse, wc.id)
	}
	wc.issued = true
	return &AsyncWrite{pv: p, wc: wc}, nil
}

func (*AsyncWrite) writeReply() {}

// ID returns the request ID of the deferred write.
func (a *AsyncWrite) ID() uuid.UUID { return a.wc.id }

// Complete resolves the write successfully and applies v and ts. If the
// update is invalid the request fails, the failure is reported and the
// error is returned. Resolving a token twice returns ErrProtocolMisuse and
// is reported.
func (a *AsyncWrite) Complete(v Value, ts time.Time) error {
	if err := a.claim(); err != nil {
		return err
	}
	_, err := a.pv.commit(NewUpdate().WithValue(v).WithTimestamp(ts))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrWriteRejected, err)
		a.pv.reportError(log.ErrorKindOther, err, "complete deferred write")
	}
	a.settle(err)
	return err
}

// Fail resolves the write as rejected. The store is untouched.
func (a *AsyncWrite) Fail() error {
	if err := a.claim(); err != nil {
		return err
	}
	a.settle(fmt.Errorf("%w: deferred write failed", ErrWriteRejected))
	return nil
}

func (a *AsyncWrite) claim() error {
	wc := a.wc
	wc.mu.Lock()
	var err error
	switch {
	case wc.lost:
		err = fmt.Errorf("%w: deferred write %s outlived its PV", ErrProtocolMisuse, wc.id)
	case wc.voided:
		err = fmt.Errorf("%w: completion token for %s was not returned by the handler", ErrProtocolMisuse, wc.id)
	case wc.used:
		err = fmt.Errorf("%w: completion token for %s resolved twice", ErrProtocolMisuse, wc.id)
	default:
		wc.used = true
	}
	wc.mu.Unlock()
	if err != nil {
		a.pv.reportError(log.ErrorKindProtocolMisuse, err, "resolve deferred write")
	}
	return err
}

func (a *AsyncWrite) settle(result error) {
	wc := a.wc
	wc.mu.Lock()
	if wc.state == writeActive {
		// Resolved before the handler returned; Write finishes the request.
		wc.early = true
		wc.result = result
		wc.mu.Unlock()
		return
	}
	wc.state = writeDone
	wc.mu.Unlock()

	a.pv.pending.remove(wc.id)
	wc.done(result)
}

// Write handles a remote write request. Read-only PVs reject before the
// handler runs. Without a handler the value is accepted as is. A nil wts
// stamps the value with the time of receipt; a non-nil one is decoded
// exactly, so the zero TimeStamp is the Channel Access epoch. The returned
// error describes a rejection; onDone of wc receives the same outcome.
func (p *PV) Write(wc *WriteContext, wv wire.Value, wts *wire.TimeStamp) (WriteStatus, error) {
	if wc == nil {
		err := fmt.Errorf("%w: nil write context", ErrProtocolMisuse)
		p.reportError(log.ErrorKindProtocolMisuse, err, "write")
		return WriteRejected, err
	}
	wc.mu.Lock()
	if wc.state != writeIdle {
		wc.mu.Unlock()
		err := fmt.Errorf("%w: write context %s reused", ErrProtocolMisuse, wc.id)
		p.reportError(log.ErrorKindProtocolMisuse, err, "write")
		return WriteRejected, err
	}
	wc.state = writeActive
	wc.pvID = p.id
	wc.mu.Unlock()

	if p.isClosed() {
		return p.finish(wc, ErrClosed)
	}
	if p.readOnly {
		return p.finish(wc, fmt.Errorf("%w: %s is read-only", ErrWriteRejected, p.name))
	}
	v, ts, err := p.decodeWrite(wv, wts)
	if err != nil {
		p.reportError(log.ErrorKindEncoding, err, "decode write")
		return p.finish(wc, err)
	}
	if p.handler == nil {
		return p.finish(wc, p.applyWrite(v, ts))
	}

	reply := p.handler(p, v, ts, wc)
	if token, ok := reply.(*AsyncWrite); ok && token != nil && token.wc == wc && token.pv == p {
		return p.hold(wc)
	}

	wc.mu.Lock()
	stray := wc.issued
	if stray {
		wc.voided = true
	}
	wc.mu.Unlock()
	if stray {
		p.reportError(log.ErrorKindProtocolMisuse,
			fmt.Errorf("%w: handler created a completion token for %s but did not return it", ErrProtocolMisuse, wc.id),
			"write")
	}

	switch r := reply.(type) {
	case acceptAsIs:
		return p.finish(wc, p.applyWrite(v, ts))
	case acceptWith:
		return p.finish(wc, p.applyWrite(r.v, r.ts))
	case reject:
		if r.err == nil {
			return p.finish(wc, ErrWriteRejected)
		}
		return p.finish(wc, fmt.Errorf("%w: %w", ErrWriteRejected, r.err))
	case *AsyncWrite:
		err := fmt.Errorf("%w: completion token does not belong to this request", ErrProtocolMisuse)
		p.reportError(log.ErrorKindProtocolMisuse, err, "write")
		return p.finish(wc, err)
	default:
		return p.finish(wc, fmt.Errorf("%w: handler returned no reply", ErrWriteRejected))
	}
}

// hold moves a request with a returned token to the deferred state, unless
// the token was already settled inside the handler or the PV was closed
// while the handler ran.
func (p *PV) hold(wc *WriteContext) (WriteStatus, error) {
	wc.mu.Lock()
	early := wc.early
	wc.mu.Unlock()
	if !early && wc.onDeferred != nil {
		wc.onDeferred()
	}

	// p.mu orders this against Close: either the request lands in pending
	// before Close abandons it, or closed is already set here.
	p.mu.Lock()
	wc.mu.Lock()
	if wc.early {
		result := wc.result
		wc.mu.Unlock()
		p.mu.Unlock()
		return p.finish(wc, result)
	}
	if p.closed {
		wc.state = writeDone
		wc.used = true
		wc.lost = true
		wc.mu.Unlock()
		p.mu.Unlock()

		err := fmt.Errorf("%w: %s closed with deferred write %s unresolved", ErrProtocolMisuse, p.name, wc.id)
		p.reportError(log.ErrorKindProtocolMisuse, err, "closed")
		wc.done(err)
		return WriteRejected, err
	}
	wc.state = writeDeferred
	p.pending.add(wc)
	wc.mu.Unlock()
	p.mu.Unlock()
	return WritePending, nil
}

// finish completes a request synchronously.
func (p *PV) finish(wc *WriteContext, err error) (WriteStatus, error) {
	wc.mu.Lock()
	wc.state = writeDone
	wc.mu.Unlock()
	wc.done(err)
	if err != nil {
		return WriteRejected, err
	}
	return WriteAccepted, nil
}

func (p *PV) applyWrite(v Value, ts time.Time) error {
	if _, err := p.commit(NewUpdate().WithValue(v).WithTimestamp(ts)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteRejected, err)
	}
	return nil
}

// pendingSet tracks deferred writes of one PV. It holds no reference to the
// PV so it can outlive it in a runtime cleanup.
type pendingSet struct {
	name   string
	logger log.Logger

	mu sync.Mutex
	m  map[uuid.UUID]*WriteContext
}

func newPendingSet(name string, logger log.Logger) *pendingSet {
	return &pendingSet{name: name, logger: logger, m: make(map[uuid.UUID]*WriteContext)}
}

func (s *pendingSet) add(wc *WriteContext) {
	s.mu.Lock()
	s.m[wc.id] = wc
	s.mu.Unlock()
}

func (s *pendingSet) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

func (s *pendingSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// abandon fails every deferred write with ErrProtocolMisuse, reports each
// one and returns how many there were.
func (s *pendingSet) abandon(reason string) int {
	s.mu.Lock()
	wcs := make([]*WriteContext, 0, len(s.m))
	for _, wc := range s.m {
		wcs = append(wcs, wc)
	}
	clear(s.m)
	s.mu.Unlock()

	n := 0
	for _, wc := range wcs {
		err := fmt.Errorf("%w: %s %s with deferred write %s unresolved", ErrProtocolMisuse, s.name, reason, wc.id)
		if wc.abandon(err) {
			reportError(s.logger, s.name, log.ErrorKindProtocolMisuse, err, reason)
			n++
		}
	}
	return n
}
