package pv

import (
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// EventSink receives events posted for subscribers. It is called with no
// PV lock held, only while publishing is enabled, and only with a non-empty
// event set.
type EventSink interface {
	PostEvent(p *PV, events Events, snap wire.Snapshot)
}

// ChangeFunc is the change monitor. It is called once per update that
// raised events, whether or not anyone registered interest.
type ChangeFunc func(p *PV, events Events, attrs Attributes)

// delivery is the result of phase one, handed to phase two.
type delivery struct {
	events Events
	attrs  Attributes

	// post is the drained set to publish; empty when publishing is off.
	post   Events
	snap   wire.Snapshot
	encErr error
}

// commit is phase one: it applies u under the lock, accumulates the raised
// events, drains them if publishing is enabled and queues the delivery.
func (p *PV) commit(u Update) (Events, error) {
	p.mu.Lock()
	c, err := p.compute(p.attrs, p.count, u)
	if err != nil {
		p.mu.Unlock()
		return EventNone, err
	}
	p.attrs = c.attrs
	p.count = c.count
	p.events |= c.events

	if c.events != EventNone {
		d := delivery{events: c.events}
		if p.onChange != nil {
			d.attrs = p.attrs.clone()
		}
		if p.publish {
			d.post = p.events
			p.events = EventNone
			if p.sink != nil {
				d.snap, d.encErr = Encode(&p.attrs, p.enc)
			}
		}
		p.queue = append(p.queue, d)
	}
	p.mu.Unlock()

	p.flush()
	return c.events, nil
}

// flush is phase two: it delivers queued deliveries in order with the lock
// released. Only one goroutine flushes at a time; deliveries queued by
// re-entrant callbacks or by other goroutines meanwhile are delivered by
// the current flusher.
func (p *PV) flush() {
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return
	}
	p.flushing = true
	defer func() {
		if r := recover(); r != nil {
			p.mu.Lock()
			p.flushing = false
			p.mu.Unlock()
			panic(r)
		}
	}()

	for len(p.queue) > 0 {
		d := p.queue[0]
		p.queue[0] = delivery{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.deliver(d)

		p.mu.Lock()
	}
	p.queue = nil
	p.flushing = false
	p.mu.Unlock()
}

func (p *PV) deliver(d delivery) {
	if p.onChange != nil {
		p.onChange(p, d.events, d.attrs)
	}
	if d.post == EventNone || p.sink == nil {
		return
	}
	if d.encErr != nil {
		p.reportError(log.ErrorKindEncoding, d.encErr, "post event")
		return
	}
	p.sink.PostEvent(p, d.post, d.snap)
}

// reportError records an engine error through the protocol logger.
func (p *PV) reportError(kind log.ErrorKind, err error, context string) {
	reportError(p.logger, p.name, kind, err, context)
}

func reportError(l log.Logger, name string, kind log.ErrorKind, err error, context string) {
	l.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerEngine,
		Category:  log.CategoryError,
		PV:        name,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEngine,
			Message: err.Error(),
			Kind:    kind,
			Context: context,
		},
	})
}

// InterestRegister enables publishing. Events accumulated while publishing
// was disabled are discarded, not replayed. It is idempotent.
func (p *PV) InterestRegister() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.publish {
		p.publish = true
		p.events = EventNone
	}
}

// InterestDelete disables publishing. It is idempotent.
func (p *PV) InterestDelete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publish = false
}

// Publishing reports whether publishing is enabled.
func (p *PV) Publishing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publish
}

// Outstanding returns the accumulated, undrained event set. It is empty
// while publishing is enabled.
func (p *PV) Outstanding() Events {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}
