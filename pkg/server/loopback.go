package server

import (
	"sync"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// Update is one event delivered to a Loopback subscriber.
type Update struct {
	PV       string
	Events   pv.Events
	Snapshot wire.Snapshot
}

type subscription struct {
	id   uint64
	mask pv.Events
	fn   func(Update)
}

// Loopback is an in-process transport. Subscribers register per PV name
// with an event mask and receive every posted event that intersects it.
// Callbacks run on the posting goroutine, in post order per PV.
type Loopback struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for events of the PV registered as name. The
// returned function cancels the subscription.
func (l *Loopback) Subscribe(name string, mask pv.Events, fn func(Update)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.subs[name] = append(l.subs[name], subscription{id: id, mask: mask, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		subs := l.subs[name]
		for i, sub := range subs {
			if sub.id == id {
				l.subs[name] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(l.subs[name]) == 0 {
			delete(l.subs, name)
		}
	}
}

// Subscribers returns the number of subscriptions for name.
func (l *Loopback) Subscribers(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[name])
}

// PostEvent implements pv.EventSink.
func (l *Loopback) PostEvent(p *pv.PV, events pv.Events, snap wire.Snapshot) {
	name := p.Name()
	l.mu.Lock()
	subs := append([]subscription(nil), l.subs[name]...)
	l.mu.Unlock()

	for _, sub := range subs {
		if events&sub.mask == 0 {
			continue
		}
		sub.fn(Update{PV: name, Events: events, Snapshot: snap})
	}
}

var _ pv.EventSink = (*Loopback)(nil)
