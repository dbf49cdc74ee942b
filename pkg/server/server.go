package server

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/registry"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// Server errors.
var (
	// ErrNotFound is returned for names that resolve to no live PV.
	ErrNotFound = errors.New("pv not found")

	// ErrShutdown is returned by CreatePV after Shutdown.
	ErrShutdown = errors.New("server shut down")
)

// ExistsResponse answers a name search.
type ExistsResponse uint8

const (
	ExistsHere ExistsResponse = iota
	NotExistsHere
)

// String returns the response name.
func (r ExistsResponse) String() string {
	switch r {
	case ExistsHere:
		return "EXISTS_HERE"
	case NotExistsHere:
		return "NOT_EXISTS_HERE"
	default:
		return "UNKNOWN"
	}
}

// Server is a registry of PVs plus the defaults new PVs inherit.
type Server struct {
	reg       *registry.Registry
	enc       *wire.Encoding
	transport pv.EventSink
	logger    log.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a server. Without options PVs use UTF-8 text, post events
// nowhere and protocol logging is disabled.
func New(opts ...Option) *Server {
	s := &Server{
		reg:    registry.New(),
		enc:    wire.UTF8,
		logger: log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encoding returns the default text encoding.
func (s *Server) Encoding() *wire.Encoding { return s.enc }

// Registry returns the server's name table.
func (s *Server) Registry() *registry.Registry { return s.reg }

// lifetime tracks whether a PV was released explicitly, so that its later
// collection is not logged twice.
type lifetime struct {
	s      *Server
	name   string
	closed atomic.Bool
}

// CreatePV creates a PV with the server defaults filled in and registers it
// under name. An existing PV of the same name is replaced silently.
//
// The server keeps only a weak reference: the caller owns the PV and must
// keep it reachable for as long as it should be served.
func (s *Server) CreatePV(name string, cfg pv.Config) (*pv.PV, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrShutdown
	}

	if cfg.Encoding == nil {
		cfg.Encoding = s.enc
	}
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	next := cfg.Sink
	if next == nil {
		next = s.transport
	}
	cfg.Sink = &monitorSink{logger: s.logger, next: next}

	p, err := pv.New(name, cfg)
	if err != nil {
		s.logError(name, log.ErrorKindConfiguration, err, "create pv")
		return nil, err
	}
	if err := s.reg.Register(name, p); err != nil {
		return nil, err
	}

	lt := &lifetime{s: s, name: name}
	p.OnClose(func() {
		lt.closed.Store(true)
		lt.s.logLifecycle(lt.name, &log.LifecycleEvent{Action: log.LifecycleClosed})
	})
	runtime.AddCleanup(p, func(lt *lifetime) {
		if !lt.closed.Load() {
			lt.s.logLifecycle(lt.name, &log.LifecycleEvent{Action: log.LifecycleCollected})
		}
	}, lt)

	s.logLifecycle(name, &log.LifecycleEvent{
		Action: log.LifecycleCreated,
		Type:   p.Type().String(),
		Count:  p.Count(),
	})
	return p, nil
}

// Exists answers a name search.
func (s *Server) Exists(name string) ExistsResponse {
	if s.reg.Exists(name) {
		return ExistsHere
	}
	return NotExistsHere
}

// Attach returns the live PV for name, resolving aliases.
func (s *Server) Attach(name string) (*pv.PV, error) {
	p, ok := s.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

// Read returns the wire snapshot of the named PV.
func (s *Server) Read(name string) (wire.Snapshot, error) {
	p, err := s.Attach(name)
	if err != nil {
		return wire.Snapshot{}, err
	}
	return p.Read()
}

// Write forwards a remote write from peer to the named PV. A nil ts means
// the time of receipt. onDone, if set,
// receives the outcome exactly once: immediately for direct outcomes or
// when a deferred write is resolved.
func (s *Server) Write(peer, name string, v wire.Value, ts *wire.TimeStamp, onDone func(error)) (pv.WriteStatus, error) {
	p, err := s.Attach(name)
	if err != nil {
		return pv.WriteRejected, err
	}

	var wc *pv.WriteContext
	wc = pv.NewWriteContext(func(err error) {
		outcome, reason := log.WriteAccepted, ""
		if err != nil {
			outcome, reason = log.WriteRejected, err.Error()
		}
		s.logWrite(peer, name, wc.ID().String(), outcome, reason)
		if onDone != nil {
			onDone(err)
		}
	})

	wc.OnDeferred(func() {
		s.logWrite(peer, name, wc.ID().String(), log.WritePending, "")
	})

	return p.Write(wc, v, ts)
}

// InterestRegister enables publishing for the named PV on behalf of peer.
func (s *Server) InterestRegister(peer, name string) error {
	p, err := s.Attach(name)
	if err != nil {
		return err
	}
	p.InterestRegister()
	s.logInterest(peer, name, true)
	return nil
}

// InterestDelete disables publishing for the named PV on behalf of peer.
func (s *Server) InterestDelete(peer, name string) error {
	p, err := s.Attach(name)
	if err != nil {
		return err
	}
	p.InterestDelete()
	s.logInterest(peer, name, false)
	return nil
}

// AddAlias makes alias resolve to target.
func (s *Server) AddAlias(alias, target string) error {
	if err := s.reg.AddAlias(alias, target); err != nil {
		return err
	}
	s.logLifecycle(alias, &log.LifecycleEvent{Action: log.LifecycleAliasAdded, Target: target})
	return nil
}

// RemoveAlias removes an alias and reports whether it existed.
func (s *Server) RemoveAlias(alias string) bool {
	if !s.reg.RemoveAlias(alias) {
		return false
	}
	s.logLifecycle(alias, &log.LifecycleEvent{Action: log.LifecycleAliasRemoved})
	return true
}

// Aliases returns a copy of the alias table.
func (s *Server) Aliases() map[string]string { return s.reg.Aliases() }

// PVs returns the live PVs ordered by name.
func (s *Server) PVs() []*pv.PV { return s.reg.PVs() }

// Shutdown releases every live PV. Unresolved deferred writes are failed
// and reported; the joined errors are returned. Further CreatePV calls fail.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, p := range s.reg.PVs() {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) logWrite(peer, name, requestID string, outcome log.WriteOutcome, reason string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: peer,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryWrite,
		PV:           name,
		Write: &log.WriteEvent{
			RequestID: requestID,
			Outcome:   outcome,
			Reason:    reason,
		},
	})
}

func (s *Server) logInterest(peer, name string, enabled bool) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: peer,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryInterest,
		PV:           name,
		Interest:     &log.InterestEvent{Enabled: enabled},
	})
}

func (s *Server) logLifecycle(name string, ev *log.LifecycleEvent) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerEngine,
		Category:  log.CategoryLifecycle,
		PV:        name,
		Lifecycle: ev,
	})
}

func (s *Server) logError(name string, kind log.ErrorKind, err error, context string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerEngine,
		Category:  log.CategoryError,
		PV:        name,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEngine,
			Kind:    kind,
			Message: err.Error(),
			Context: context,
		},
	})
}
