package pv

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// Default float comparison tolerances.
const (
	DefaultRelativeTolerance = 1e-5
	DefaultAbsoluteTolerance = 1e-8
)

// Config configures a PV at creation.
type Config struct {
	// Type is the element type.
	Type Type

	// Count is the element count; 0 means 1. A PV created with Count > 1
	// is an array PV and may be resized by replacing its whole value.
	Count int

	// Attributes overrides the default attributes.
	Attributes Update

	// ValueDeadband and ArchiveDeadband are the minimum numeric change
	// raising VALUE and ARCHIVE events.
	ValueDeadband   float64
	ArchiveDeadband float64

	// RelativeTolerance and AbsoluteTolerance control float equality.
	// Zero selects the defaults.
	RelativeTolerance float64
	AbsoluteTolerance float64

	// Encoding is the text encoding; nil means UTF-8. wire.RawBytes
	// requires text attributes in raw byte form.
	Encoding *wire.Encoding

	// ReadOnly rejects all remote writes.
	ReadOnly bool

	// WriteHandler decides remote writes; nil accepts them as is.
	WriteHandler WriteHandler

	// OnChange is the change monitor callback.
	OnChange ChangeFunc

	// Sink receives posted events.
	Sink EventSink

	// Logger receives engine error events; nil disables them.
	Logger log.Logger
}

var nextID atomic.Uint64

// PV is a process variable. It is safe for concurrent use.
type PV struct {
	id        uint64
	name      string
	typ       Type
	resizable bool
	enc       *wire.Encoding

	valueDeadband   float64
	archiveDeadband float64
	relTol          float64
	absTol          float64

	readOnly bool
	handler  WriteHandler
	onChange ChangeFunc
	sink     EventSink
	logger   log.Logger

	mu       sync.Mutex
	attrs    Attributes
	count    int
	events   Events
	publish  bool
	closed   bool
	onClose  []func()
	queue    []delivery
	flushing bool

	pending *pendingSet
	cleanup runtime.Cleanup
}

// New creates a PV. Configuration problems, including initial attributes
// the store rejects, fail with ErrConfiguration.
func New(name string, cfg Config) (*PV, error) {
	if err := validateConfig(name, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, name, err)
	}

	p := &PV{
		id:              nextID.Add(1),
		name:            name,
		typ:             cfg.Type,
		resizable:       cfg.Count > 1,
		enc:             cfg.Encoding,
		valueDeadband:   cfg.ValueDeadband,
		archiveDeadband: cfg.ArchiveDeadband,
		relTol:          cfg.RelativeTolerance,
		absTol:          cfg.AbsoluteTolerance,
		readOnly:        cfg.ReadOnly,
		handler:         cfg.WriteHandler,
		onChange:        cfg.OnChange,
		sink:            cfg.Sink,
		logger:          cfg.Logger,
		count:           cfg.Count,
	}
	p.attrs = defaultAttributes(p.typ, p.count, p.enc.IsRaw(), time.Now())

	if !cfg.Attributes.IsEmpty() {
		c, err := p.compute(p.attrs, p.count, cfg.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, name, err)
		}
		p.attrs, p.count = c.attrs, c.count
	}

	p.pending = newPendingSet(name, p.logger)
	p.cleanup = runtime.AddCleanup(p, func(s *pendingSet) { s.abandon("collected") }, p.pending)
	return p, nil
}

func validateConfig(name string, cfg *Config) error {
	if name == "" {
		return errors.New("empty name")
	}
	if !cfg.Type.Valid() {
		return fmt.Errorf("invalid type %s", cfg.Type)
	}
	if cfg.Count == 0 {
		cfg.Count = 1
	}
	if cfg.Count < 0 {
		return fmt.Errorf("negative count %d", cfg.Count)
	}
	if cfg.Type == TypeString && cfg.Count != 1 {
		return fmt.Errorf("string PVs are scalar, got count %d", cfg.Count)
	}
	for _, d := range []float64{cfg.ValueDeadband, cfg.ArchiveDeadband} {
		if d < 0 || math.IsNaN(d) {
			return fmt.Errorf("invalid deadband %g", d)
		}
	}
	if cfg.RelativeTolerance < 0 || cfg.AbsoluteTolerance < 0 {
		return errors.New("negative tolerance")
	}
	if cfg.RelativeTolerance == 0 {
		cfg.RelativeTolerance = DefaultRelativeTolerance
	}
	if cfg.AbsoluteTolerance == 0 {
		cfg.AbsoluteTolerance = DefaultAbsoluteTolerance
	}
	if cfg.Encoding == nil {
		cfg.Encoding = wire.UTF8
	}
	if !cfg.Encoding.IsRaw() {
		if _, err := cfg.Encoding.Encode(name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NoopLogger{}
	}
	return nil
}

// Name returns the PV name.
func (p *PV) Name() string { return p.name }

// Type returns the element type.
func (p *PV) Type() Type { return p.typ }

// IsEnum reports whether the PV is of enum type.
func (p *PV) IsEnum() bool { return p.typ == TypeEnum }

// ReadOnly reports whether remote writes are rejected.
func (p *PV) ReadOnly() bool { return p.readOnly }

// Encoding returns the text encoding.
func (p *PV) Encoding() *wire.Encoding { return p.enc }

// Count returns the current element count.
func (p *PV) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Attributes returns a point-in-time copy of the attribute store.
func (p *PV) Attributes() Attributes {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.clone()
}

// Value returns the current value.
func (p *PV) Value() Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Value.clone()
}

// ValueTimestamp returns the value together with its timestamp.
func (p *PV) ValueTimestamp() (Value, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Value.clone(), p.attrs.Timestamp
}

// Timestamp returns the time of the last value change.
func (p *PV) Timestamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Timestamp
}

// Status returns the alarm status.
func (p *PV) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Status
}

// Severity returns the alarm severity.
func (p *PV) Severity() Severity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Severity
}

// StatusSeverity returns status and severity as one consistent pair.
func (p *PV) StatusSeverity() (Status, Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Status, p.attrs.Severity
}

// Unit returns the engineering unit.
func (p *PV) Unit() Text {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Unit
}

// Precision returns the display precision.
func (p *PV) Precision() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.Precision
}

// EnumStrings returns the enumeration strings.
func (p *PV) EnumStrings() []Text {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.attrs.EnumStrings)
}

// DisplayLimits returns the display limits.
func (p *PV) DisplayLimits() Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.DisplayLimits
}

// ControlLimits returns the control limits.
func (p *PV) ControlLimits() Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.ControlLimits
}

// WarningLimits returns the warning limits.
func (p *PV) WarningLimits() Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.WarningLimits
}

// AlarmLimits returns the alarm limits.
func (p *PV) AlarmLimits() Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attrs.AlarmLimits
}

// EnumString returns the enum string selected by a scalar enum value.
func (p *PV) EnumString() (Text, error) {
	if p.typ != TypeEnum {
		return Text{}, fmt.Errorf("%w: %s is not an enum PV", ErrInvalidAttribute, p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, _ := p.attrs.Value.Int()
	if idx < 0 || idx >= int64(len(p.attrs.EnumStrings)) {
		return Text{}, fmt.Errorf("%w: enum index %d outside %d strings", ErrInvalidAttribute, idx, len(p.attrs.EnumStrings))
	}
	return p.attrs.EnumStrings[idx], nil
}

// Apply applies a partial attribute update as one logical update and
// returns the events it raised. On error the store is unchanged.
func (p *PV) Apply(u Update) (Events, error) {
	return p.commit(u)
}

// SetValue sets the value and stamps it with the current time.
func (p *PV) SetValue(v Value) error {
	return p.SetValueTimestamp(v, time.Now())
}

// SetValueTimestamp sets the value and its timestamp.
func (p *PV) SetValueTimestamp(v Value, ts time.Time) error {
	_, err := p.commit(NewUpdate().WithValue(v).WithTimestamp(ts))
	return err
}

// SetStatus sets the alarm status.
func (p *PV) SetStatus(s Status) error {
	_, err := p.commit(NewUpdate().WithStatus(s))
	return err
}

// SetSeverity sets the alarm severity.
func (p *PV) SetSeverity(s Severity) error {
	_, err := p.commit(NewUpdate().WithSeverity(s))
	return err
}

// SetStatusSeverity sets status and severity together.
func (p *PV) SetStatusSeverity(status Status, severity Severity) error {
	_, err := p.commit(NewUpdate().WithStatus(status).WithSeverity(severity))
	return err
}

// SetUnit sets the engineering unit.
func (p *PV) SetUnit(t Text) error {
	_, err := p.commit(NewUpdate().WithUnit(t))
	return err
}

// SetPrecision sets the display precision.
func (p *PV) SetPrecision(prec int16) error {
	_, err := p.commit(NewUpdate().WithPrecision(prec))
	return err
}

// SetEnumStrings sets the enumeration strings.
func (p *PV) SetEnumStrings(s ...Text) error {
	_, err := p.commit(NewUpdate().WithEnumStrings(s...))
	return err
}

// SetDisplayLimits sets the display limits.
func (p *PV) SetDisplayLimits(l Limits) error {
	_, err := p.commit(NewUpdate().WithDisplayLimits(l))
	return err
}

// SetControlLimits sets the control limits and re-constrains the value.
func (p *PV) SetControlLimits(l Limits) error {
	_, err := p.commit(NewUpdate().WithControlLimits(l))
	return err
}

// SetWarningLimits sets the warning limits and re-evaluates the alarm state.
func (p *PV) SetWarningLimits(l Limits) error {
	_, err := p.commit(NewUpdate().WithWarningLimits(l))
	return err
}

// SetAlarmLimits sets the alarm limits and re-evaluates the alarm state.
func (p *PV) SetAlarmLimits(l Limits) error {
	_, err := p.commit(NewUpdate().WithAlarmLimits(l))
	return err
}

// Read returns the wire form of the current attributes.
func (p *PV) Read() (wire.Snapshot, error) {
	p.mu.Lock()
	s, err := Encode(&p.attrs, p.enc)
	p.mu.Unlock()
	if err != nil {
		p.reportError(log.ErrorKindEncoding, err, "read")
		return wire.Snapshot{}, err
	}
	return s, nil
}

// Pending returns the number of unresolved deferred writes.
func (p *PV) Pending() int { return p.pending.len() }

// OnClose registers a hook run once when the PV is closed.
func (p *PV) OnClose(hook func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		hook()
		return
	}
	p.onClose = append(p.onClose, hook)
	p.mu.Unlock()
}

func (p *PV) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close releases the PV: close hooks run, later writes are rejected, and
// every unresolved deferred write fails. If any were unresolved Close
// returns ErrProtocolMisuse. Close is idempotent.
func (p *PV) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	hooks := p.onClose
	p.onClose = nil
	p.mu.Unlock()

	p.cleanup.Stop()
	for _, h := range hooks {
		h()
	}
	if n := p.pending.abandon("closed"); n > 0 {
		return fmt.Errorf("%w: %s closed with %d deferred writes unresolved", ErrProtocolMisuse, p.name, n)
	}
	return nil
}

// String returns the PV name and type.
func (p *PV) String() string {
	return fmt.Sprintf("%s (%s[%d])", p.name, p.typ, p.Count())
}
