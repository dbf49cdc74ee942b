package pv

import (
	"slices"
	"strings"
	"time"

	"github.com/chanaccess/cas-go/pkg/wire"
)

// Field names one attribute of the store. The bit layout matches the wire
// snapshot presence mask.
type Field uint16

const (
	FieldValue         = Field(wire.FieldValue)
	FieldStatus        = Field(wire.FieldStatus)
	FieldSeverity      = Field(wire.FieldSeverity)
	FieldTimestamp     = Field(wire.FieldTimestamp)
	FieldUnit          = Field(wire.FieldUnit)
	FieldPrecision     = Field(wire.FieldPrecision)
	FieldEnumStrings   = Field(wire.FieldEnumStrings)
	FieldDisplayLimits = Field(wire.FieldDisplayLimits)
	FieldControlLimits = Field(wire.FieldControlLimits)
	FieldWarningLimits = Field(wire.FieldWarningLimits)
	FieldAlarmLimits   = Field(wire.FieldAlarmLimits)

	// FieldLimits is the set of all four limit pairs.
	FieldLimits = FieldDisplayLimits | FieldControlLimits | FieldWarningLimits | FieldAlarmLimits

	// FieldProperties is the set of fields whose change raises PROPERTY.
	FieldProperties = FieldUnit | FieldPrecision | FieldEnumStrings | FieldLimits
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldValue, "value"},
	{FieldStatus, "status"},
	{FieldSeverity, "severity"},
	{FieldTimestamp, "timestamp"},
	{FieldUnit, "unit"},
	{FieldPrecision, "precision"},
	{FieldEnumStrings, "enum_strings"},
	{FieldDisplayLimits, "display_limits"},
	{FieldControlLimits, "control_limits"},
	{FieldWarningLimits, "warning_limits"},
	{FieldAlarmLimits, "alarm_limits"},
}

// String renders the set as "value|status".
func (f Field) String() string {
	var parts []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Attributes is a point-in-time copy of a PV's attribute store. Fields
// holds the presence mask; fields not in the mask are zero.
type Attributes struct {
	Fields Field

	Value     Value
	Status    Status
	Severity  Severity
	Timestamp time.Time

	Unit        Text
	Precision   int16
	EnumStrings []Text

	DisplayLimits Limits
	ControlLimits Limits
	WarningLimits Limits
	AlarmLimits   Limits
}

// Has reports whether field f is present.
func (a Attributes) Has(f Field) bool { return a.Fields&f == f }

func (a Attributes) clone() Attributes {
	a.Value = a.Value.clone()
	a.EnumStrings = slices.Clone(a.EnumStrings)
	return a
}

// limits returns a pointer to the limit pair named by a single limit field.
func (a *Attributes) limits(f Field) *Limits {
	switch f {
	case FieldDisplayLimits:
		return &a.DisplayLimits
	case FieldControlLimits:
		return &a.ControlLimits
	case FieldWarningLimits:
		return &a.WarningLimits
	case FieldAlarmLimits:
		return &a.AlarmLimits
	}
	return nil
}

// defaultAttributes returns the attribute store of a new PV before any
// overrides: status UDF, severity INVALID, zero value, empty unit and four
// inactive limit pairs. Text fields take the raw form when raw is set.
func defaultAttributes(typ Type, count int, raw bool, now time.Time) Attributes {
	empty := TextOf("")
	if raw {
		empty = RawText(nil)
	}
	a := Attributes{
		Fields:    typ.Fields(),
		Status:    StatusUDF,
		Severity:  SeverityInvalid,
		Timestamp: now,
	}
	if typ.IsNumeric() {
		a.Unit = empty
	}
	switch {
	case typ == TypeString:
		a.Value = TextValue(empty)
	case typ.IsFloating() && count > 1:
		a.Value = Floats(make([]float64, count)...)
	case typ.IsFloating():
		a.Value = Float(0)
	case count > 1:
		a.Value = Ints(make([]int64, count)...)
	default:
		a.Value = Int(0)
	}
	if typ == TypeEnum {
		a.EnumStrings = make([]Text, count)
		for i := range a.EnumStrings {
			a.EnumStrings[i] = empty
		}
	}
	return a
}

// Update is a partial attribute set. The zero Update changes nothing.
// Setters return a modified copy so updates can be built in one expression:
//
//	pv.NewUpdate().WithValue(pv.Float(1.5)).WithUnit(pv.TextOf("mm"))
type Update struct {
	a Attributes
}

// NewUpdate returns an empty update.
func NewUpdate() Update { return Update{} }

// Fields returns the fields the update sets.
func (u Update) Fields() Field { return u.a.Fields }

// IsEmpty reports whether the update sets nothing.
func (u Update) IsEmpty() bool { return u.a.Fields == 0 }

func (u Update) set(f Field) Update {
	u.a.Fields |= f
	return u
}

// WithValue sets the value.
func (u Update) WithValue(v Value) Update {
	u.a.Value = v.clone()
	return u.set(FieldValue)
}

// WithStatus sets the alarm status.
func (u Update) WithStatus(s Status) Update {
	u.a.Status = s
	return u.set(FieldStatus)
}

// WithSeverity sets the alarm severity.
func (u Update) WithSeverity(s Severity) Update {
	u.a.Severity = s
	return u.set(FieldSeverity)
}

// WithTimestamp sets the timestamp.
func (u Update) WithTimestamp(t time.Time) Update {
	u.a.Timestamp = t
	return u.set(FieldTimestamp)
}

// WithUnit sets the engineering unit.
func (u Update) WithUnit(t Text) Update {
	u.a.Unit = t
	return u.set(FieldUnit)
}

// WithPrecision sets the display precision.
func (u Update) WithPrecision(p int16) Update {
	u.a.Precision = p
	return u.set(FieldPrecision)
}

// WithEnumStrings sets the enumeration strings.
func (u Update) WithEnumStrings(s ...Text) Update {
	u.a.EnumStrings = slices.Clone(s)
	return u.set(FieldEnumStrings)
}

// WithDisplayLimits sets the display limits.
func (u Update) WithDisplayLimits(l Limits) Update {
	u.a.DisplayLimits = l
	return u.set(FieldDisplayLimits)
}

// WithControlLimits sets the control limits.
func (u Update) WithControlLimits(l Limits) Update {
	u.a.ControlLimits = l
	return u.set(FieldControlLimits)
}

// WithWarningLimits sets the warning limits.
func (u Update) WithWarningLimits(l Limits) Update {
	u.a.WarningLimits = l
	return u.set(FieldWarningLimits)
}

// WithAlarmLimits sets the alarm limits.
func (u Update) WithAlarmLimits(l Limits) Update {
	u.a.AlarmLimits = l
	return u.set(FieldAlarmLimits)
}

// Merge returns u with every field set in o overriding u.
func (u Update) Merge(o Update) Update {
	for _, fn := range fieldNames {
		if o.a.Fields&fn.f == 0 {
			continue
		}
		switch fn.f {
		case FieldValue:
			u = u.WithValue(o.a.Value)
		case FieldStatus:
			u = u.WithStatus(o.a.Status)
		case FieldSeverity:
			u = u.WithSeverity(o.a.Severity)
		case FieldTimestamp:
			u = u.WithTimestamp(o.a.Timestamp)
		case FieldUnit:
			u = u.WithUnit(o.a.Unit)
		case FieldPrecision:
			u = u.WithPrecision(o.a.Precision)
		case FieldEnumStrings:
			u = u.WithEnumStrings(o.a.EnumStrings...)
		default:
			*u.a.limits(fn.f) = *o.a.limits(fn.f)
			u = u.set(fn.f)
		}
	}
	return u
}
