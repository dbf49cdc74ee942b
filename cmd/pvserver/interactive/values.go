package interactive

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// DefaultMonitorMask is the event mask of a monitor without an explicit one.
const DefaultMonitorMask = pv.EventValue | pv.EventAlarm

// ParseWriteValue converts console arguments to the wire value a client
// would send to p. Text for string and enum PVs is encoded with the PV's
// encoding; enum PVs also take a numeric index.
func ParseWriteValue(p *pv.PV, args []string) (wire.Value, error) {
	if len(args) == 0 {
		return wire.Value{}, fmt.Errorf("no value given")
	}
	typ := p.Type()

	switch {
	case typ == pv.TypeString:
		return textValue(p.Encoding(), strings.Join(args, " "))
	case typ == pv.TypeEnum && len(args) == 1:
		if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			return wire.Int(n), nil
		}
		return textValue(p.Encoding(), args[0])
	}

	array := len(args) > 1 || p.Count() > 1
	if typ.IsIntegral() {
		ints := make([]int64, len(args))
		for i, a := range args {
			n, err := strconv.ParseInt(a, 0, 64)
			if err != nil {
				return floatValue(args, array)
			}
			ints[i] = n
		}
		if array {
			return wire.Ints(ints...), nil
		}
		return wire.Int(ints[0]), nil
	}
	return floatValue(args, array)
}

func floatValue(args []string, array bool) (wire.Value, error) {
	floats := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return wire.Value{}, fmt.Errorf("invalid number %q", a)
		}
		floats[i] = f
	}
	if array {
		return wire.Floats(floats...), nil
	}
	return wire.Float(floats[0]), nil
}

func textValue(enc *wire.Encoding, s string) (wire.Value, error) {
	s = strings.Trim(s, "\"'")
	if enc.IsRaw() {
		return wire.Bytes([]byte(s)), nil
	}
	b, err := enc.Encode(s)
	if err != nil {
		return wire.Value{}, err
	}
	return wire.Bytes(b), nil
}

// ParseMask parses an event mask such as "value|alarm" or "all". Names are
// separated by '|' or ','; "log" is accepted for archive.
func ParseMask(s string) (pv.Events, error) {
	var mask pv.Events
	for _, name := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '|' || r == ',' }) {
		switch name {
		case "value", "v":
			mask |= pv.EventValue
		case "archive", "log", "a":
			mask |= pv.EventArchive
		case "alarm", "al":
			mask |= pv.EventAlarm
		case "property", "prop", "p":
			mask |= pv.EventProperty
		case "all":
			mask |= pv.EventAll
		default:
			return pv.EventNone, fmt.Errorf("unknown event %q (value, archive, alarm, property, all)", name)
		}
	}
	if mask == pv.EventNone {
		return pv.EventNone, fmt.Errorf("empty event mask")
	}
	return mask, nil
}

// formatValue renders a value, adding the label of an enum index.
func formatValue(typ pv.Type, a *pv.Attributes) string {
	s := a.Value.String()
	if typ != pv.TypeEnum || a.Value.IsArray() {
		return s
	}
	if idx, ok := a.Value.Int(); ok && idx >= 0 && idx < int64(len(a.EnumStrings)) {
		return fmt.Sprintf("%s (%s)", s, a.EnumStrings[idx])
	}
	return s
}

// formatLine prints the one-line summary used by read and monitor.
func formatLine(w io.Writer, name string, typ pv.Type, a *pv.Attributes) {
	value := formatValue(typ, a)
	if a.Has(pv.FieldUnit) && a.Unit.String() != "" {
		value += " " + a.Unit.String()
	}
	fmt.Fprintf(w, "%s = %s  [%s/%s]  %s\n",
		name, value, a.Status, a.Severity, a.Timestamp.Format("15:04:05.000"))
}

// formatDetails prints every present attribute.
func formatDetails(w io.Writer, p *pv.PV, a *pv.Attributes) {
	fmt.Fprintf(w, "%s\n", p)
	fmt.Fprintf(w, "  Value:      %s\n", formatValue(p.Type(), a))
	fmt.Fprintf(w, "  Alarm:      %s/%s\n", a.Status, a.Severity)
	fmt.Fprintf(w, "  Timestamp:  %s\n", a.Timestamp.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "  Encoding:   %s\n", p.Encoding())
	if a.Has(pv.FieldUnit) {
		fmt.Fprintf(w, "  Unit:       %q\n", a.Unit.String())
	}
	if a.Has(pv.FieldPrecision) {
		fmt.Fprintf(w, "  Precision:  %d\n", a.Precision)
	}
	if a.Has(pv.FieldEnumStrings) {
		labels := make([]string, len(a.EnumStrings))
		for i, t := range a.EnumStrings {
			labels[i] = t.String()
		}
		fmt.Fprintf(w, "  Enum:       [%s]\n", strings.Join(labels, ", "))
	}
	limits := []struct {
		f    pv.Field
		name string
		l    pv.Limits
	}{
		{pv.FieldDisplayLimits, "Display:", a.DisplayLimits},
		{pv.FieldControlLimits, "Control:", a.ControlLimits},
		{pv.FieldWarningLimits, "Warning:", a.WarningLimits},
		{pv.FieldAlarmLimits, "Alarm lim:", a.AlarmLimits},
	}
	for _, lim := range limits {
		if a.Has(lim.f) {
			fmt.Fprintf(w, "  %-11s %s\n", lim.name, lim.l)
		}
	}
	if p.ReadOnly() {
		fmt.Fprintln(w, "  Read-only")
	}
	if n := p.Pending(); n > 0 {
		fmt.Fprintf(w, "  Pending writes: %d\n", n)
	}
}
