// Package pvdb loads declarative PV databases from YAML.
//
// A database lists PVs with their type, element count, initial attributes
// and serving options:
//
//	protocol: "4.13"
//	defaults:
//	  encoding: latin1
//	pvs:
//	  - name: TEMP:1
//	    type: double
//	    value: 21.5
//	    unit: degC
//	    precision: 2
//	    warning_limits: [10, 30]
//	    alarm_limits: [5, 35]
//	    aliases: [T1]
//	  - name: MODE
//	    type: enum
//	    enum_strings: [Off, On, Standby]
//	    value: Off
//	  - name: SETPOINT
//	    type: int
//	    write_delay: 500ms
//
// Every validation failure wraps pv.ErrConfiguration.
package pvdb

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/server"
	"github.com/chanaccess/cas-go/pkg/version"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// Database is a parsed PV database file.
type Database struct {
	// Protocol optionally pins the Channel Access protocol version the
	// database was written for. Only the major version must match.
	Protocol string       `yaml:"protocol"`
	Defaults Defaults     `yaml:"defaults"`
	PVs      []Definition `yaml:"pvs"`
}

// Defaults apply to every definition that leaves the field unset.
type Defaults struct {
	Encoding string `yaml:"encoding"`
}

// Definition describes one PV.
type Definition struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Count int    `yaml:"count"`

	// Value is a scalar or a list. Enum values may be given by label.
	Value any `yaml:"value"`

	Unit          *string   `yaml:"unit"`
	Precision     *int16    `yaml:"precision"`
	EnumStrings   []string  `yaml:"enum_strings"`
	DisplayLimits []float64 `yaml:"display_limits"`
	ControlLimits []float64 `yaml:"control_limits"`
	WarningLimits []float64 `yaml:"warning_limits"`
	AlarmLimits   []float64 `yaml:"alarm_limits"`

	ValueDeadband   float64 `yaml:"value_deadband"`
	ArchiveDeadband float64 `yaml:"archive_deadband"`

	Encoding     string   `yaml:"encoding"`
	ReadOnly     bool     `yaml:"read_only"`
	RejectWrites bool     `yaml:"reject_writes"`
	Aliases      []string `yaml:"aliases"`

	// WriteDelay defers every remote write and applies it after the
	// duration, e.g. "500ms".
	WriteDelay string `yaml:"write_delay"`

	// Simulate names a producer the reference server drives this PV with.
	Simulate *Simulation `yaml:"simulate"`
}

// Simulation parameters for the reference server's producer loop.
type Simulation struct {
	Kind      string  `yaml:"kind"` // sine, ramp, random or toggle
	Period    string  `yaml:"period"`
	Amplitude float64 `yaml:"amplitude"`
	Offset    float64 `yaml:"offset"`
}

// Parse parses and validates a database from YAML bytes.
func Parse(data []byte) (*Database, error) {
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: parsing pv database: %w", pv.ErrConfiguration, err)
	}
	if err := db.Validate(); err != nil {
		return nil, err
	}
	return &db, nil
}

// Load reads and parses a database file.
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the protocol pin, names and that every definition yields
// a valid PV.
func (db *Database) Validate() error {
	if db.Protocol != "" {
		want, err := version.Parse(db.Protocol)
		if err != nil {
			return fmt.Errorf("%w: %w", pv.ErrConfiguration, err)
		}
		cur, _ := version.Parse(version.Current)
		if !cur.Compatible(want) {
			return fmt.Errorf("%w: database targets protocol %s, server speaks %s", pv.ErrConfiguration, want, cur)
		}
	}

	var defaultEnc *wire.Encoding
	if db.Defaults.Encoding != "" {
		enc, err := wire.LookupEncoding(db.Defaults.Encoding)
		if err != nil {
			return fmt.Errorf("%w: defaults: %w", pv.ErrConfiguration, err)
		}
		defaultEnc = enc
	}

	seen := make(map[string]bool, len(db.PVs))
	var errs []error
	for i := range db.PVs {
		d := &db.PVs[i]
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%w: pvs[%d]: missing name", pv.ErrConfiguration, i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("%w: %s: duplicate name", pv.ErrConfiguration, d.Name))
		}
		seen[d.Name] = true
		cfg, err := d.Config(defaultEnc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// Initial attributes are only checked against the type by the store.
		if _, err := pv.New(d.Name, cfg); err != nil {
			errs = append(errs, err)
		}
	}
	for i := range db.PVs {
		for _, alias := range db.PVs[i].Aliases {
			if seen[alias] {
				errs = append(errs, fmt.Errorf("%w: alias %s shadows a PV name", pv.ErrConfiguration, alias))
			}
		}
	}
	return errors.Join(errs...)
}

// Encoding returns the database default encoding, or nil.
func (db *Database) Encoding() (*wire.Encoding, error) {
	if db.Defaults.Encoding == "" {
		return nil, nil
	}
	return wire.LookupEncoding(db.Defaults.Encoding)
}

// Config converts the definition to a PV configuration. defaultEnc is used
// when the definition names no encoding; nil leaves the choice to the
// server.
func (d *Definition) Config(defaultEnc *wire.Encoding) (pv.Config, error) {
	cfg, err := d.config(defaultEnc)
	if err != nil {
		return pv.Config{}, fmt.Errorf("%w: %s: %w", pv.ErrConfiguration, d.Name, err)
	}
	return cfg, nil
}

func (d *Definition) config(defaultEnc *wire.Encoding) (pv.Config, error) {
	typ, err := pv.ParseType(d.Type)
	if err != nil {
		return pv.Config{}, err
	}
	enc := defaultEnc
	if d.Encoding != "" {
		if enc, err = wire.LookupEncoding(d.Encoding); err != nil {
			return pv.Config{}, err
		}
	}
	raw := enc != nil && enc.IsRaw()
	text := func(s string) pv.Text {
		if raw {
			return pv.RawText([]byte(s))
		}
		return pv.TextOf(s)
	}

	u := pv.NewUpdate()
	if d.Value != nil {
		v, err := convertValue(typ, d.Value, text)
		if err != nil {
			return pv.Config{}, err
		}
		u = u.WithValue(v)
	}
	if d.Unit != nil {
		u = u.WithUnit(text(*d.Unit))
	}
	if d.Precision != nil {
		u = u.WithPrecision(*d.Precision)
	}
	if d.EnumStrings != nil {
		ts := make([]pv.Text, len(d.EnumStrings))
		for i, s := range d.EnumStrings {
			ts[i] = text(s)
		}
		u = u.WithEnumStrings(ts...)
	}

	limits := []struct {
		name string
		l    []float64
		with func(pv.Update, pv.Limits) pv.Update
	}{
		{"display_limits", d.DisplayLimits, pv.Update.WithDisplayLimits},
		{"control_limits", d.ControlLimits, pv.Update.WithControlLimits},
		{"warning_limits", d.WarningLimits, pv.Update.WithWarningLimits},
		{"alarm_limits", d.AlarmLimits, pv.Update.WithAlarmLimits},
	}
	for _, lim := range limits {
		if lim.l == nil {
			continue
		}
		if len(lim.l) != 2 {
			return pv.Config{}, fmt.Errorf("%s: want [low, high], got %d values", lim.name, len(lim.l))
		}
		u = lim.with(u, pv.Limits{Low: lim.l[0], High: lim.l[1]})
	}

	if d.Simulate != nil {
		if _, err := ParseSimulation(d.Simulate); err != nil {
			return pv.Config{}, err
		}
	}

	cfg := pv.Config{
		Type:            typ,
		Count:           d.Count,
		Attributes:      u,
		ValueDeadband:   d.ValueDeadband,
		ArchiveDeadband: d.ArchiveDeadband,
		Encoding:        enc,
		ReadOnly:        d.ReadOnly,
	}
	switch {
	case d.RejectWrites && d.WriteDelay != "":
		return pv.Config{}, errors.New("reject_writes and write_delay are exclusive")
	case d.RejectWrites:
		cfg.WriteHandler = pv.FailingWriteHandler
	case d.WriteDelay != "":
		delay, err := time.ParseDuration(d.WriteDelay)
		if err != nil {
			return pv.Config{}, fmt.Errorf("write_delay: %w", err)
		}
		if delay <= 0 {
			return pv.Config{}, fmt.Errorf("write_delay must be positive, got %s", delay)
		}
		cfg.WriteHandler = DeferredWriteHandler(delay)
	}
	return cfg, nil
}

func convertValue(typ pv.Type, raw any, text func(string) pv.Text) (pv.Value, error) {
	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return pv.Value{}, errors.New("value: empty list")
		}
		ints := make([]int64, 0, len(list))
		floats := make([]float64, 0, len(list))
		allInts := true
		for i, el := range list {
			switch n := el.(type) {
			case int:
				ints = append(ints, int64(n))
				floats = append(floats, float64(n))
			case float64:
				allInts = false
				floats = append(floats, n)
			default:
				return pv.Value{}, fmt.Errorf("value[%d]: want a number, got %T", i, el)
			}
		}
		if allInts && !typ.IsFloating() {
			return pv.Ints(ints...), nil
		}
		return pv.Floats(floats...), nil
	}

	switch v := raw.(type) {
	case int:
		return pv.Int(int64(v)), nil
	case float64:
		return pv.Float(v), nil
	case string:
		return pv.TextValue(text(v)), nil
	case bool:
		if v {
			return pv.Int(1), nil
		}
		return pv.Int(0), nil
	default:
		return pv.Value{}, fmt.Errorf("value: unsupported %T", raw)
	}
}

// Install creates every PV of db on srv and adds their aliases. The
// returned PVs must be kept reachable by the caller; the server only holds
// weak references.
func Install(srv *server.Server, db *Database) ([]*pv.PV, error) {
	defaultEnc, err := db.Encoding()
	if err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", pv.ErrConfiguration, err)
	}

	pvs := make([]*pv.PV, 0, len(db.PVs))
	for i := range db.PVs {
		d := &db.PVs[i]
		cfg, err := d.Config(defaultEnc)
		if err != nil {
			return pvs, err
		}
		p, err := srv.CreatePV(d.Name, cfg)
		if err != nil {
			return pvs, err
		}
		pvs = append(pvs, p)
		for _, alias := range d.Aliases {
			if err := srv.AddAlias(alias, d.Name); err != nil {
				return pvs, fmt.Errorf("%w: %s: alias %s: %w", pv.ErrConfiguration, d.Name, alias, err)
			}
		}
	}
	return pvs, nil
}
