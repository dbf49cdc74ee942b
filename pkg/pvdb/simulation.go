package pvdb

import (
	"fmt"
	"time"
)

// SimulationKind selects the waveform of a simulated producer.
type SimulationKind uint8

const (
	SimSine SimulationKind = iota
	SimRamp
	SimRandom
	SimToggle
)

// String returns the kind name used in database files.
func (k SimulationKind) String() string {
	switch k {
	case SimSine:
		return "sine"
	case SimRamp:
		return "ramp"
	case SimRandom:
		return "random"
	case SimToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// Producer is a validated simulation.
type Producer struct {
	Kind      SimulationKind
	Period    time.Duration
	Amplitude float64
	Offset    float64
}

const defaultSimPeriod = 10 * time.Second

// ParseSimulation validates a simulation block. An empty period means ten
// seconds; an amplitude of zero means one.
func ParseSimulation(s *Simulation) (Producer, error) {
	p := Producer{Period: defaultSimPeriod, Amplitude: s.Amplitude, Offset: s.Offset}
	switch s.Kind {
	case "sine", "":
		p.Kind = SimSine
	case "ramp":
		p.Kind = SimRamp
	case "random":
		p.Kind = SimRandom
	case "toggle":
		p.Kind = SimToggle
	default:
		return Producer{}, fmt.Errorf("simulate: unknown kind %q", s.Kind)
	}
	if s.Period != "" {
		d, err := time.ParseDuration(s.Period)
		if err != nil {
			return Producer{}, fmt.Errorf("simulate: period: %w", err)
		}
		if d <= 0 {
			return Producer{}, fmt.Errorf("simulate: period must be positive, got %s", d)
		}
		p.Period = d
	}
	if p.Amplitude == 0 {
		p.Amplitude = 1
	}
	return p, nil
}
