package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chanaccess/cas-go/internal/logger"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/pvdb"
)

// simTarget is one PV driven by a producer.
type simTarget struct {
	pv   *pv.PV
	prod pvdb.Producer
}

// Simulator drives the PVs of a database that carry a simulate block.
// Each target runs in its own goroutine and posts a new value every tick.
type Simulator struct {
	targets []simTarget
	tick    time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// newSimulator collects the simulated PVs. pvs must be the result of
// pvdb.Install for db, in definition order.
func newSimulator(db *pvdb.Database, pvs []*pv.PV, tick time.Duration) (*Simulator, error) {
	if tick <= 0 {
		return nil, fmt.Errorf("simulation tick must be positive, got %s", tick)
	}
	s := &Simulator{tick: tick}
	for i, p := range pvs {
		d := &db.PVs[i]
		if d.Simulate == nil {
			continue
		}
		if !p.Type().IsNumeric() {
			return nil, fmt.Errorf("%s: cannot simulate a %s PV", d.Name, p.Type())
		}
		prod, err := pvdb.ParseSimulation(d.Simulate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		s.targets = append(s.targets, simTarget{pv: p, prod: prod})
	}
	return s, nil
}

// Len returns the number of simulated PVs.
func (s *Simulator) Len() int { return len(s.targets) }

// Start launches the producers. It is a no-op while running.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, target := range s.targets {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, target)
		}()
	}
	logger.InfoKV(ctx, "simulation started", "pvs", len(s.targets), "tick", s.tick)
}

// Stop cancels the producers and waits for them to return.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info(context.Background(), "simulation stopped")
}

// Running reports whether the producers are active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) run(ctx context.Context, target simTarget) {
	ctx = logger.WithKV(ctx, "pv", target.pv.Name(), "kind", target.prod.Kind)
	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(target.pv.Count())))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	start := time.Now()
	x := target.prod.Offset

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			x = sample(target.prod, now.Sub(start), x, rnd)
			if err := target.pv.SetValueTimestamp(simValue(target.pv, x), now); err != nil {
				logger.WarnKV(ctx, "simulated update failed", "error", err)
				continue
			}
			logger.DebugKV(ctx, "simulated update", "value", x)
		}
	}
}

// simValue spreads x over every element of an array PV.
func simValue(p *pv.PV, x float64) pv.Value {
	n := p.Count()
	if n <= 1 {
		return pv.Float(x)
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = x
	}
	return pv.Floats(xs...)
}

// walkStep is the largest random walk step as a fraction of the amplitude.
const walkStep = 0.1

// sample computes the producer output after elapsed time. prev is the
// previous output, from which the random walk steps.
func sample(p pvdb.Producer, elapsed time.Duration, prev float64, rnd *rand.Rand) float64 {
	phase := math.Mod(elapsed.Seconds()/p.Period.Seconds(), 1)
	switch p.Kind {
	case pvdb.SimRamp:
		return p.Offset + p.Amplitude*phase
	case pvdb.SimRandom:
		x := prev + walkStep*p.Amplitude*(2*rnd.Float64()-1)
		return min(max(x, p.Offset-p.Amplitude), p.Offset+p.Amplitude)
	case pvdb.SimToggle:
		if phase < 0.5 {
			return p.Offset
		}
		return p.Offset + p.Amplitude
	default:
		return p.Offset + p.Amplitude*math.Sin(2*math.Pi*phase)
	}
}
