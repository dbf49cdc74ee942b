package server

import (
	"time"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// monitorSink records posted events as protocol events and forwards them
// to the transport.
type monitorSink struct {
	logger log.Logger
	next   pv.EventSink
}

func (m *monitorSink) PostEvent(p *pv.PV, events pv.Events, snap wire.Snapshot) {
	if log.Enabled(m.logger) {
		m.record(p.Name(), events, &snap)
	}
	if m.next != nil {
		m.next.PostEvent(p, events, snap)
	}
}

func (m *monitorSink) record(name string, events pv.Events, snap *wire.Snapshot) {
	data, err := wire.MarshalSnapshot(snap)
	if err != nil {
		m.logger.Log(log.Event{
			Timestamp: time.Now(),
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryError,
			PV:        name,
			Error: &log.ErrorEventData{
				Layer:   log.LayerWire,
				Kind:    log.ErrorKindEncoding,
				Message: err.Error(),
				Context: "frame snapshot",
			},
		})
		return
	}
	m.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerTransport,
		Category:  log.CategoryEvent,
		PV:        name,
		Monitor:   log.NewMonitorEvent(uint8(events), data),
	})
}
