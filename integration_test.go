package cas_test

import (
	"errors"
	"io"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanaccess/cas-go/pkg/log"
	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/pvdb"
	"github.com/chanaccess/cas-go/pkg/server"
	"github.com/chanaccess/cas-go/pkg/wire"
)

const e2eDB = `
pvs:
  - name: TEMP
    type: double
    value: 21.5
    unit: degC
    alarm_limits: [0, 50]
    aliases: [T]
  - name: MODE
    type: enum
    enum_strings: [Off, On]
  - name: SLOW
    type: int
    write_delay: 10ms
  - name: STUCK
    type: int
    write_delay: 1h
`

type e2e struct {
	srv  *server.Server
	lb   *server.Loopback
	pvs  []*pv.PV
	log  *log.FileLogger
	path string
}

func newE2E(t *testing.T) *e2e {
	t.Helper()

	path := filepath.Join(t.TempDir(), "e2e.plog")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { fl.Close() })

	db, err := pvdb.Parse([]byte(e2eDB))
	require.NoError(t, err)

	lb := server.NewLoopback()
	srv := server.New(server.WithTransport(lb), server.WithLogger(fl))
	pvs, err := pvdb.Install(srv, db)
	require.NoError(t, err)
	require.Len(t, pvs, 4)

	return &e2e{srv: srv, lb: lb, pvs: pvs, log: fl, path: path}
}

// events closes the protocol log and returns every event matching filter.
func (e *e2e) events(t *testing.T, filter log.Filter) []log.Event {
	t.Helper()
	require.NoError(t, e.log.Close())

	r, err := log.NewFilteredReader(e.path, filter)
	require.NoError(t, err)
	defer r.Close()

	var out []log.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

// TestE2E_MonitorThroughAlias writes through an alias and checks the
// subscriber of the canonical name sees the alarm transition.
func TestE2E_MonitorThroughAlias(t *testing.T) {
	e := newE2E(t)

	var got []server.Update
	cancel := e.lb.Subscribe("TEMP", pv.EventValue|pv.EventAlarm, func(u server.Update) {
		got = append(got, u)
	})
	defer cancel()

	// Nothing is posted before interest is registered.
	_, err := e.srv.Write("client-1", "T", wire.Float(30), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, e.srv.InterestRegister("client-1", "T"))
	status, err := e.srv.Write("client-1", "T", wire.Float(99), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, pv.WriteAccepted, status)

	require.Len(t, got, 1)
	assert.Equal(t, "TEMP", got[0].PV)
	assert.True(t, got[0].Events.Has(pv.EventValue|pv.EventAlarm))

	a, err := pv.Decode(&got[0].Snapshot, pv.TypeDouble, wire.UTF8)
	require.NoError(t, err)
	f, _ := a.Value.Float()
	assert.Equal(t, 99.0, f)
	assert.Equal(t, pv.StatusHiHi, a.Status)
	assert.Equal(t, pv.SeverityMajor, a.Severity)
	assert.Equal(t, "degC", a.Unit.String())

	require.NoError(t, e.srv.Shutdown())
	category := log.CategoryEvent
	monitors := e.events(t, log.Filter{Category: &category})
	require.Len(t, monitors, 1)
	assert.Equal(t, "TEMP", monitors[0].PV)
	assert.Equal(t, uint8(pv.EventValue|pv.EventArchive|pv.EventAlarm), monitors[0].Monitor.Mask)

	runtime.KeepAlive(e.pvs)
}

// TestE2E_EnumByLabel writes an enum label and reads back the index.
func TestE2E_EnumByLabel(t *testing.T) {
	e := newE2E(t)

	_, err := e.srv.Write("client-1", "MODE", wire.Bytes([]byte("On")), nil, nil)
	require.NoError(t, err)

	snap, err := e.srv.Read("MODE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, snap.Value.Ints)

	_, err = e.srv.Write("client-1", "MODE", wire.Bytes([]byte("Standby")), nil, nil)
	assert.ErrorIs(t, err, pv.ErrWriteRejected)

	runtime.KeepAlive(e.pvs)
}

// TestE2E_DeferredWrite checks a write held open by a delayed handler
// completes and is logged as pending then accepted.
func TestE2E_DeferredWrite(t *testing.T) {
	e := newE2E(t)

	done := make(chan error, 1)
	status, err := e.srv.Write("client-2", "SLOW", wire.Int(7), nil, func(err error) {
		done <- err
	})
	require.NoError(t, err)
	assert.Equal(t, pv.WritePending, status)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("deferred write did not complete")
	}

	snap, err := e.srv.Read("SLOW")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, snap.Value.Ints)

	category := log.CategoryWrite
	writes := e.events(t, log.Filter{Category: &category, PV: "SLOW"})
	require.Len(t, writes, 2)
	assert.Equal(t, log.WritePending, writes[0].Write.Outcome)
	assert.Equal(t, log.WriteAccepted, writes[1].Write.Outcome)
	assert.Equal(t, writes[0].Write.RequestID, writes[1].Write.RequestID)

	runtime.KeepAlive(e.pvs)
}

// TestE2E_ShutdownFailsDeferredWrites checks that releasing a PV with a
// write still held open fails the request and reports the misuse.
func TestE2E_ShutdownFailsDeferredWrites(t *testing.T) {
	e := newE2E(t)

	done := make(chan error, 1)
	status, err := e.srv.Write("client-3", "STUCK", wire.Int(1), nil, func(err error) {
		done <- err
	})
	require.NoError(t, err)
	require.Equal(t, pv.WritePending, status)

	err = e.srv.Shutdown()
	assert.ErrorIs(t, err, pv.ErrProtocolMisuse)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, pv.ErrProtocolMisuse)
	default:
		t.Fatal("deferred write was not failed on shutdown")
	}

	_, err = e.srv.CreatePV("LATE", pv.Config{Type: pv.TypeInt})
	assert.ErrorIs(t, err, server.ErrShutdown)

	kind := log.ErrorKindProtocolMisuse
	misuse := e.events(t, log.Filter{ErrorKind: &kind})
	require.NotEmpty(t, misuse)
	assert.Equal(t, "STUCK", misuse[0].PV)

	runtime.KeepAlive(e.pvs)
}
