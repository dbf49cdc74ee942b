package interactive

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/pvdb"
	"github.com/chanaccess/cas-go/pkg/server"
	"github.com/chanaccess/cas-go/pkg/wire"
)

// syncBuffer is a bytes.Buffer safe for the deferred-write goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fakeSim struct {
	running bool
	n       int
}

func (f *fakeSim) Start(context.Context) { f.running = true }
func (f *fakeSim) Stop()                 { f.running = false }
func (f *fakeSim) Running() bool         { return f.running }
func (f *fakeSim) Len() int              { return f.n }

type fixture struct {
	console *Console
	srv     *server.Server
	loop    *server.Loopback
	out     *syncBuffer
	pvs     map[string]*pv.PV
	sim     *fakeSim
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := server.NewLoopback()
	srv := server.New(server.WithTransport(loop))
	f := &fixture{srv: srv, loop: loop, out: &syncBuffer{}, pvs: map[string]*pv.PV{}, sim: &fakeSim{n: 2}}

	create := func(name string, cfg pv.Config) {
		p, err := srv.CreatePV(name, cfg)
		require.NoError(t, err)
		f.pvs[name] = p
	}
	create("TEMP", pv.Config{
		Type: pv.TypeDouble,
		Attributes: pv.NewUpdate().
			WithValue(pv.Float(21.5)).
			WithUnit(pv.TextOf("degC")).
			WithAlarmLimits(pv.Limits{Low: 0, High: 50}),
	})
	create("MODE", pv.Config{
		Type:       pv.TypeEnum,
		Attributes: pv.NewUpdate().WithEnumStrings(pv.Texts("Off", "On")...),
	})
	create("WAVE", pv.Config{Type: pv.TypeInt, Count: 3})
	create("LABEL", pv.Config{Type: pv.TypeString})
	create("SLOW", pv.Config{Type: pv.TypeInt, WriteHandler: pvdb.DeferredWriteHandler(time.Millisecond)})
	create("RO", pv.Config{Type: pv.TypeInt, ReadOnly: true})

	f.console = newConsole(srv, loop, f.sim, f.out)
	return f
}

func (f *fixture) run(line string) string {
	f.out.Reset()
	f.console.Execute(context.Background(), line)
	return f.out.String()
}

func TestExecuteQuit(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.console.Execute(context.Background(), "quit"))
	assert.False(t, f.console.Execute(context.Background(), "   "))
	assert.Contains(t, f.run("frobnicate"), "Unknown command")
	assert.Contains(t, f.run("help"), "monitor <name> [mask]")
}

func TestListAndExists(t *testing.T) {
	f := newFixture(t)

	out := f.run("list")
	for _, name := range []string{"TEMP", "MODE", "WAVE", "LABEL"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, f.run("exists TEMP"), "EXISTS_HERE")
	assert.Contains(t, f.run("exists NOPE"), "NOT_EXISTS_HERE")
}

func TestReadAndInfo(t *testing.T) {
	f := newFixture(t)

	out := f.run("read TEMP")
	assert.Contains(t, out, "TEMP = 21.5 degC")
	assert.Contains(t, out, "NO_ALARM")

	out = f.run("info TEMP")
	assert.Contains(t, out, "Unit:")
	assert.Contains(t, out, "(0, 50)")

	assert.Contains(t, f.run("read NOPE"), "pv not found")
	assert.Contains(t, f.run("read"), "Usage")
}

func TestPut(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.run("put TEMP 60"), "OK")
	assert.Equal(t, pv.SeverityMajor, f.pvs["TEMP"].Severity())

	assert.Contains(t, f.run("put MODE On"), "OK")
	idx, _ := f.pvs["MODE"].Value().Int()
	assert.Equal(t, int64(1), idx)

	assert.Contains(t, f.run("put WAVE 1 2 3 4"), "OK")
	assert.Equal(t, []int64{1, 2, 3, 4}, f.pvs["WAVE"].Value().Ints())

	assert.Contains(t, f.run("put LABEL hello world"), "OK")
	text, _ := f.pvs["LABEL"].Value().Text()
	assert.Equal(t, "hello world", text.String())

	assert.Contains(t, f.run("put RO 1"), "Write failed")
	assert.Contains(t, f.run("put TEMP warm"), "Invalid value")
	assert.Contains(t, f.run("put TEMP"), "Usage")
}

func TestPutDeferred(t *testing.T) {
	f := newFixture(t)

	f.out.Reset()
	f.console.Execute(context.Background(), "put SLOW 9")
	assert.Contains(t, f.out.String(), "Pending")

	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "Deferred write to SLOW completed")
	}, 5*time.Second, 5*time.Millisecond)
	n, _ := f.pvs["SLOW"].Value().Int()
	assert.Equal(t, int64(9), n)
}

func TestMonitor(t *testing.T) {
	f := newFixture(t)
	temp := f.pvs["TEMP"]

	assert.Contains(t, f.run("monitor TEMP alarm"), "Monitoring TEMP (ALARM)")
	assert.True(t, temp.Publishing())
	assert.Equal(t, 1, f.loop.Subscribers("TEMP"))
	assert.Contains(t, f.run("monitor TEMP"), "Already monitoring")

	f.out.Reset()
	require.NoError(t, temp.SetValue(pv.Float(22)))
	assert.Empty(t, f.out.String(), "value-only change is outside the mask")

	require.NoError(t, temp.SetValue(pv.Float(99)))
	out := f.out.String()
	assert.Contains(t, out, "ALARM")
	assert.Contains(t, out, "TEMP = 99 degC")
	assert.Contains(t, out, "HIHI")

	assert.Contains(t, f.run("unmonitor TEMP"), "Stopped monitoring TEMP")
	assert.Equal(t, 0, f.loop.Subscribers("TEMP"))
	assert.False(t, temp.Publishing())
	assert.Contains(t, f.run("unmonitor TEMP"), "Not monitoring")
	assert.Contains(t, f.run("monitor TEMP sideways"), "unknown event")
}

func TestMonitorThroughAlias(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.run("alias T TEMP"), "T -> TEMP")
	assert.Contains(t, f.run("monitor T"), "Monitoring TEMP")
	assert.Contains(t, f.run("aliases"), "T -> TEMP")
	assert.Contains(t, f.run("unmonitor T"), "Stopped monitoring TEMP")
	assert.Contains(t, f.run("unalias T"), "Removed alias T")
	assert.Contains(t, f.run("unalias T"), "No alias T")
	assert.Contains(t, f.run("aliases"), "No aliases")
	assert.Contains(t, f.run("alias T T"), "Error")
}

func TestSim(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.run("sim status"), "stopped (2 PVs)")
	assert.Contains(t, f.run("sim start"), "running")
	assert.True(t, f.sim.running)
	assert.Contains(t, f.run("sim stop"), "stopped")
	assert.Contains(t, f.run("sim sideways"), "Usage")

	f.console.sim = &fakeSim{}
	assert.Contains(t, f.run("sim start"), "No simulated PVs")
}

func TestParseWriteValue(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		pv   string
		args []string
		want wire.Value
	}{
		{"float", "TEMP", []string{"1.5"}, wire.Float(1.5)},
		{"float array", "TEMP", []string{"1", "2"}, wire.Floats(1, 2)},
		{"enum index", "MODE", []string{"1"}, wire.Int(1)},
		{"enum label", "MODE", []string{"On"}, wire.Bytes([]byte("On"))},
		{"int array pv", "WAVE", []string{"7"}, wire.Ints(7)},
		{"hex int", "SLOW", []string{"0x10"}, wire.Int(16)},
		{"float to int", "SLOW", []string{"2.5"}, wire.Float(2.5)},
		{"quoted text", "LABEL", []string{`"a`, `b"`}, wire.Bytes([]byte("a b"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWriteValue(f.pvs[tt.pv], tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWriteValue(f.pvs["TEMP"], nil)
	assert.Error(t, err)
}

func TestParseMask(t *testing.T) {
	tests := []struct {
		in   string
		want pv.Events
	}{
		{"value", pv.EventValue},
		{"value|alarm", pv.EventValue | pv.EventAlarm},
		{"LOG,prop", pv.EventArchive | pv.EventProperty},
		{"all", pv.EventAll},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMask(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "|", "valu"} {
		_, err := ParseMask(bad)
		assert.Error(t, err, bad)
	}
}
