package pv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chanaccess/cas-go/pkg/pv"
	"github.com/chanaccess/cas-go/pkg/pv/mocks"
	"github.com/chanaccess/cas-go/pkg/wire"
)

func TestSinkReceivesPostedEvents(t *testing.T) {
	sink := mocks.NewMockEventSink(t)
	p, err := pv.New("TEST:SINK", pv.Config{Type: pv.TypeDouble, Sink: sink})
	require.NoError(t, err)

	sink.EXPECT().
		PostEvent(p, pv.EventValue|pv.EventArchive|pv.EventAlarm, mock.Anything).
		Run(func(_ *pv.PV, _ pv.Events, snap wire.Snapshot) {
			assert.Equal(t, []float64{4.5}, snap.Value.Floats)
			assert.Equal(t, uint16(pv.StatusNoAlarm), snap.Status)
		}).
		Once()

	p.InterestRegister()
	require.NoError(t, p.SetValue(pv.Float(4.5)))
	// Unchanged value: nothing to post.
	require.NoError(t, p.SetValue(pv.Float(4.5)))

	p.InterestDelete()
	require.NoError(t, p.SetValue(pv.Float(5.5)))
}

func TestSinkReceivesPropertyEvents(t *testing.T) {
	sink := mocks.NewMockEventSink(t)
	p, err := pv.New("TEST:PROP", pv.Config{Type: pv.TypeInt, Sink: sink})
	require.NoError(t, err)
	p.InterestRegister()

	sink.EXPECT().PostEvent(p, pv.EventProperty, mock.Anything).Once()
	sink.EXPECT().PostEvent(p, pv.EventProperty|pv.EventAlarm, mock.Anything).Once()

	require.NoError(t, p.SetUnit(pv.TextOf("A")))
	require.NoError(t, p.SetDisplayLimits(pv.Limits{Low: 0, High: 1}))
}

func TestEventsString(t *testing.T) {
	tests := []struct {
		ev   pv.Events
		want string
	}{
		{pv.EventNone, "NONE"},
		{pv.EventValue | pv.EventAlarm, "VALUE|ALARM"},
		{pv.EventAll, "VALUE|ARCHIVE|ALARM|PROPERTY"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("Events(%d).String() = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

func TestStatusNames(t *testing.T) {
	if got := pv.StatusHiHi.String(); got != "HIHI" {
		t.Errorf("StatusHiHi = %q", got)
	}
	if got := pv.StatusWriteAccess.String(); got != "WRITE_ACCESS" {
		t.Errorf("StatusWriteAccess = %q", got)
	}
	if pv.Status(22).Valid() {
		t.Error("Status(22) should be invalid")
	}
	s, err := pv.ParseStatus("UDF")
	if err != nil || s != pv.StatusUDF {
		t.Errorf("ParseStatus(UDF) = %v, %v", s, err)
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"string", "enum", "char", "int", "float", "double"} {
		typ, err := pv.ParseType(name)
		if err != nil {
			t.Fatalf("ParseType(%q) error = %v", name, err)
		}
		if typ.String() != name {
			t.Errorf("ParseType(%q).String() = %q", name, typ)
		}
	}
	if _, err := pv.ParseType("quaternion"); err == nil {
		t.Error("ParseType(quaternion) expected error")
	}
}
