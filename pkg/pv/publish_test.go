package pv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanaccess/cas-go/pkg/wire"
)

type post struct {
	events Events
	snap   wire.Snapshot
}

type recordingSink struct {
	mu    sync.Mutex
	posts []post
}

func (s *recordingSink) PostEvent(_ *PV, events Events, snap wire.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post{events: events, snap: snap})
}

func (s *recordingSink) all() []post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]post(nil), s.posts...)
}

func TestNoReplayAfterInterest(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPV(t, Config{Type: TypeInt, Sink: sink})

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, p.SetValue(Int(i)))
	}
	assert.Empty(t, sink.all())
	assert.Equal(t, EventValue|EventArchive|EventAlarm, p.Outstanding())

	p.InterestRegister()
	assert.True(t, p.Publishing())
	assert.Equal(t, EventNone, p.Outstanding())
	assert.Empty(t, sink.all(), "missed events must not be replayed")

	require.NoError(t, p.SetValue(Int(4)))
	posts := sink.all()
	require.Len(t, posts, 1)
	assert.Equal(t, EventValue|EventArchive, posts[0].events)
	assert.Equal(t, []int64{4}, posts[0].snap.Value.Ints)
	assert.Equal(t, EventNone, p.Outstanding())
}

func TestInterestIdempotent(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPV(t, Config{Type: TypeInt, Sink: sink})

	p.InterestRegister()
	p.InterestRegister()
	require.NoError(t, p.SetValue(Int(1)))
	assert.Len(t, sink.all(), 1)

	p.InterestDelete()
	p.InterestDelete()
	assert.False(t, p.Publishing())
	require.NoError(t, p.SetValue(Int(2)))
	assert.Len(t, sink.all(), 1)
}

func TestNoPostForEmptyEvents(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPV(t, Config{Type: TypeInt, Sink: sink, ValueDeadband: 10, ArchiveDeadband: 10})
	p.InterestRegister()

	require.NoError(t, p.SetValue(Int(0))) // clears UDF: ALARM only
	require.NoError(t, p.SetValue(Int(1))) // inside the deadbands

	posts := sink.all()
	require.Len(t, posts, 1)
	assert.Equal(t, EventAlarm, posts[0].events)
}

func TestOnChangeRunsWithoutInterest(t *testing.T) {
	var got []Events
	p := newTestPV(t, Config{
		Type: TypeInt,
		OnChange: func(_ *PV, ev Events, _ Attributes) {
			got = append(got, ev)
		},
	})

	require.NoError(t, p.SetValue(Int(1)))
	require.NoError(t, p.SetValue(Int(1)))
	require.NoError(t, p.SetUnit(TextOf("A")))

	assert.Equal(t, []Events{EventValue | EventArchive | EventAlarm, EventProperty}, got)
}

func TestReentrantCallback(t *testing.T) {
	sink := &recordingSink{}
	var seen []int64
	cfg := Config{Type: TypeInt, Sink: sink}
	cfg.OnChange = func(p *PV, ev Events, a Attributes) {
		v, _ := a.Value.Int()
		seen = append(seen, v)
		// Reads and updates from the callback must not deadlock.
		_ = p.Value()
		if v == 1 {
			require.NoError(t, p.SetValue(Int(2)))
		}
	}
	p := newTestPV(t, cfg)
	p.InterestRegister()

	require.NoError(t, p.SetValue(Int(1)))

	assert.Equal(t, []int64{1, 2}, seen)
	posts := sink.all()
	require.Len(t, posts, 2)
	assert.Equal(t, []int64{1}, posts[0].snap.Value.Ints)
	assert.Equal(t, []int64{2}, posts[1].snap.Value.Ints)
}

func TestConcurrentUpdatesDeliverInOrder(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPV(t, Config{Type: TypeInt, Sink: sink})
	p.InterestRegister()

	const workers, updates = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < updates; i++ {
				_ = p.SetValue(Int(int64(w*updates + i + 1)))
			}
		}(w)
	}
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < updates; i++ {
				a := p.Attributes()
				if a.Status == StatusUDF {
					continue
				}
				assert.Equal(t, SeverityNoAlarm, a.Severity)
				_, _ = p.Read()
			}
		}()
	}
	wg.Wait()
	readers.Wait()

	posts := sink.all()
	require.NotEmpty(t, posts)
	last := posts[len(posts)-1]
	assert.Equal(t, p.Value().Ints(), last.snap.Value.Ints, "last delivery must reflect the last update")
	assert.Equal(t, EventNone, p.Outstanding())
}
