package eventlog

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/service-jobs/pkg/core"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func TestAppend_AssignsSeq(t *testing.T) {
	l := New()
	e1, err := l.Append(core.Event{Type: core.EventStarted, Timestamp: t0})
	require.NoError(t, err)
	e2, err := l.Append(core.Event{Type: core.EventPaused, Timestamp: t0})
	require.NoError(t, err)

	assert.Equal(t, 1, e1.Seq)
	assert.Equal(t, 2, e2.Seq, "ties are ordered by insertion")
	assert.Equal(t, 2, l.Len())
}

func TestAppend_RejectsOutOfOrder(t *testing.T) {
	l := New()
	_, err := l.Append(core.Event{Type: core.EventStarted, Timestamp: t0})
	require.NoError(t, err)

	_, err = l.Append(core.Event{Type: core.EventPaused, Timestamp: t0.Add(-time.Second)})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 1, l.Len())
}

func TestAppend_RejectsZeroTimestamp(t *testing.T) {
	_, err := New().Append(core.Event{Type: core.EventStarted})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTimeline_IsRestartable(t *testing.T) {
	l := New()
	for i, typ := range []core.EventType{core.EventStarted, core.EventPaused, core.EventResumed} {
		_, err := l.Append(core.Event{Type: typ, Timestamp: t0.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	first := slices.Collect(l.Timeline())
	second := slices.Collect(l.Timeline())
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, core.EventResumed, first[2].Type)
}

func TestTimeline_StopsEarly(t *testing.T) {
	l := New()
	_, _ = l.Append(core.Event{Type: core.EventStarted, Timestamp: t0})
	_, _ = l.Append(core.Event{Type: core.EventPaused, Timestamp: t0})

	count := 0
	for range l.Timeline() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestSince(t *testing.T) {
	l := New()
	_, _ = l.Append(core.Event{Type: core.EventStarted, Timestamp: t0})
	_, _ = l.Append(core.Event{Type: core.EventPaused, Timestamp: t0})
	_, _ = l.Append(core.Event{Type: core.EventResumed, Timestamp: t0})

	got := l.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Seq)
	assert.Nil(t, l.Since(3))
	assert.Len(t, l.Since(-1), 3)
}

func TestEvents_ReturnsCopy(t *testing.T) {
	l := New()
	_, _ = l.Append(core.Event{Type: core.EventStarted, Timestamp: t0, Note: "original"})

	events := l.Events()
	events[0].Note = "changed"
	assert.Equal(t, "original", l.Events()[0].Note)
}

func TestRestore(t *testing.T) {
	l, err := Restore([]core.Event{
		{Seq: 7, Type: core.EventStarted, Timestamp: t0},
		{Seq: 9, Type: core.EventPaused, Timestamp: t0.Add(time.Minute)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int{l.Events()[0].Seq, l.Events()[1].Seq})

	last, ok := l.LastTimestamp()
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), last)

	_, err = Restore([]core.Event{
		{Type: core.EventStarted, Timestamp: t0.Add(time.Minute)},
		{Type: core.EventPaused, Timestamp: t0},
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}
