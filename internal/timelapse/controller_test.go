package timelapse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/floq-field/internal/models"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

func (c *stepClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *stepClock {
	return &stepClock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func staticSource(snap models.Snapshot) Source {
	return func() models.Snapshot { return snap }
}

func newTestController(t *testing.T, capacity int, src Source, clock *stepClock) *Controller {
	t.Helper()
	ring, err := NewRing(capacity)
	require.NoError(t, err)
	return NewController(ring, src, WithControllerClock(clock.Now))
}

func TestCaptureInterval(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 8, staticSource(models.Snapshot{
		Flow:         []models.FlowVector{{X: 1, Y: 2, VX: 3, VY: 4}},
		Storms:       []models.StormPoint{{X: 5, Y: 6, Intensity: 0.5}},
		AuroraActive: 2,
		Hotspots:     4,
	}), clock)

	capture, ok := c.CaptureIfDue()
	require.True(t, ok, "first call captures immediately")
	assert.Equal(t, clock.Now().UnixMilli(), capture.Frame.Timestamp)
	assert.Equal(t, []float32{1, 2, 3, 4}, capture.Frame.Flow)
	assert.Equal(t, []float32{5, 6, 0.5}, capture.Frame.Storms)
	assert.Equal(t, uint8(2), capture.Frame.Aurora)
	assert.Equal(t, 4, capture.Hotspots)

	clock.Advance(29 * time.Second)
	_, ok = c.CaptureIfDue()
	assert.False(t, ok)

	clock.Advance(time.Second)
	_, ok = c.CaptureIfDue()
	assert.True(t, ok)
	assert.Equal(t, 2, c.Ring().Len())
}

func TestCaptureClampsAurora(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 2, staticSource(models.Snapshot{AuroraActive: 1000}), clock)

	capture, ok := c.CaptureIfDue()
	require.True(t, ok)
	assert.Equal(t, uint8(255), capture.Frame.Aurora)
	assert.Empty(t, capture.Frame.Flow)
	assert.NotNil(t, capture.Frame.Flow)
}

func TestNoCaptureDuringPlayback(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 8, staticSource(models.Snapshot{}), clock)

	_, ok := c.CaptureIfDue()
	require.True(t, ok)

	c.StartPlayback()
	clock.Advance(time.Minute)
	_, ok = c.CaptureIfDue()
	assert.False(t, ok)
	assert.Equal(t, 1, c.Ring().Len())

	c.StopPlayback()
	_, ok = c.CaptureIfDue()
	assert.True(t, ok)
}

func fillRing(t *testing.T, c *Controller, clock *stepClock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, ok := c.CaptureIfDue()
		require.True(t, ok)
		clock.Advance(DefaultSnapshotInterval)
	}
}

func TestPlaybackTerminates(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 10, staticSource(models.Snapshot{}), clock)
	fillRing(t, c, clock, 4)

	newest, _ := c.Ring().Newest()
	c.StartPlayback()

	var got []int64
	for i := 0; i < 5; i++ {
		f, ok := c.Step()
		if ok {
			got = append(got, f.Timestamp)
		}
		clock.Advance(DefaultStepInterval)
	}

	require.Len(t, got, 4)
	assert.Equal(t, newest.Timestamp, got[0])
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i], got[i-1], "playback walks backwards in time")
	}
	assert.False(t, c.Playing())
}

func TestPlaybackStepThrottle(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 10, staticSource(models.Snapshot{}), clock)
	fillRing(t, c, clock, 3)
	c.StartPlayback()

	_, ok := c.Step()
	require.True(t, ok)

	clock.Advance(50 * time.Millisecond)
	_, ok = c.Step()
	assert.False(t, ok)
	assert.Equal(t, 1, c.PlaybackIndex())
	assert.True(t, c.Playing())

	clock.Advance(50 * time.Millisecond)
	_, ok = c.Step()
	assert.True(t, ok)
	assert.Equal(t, 2, c.PlaybackIndex())
}

func TestStepOutsidePlayback(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 4, staticSource(models.Snapshot{}), clock)
	fillRing(t, c, clock, 2)

	f, ok := c.Step()
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestPlaybackOnEmptyRing(t *testing.T) {
	c := newTestController(t, 4, nil, newClock())
	c.StartPlayback()

	_, ok := c.Step()
	assert.False(t, ok)
	assert.False(t, c.Playing())
}

func TestSeekTo(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 10, staticSource(models.Snapshot{}), clock)
	fillRing(t, c, clock, 5)

	c.SeekTo(1)
	assert.Equal(t, 0, c.PlaybackIndex(), "ignored outside playback")

	c.StartPlayback()
	c.SeekTo(1)
	assert.Equal(t, 4, c.PlaybackIndex())

	c.SeekTo(0.5)
	assert.Equal(t, 2, c.PlaybackIndex())

	c.SeekTo(-3)
	assert.Equal(t, 0, c.PlaybackIndex())

	c.SeekTo(0.9)
	oldest, _ := c.Ring().GetBack(4)
	f, ok := c.Step()
	require.True(t, ok)
	assert.Same(t, oldest, f)
	assert.False(t, c.Playing())
}

func TestSeekToTimestamp(t *testing.T) {
	clock := newClock()
	c := newTestController(t, 10, staticSource(models.Snapshot{}), clock)
	start := clock.Now().UnixMilli()
	_, ok := c.SeekToTimestamp(start)
	assert.False(t, ok, "empty buffer")

	fillRing(t, c, clock, 4)

	// the index moves outside playback too
	idx, ok := c.SeekToTimestamp(start)
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 3, c.PlaybackIndex())
	assert.False(t, c.Playing())

	c.StartPlayback()
	assert.Equal(t, 0, c.PlaybackIndex())
	step := DefaultSnapshotInterval.Milliseconds()

	idx, ok = c.SeekToTimestamp(start)
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	idx, _ = c.SeekToTimestamp(start + step + step/4)
	assert.Equal(t, 2, idx)

	// equidistant from frames 1 and 2 resolves to the newer one
	idx, _ = c.SeekToTimestamp(start + step + step/2)
	assert.Equal(t, 1, idx)

	idx, _ = c.SeekToTimestamp(start + 100*step)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 0, c.PlaybackIndex())
}

func TestMarkersAccumulate(t *testing.T) {
	c := newTestController(t, 2, nil, newClock())
	c.AddMarkers(models.Marker{Timestamp: 1, Kind: models.MarkerPeak, Strength: 0.5})
	c.AddMarkers(models.Marker{Timestamp: 2, Kind: models.MarkerCascade, Strength: 1})

	got := c.Markers()
	require.Len(t, got, 2)
	got[0].Strength = 99
	assert.Equal(t, 0.5, c.Markers()[0].Strength)
}

func TestDropMarkersBefore(t *testing.T) {
	c := newTestController(t, 2, nil, newClock())
	for ts := int64(1); ts <= 5; ts++ {
		c.AddMarkers(models.Marker{Timestamp: ts, Kind: models.MarkerPeak})
	}

	c.DropMarkersBefore(4)
	got := c.Markers()
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].Timestamp)
}
