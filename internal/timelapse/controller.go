package timelapse

import (
	"math"
	"time"

	"github.com/jengzang/floq-field/internal/models"
)

// Controller defaults
const (
	DefaultSnapshotInterval = 30 * time.Second
	DefaultStepInterval     = 100 * time.Millisecond
)

// Source returns the current tick's raw field data
type Source func() models.Snapshot

// Capture is the result of one successful snapshot
type Capture struct {
	Frame    *models.Frame
	Hotspots int
}

// Controller switches between live capture and playback over a Ring.
//
// It owns no timers: the caller drives it from its own loop and every
// decision compares clock reads against stored thresholds. Not safe for
// concurrent use.
type Controller struct {
	ring   *Ring
	source Source
	now    func() time.Time

	snapshotInterval time.Duration
	stepInterval     time.Duration
	flowStride       float64
	maxFlowPoints    int
	maxStorms        int

	lastCapture time.Time

	playing  bool
	index    int
	lastStep time.Time

	markers []models.Marker
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithControllerClock replaces the wall clock
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSnapshotInterval sets the minimum time between captures
func WithSnapshotInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.snapshotInterval = d
		}
	}
}

// WithStepInterval sets the minimum time between playback frames
func WithStepInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.stepInterval = d
		}
	}
}

// WithDownsampling sets the flow stride and the flow/storm output caps
func WithDownsampling(flowStride float64, maxFlowPoints, maxStorms int) ControllerOption {
	return func(c *Controller) {
		if flowStride > 0 {
			c.flowStride = flowStride
		}
		if maxFlowPoints > 0 {
			c.maxFlowPoints = maxFlowPoints
		}
		if maxStorms > 0 {
			c.maxStorms = maxStorms
		}
	}
}

// NewController creates a controller in live-capture mode
func NewController(ring *Ring, source Source, opts ...ControllerOption) *Controller {
	c := &Controller{
		ring:             ring,
		source:           source,
		now:              time.Now,
		snapshotInterval: DefaultSnapshotInterval,
		stepInterval:     DefaultStepInterval,
		flowStride:       DefaultFlowStride,
		maxFlowPoints:    DefaultMaxFlowPoints,
		maxStorms:        DefaultMaxStorms,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ring returns the underlying frame store
func (c *Controller) Ring() *Ring {
	return c.ring
}

// CaptureIfDue pushes a new frame when the snapshot interval has elapsed.
// It never captures during playback.
func (c *Controller) CaptureIfDue() (Capture, bool) {
	if c.playing || c.source == nil {
		return Capture{}, false
	}
	now := c.now()
	if !c.lastCapture.IsZero() && now.Sub(c.lastCapture) < c.snapshotInterval {
		return Capture{}, false
	}

	snap := c.source()
	frame := &models.Frame{
		Timestamp: now.UnixMilli(),
		Flow:      DownsampleFlow(snap.Flow, c.flowStride, c.maxFlowPoints),
		Storms:    DownsampleStorms(snap.Storms, c.maxStorms),
		Aurora:    uint8(max(0, min(math.MaxUint8, snap.AuroraActive))),
	}
	c.ring.Push(frame)
	c.lastCapture = now
	return Capture{Frame: frame, Hotspots: snap.Hotspots}, true
}

// StartPlayback enters playback at the newest frame
func (c *Controller) StartPlayback() {
	c.playing = true
	c.index = 0
	c.lastStep = time.Time{}
}

// StopPlayback returns to live capture; buffered frames are kept
func (c *Controller) StopPlayback() {
	c.playing = false
}

// Playing reports whether playback is active
func (c *Controller) Playing() bool {
	return c.playing
}

// PlaybackIndex returns how many steps behind the newest frame playback is
func (c *Controller) PlaybackIndex() int {
	return c.index
}

// Step returns the next playback frame, at most once per step interval.
// Playback stops by itself once it moves past the oldest valid frame.
func (c *Controller) Step() (*models.Frame, bool) {
	if !c.playing {
		return nil, false
	}
	now := c.now()
	if !c.lastStep.IsZero() && now.Sub(c.lastStep) < c.stepInterval {
		return nil, false
	}

	frame, ok := c.ring.GetBack(c.index)
	if !ok {
		c.playing = false
		return nil, false
	}
	c.index++
	c.lastStep = now
	if _, more := c.ring.GetBack(c.index); !more {
		c.playing = false
	}
	return frame, true
}

// SeekTo moves playback to a normalised position, 0 newest and 1 oldest.
// No-op outside playback.
func (c *Controller) SeekTo(position float64) {
	if !c.playing || math.IsNaN(position) {
		return
	}
	valid := c.ring.Len()
	if valid == 0 {
		return
	}
	position = math.Max(0, math.Min(1, position))
	c.index = int(math.Round(position * float64(valid-1)))
}

// SeekToTimestamp sets the playback index to the valid frame closest to
// ts. Unlike SeekTo it does not require playback; StartPlayback still
// rewinds to the newest frame. Reports false with an empty buffer.
func (c *Controller) SeekToTimestamp(ts int64) (int, bool) {
	best := -1
	var bestDiff int64
	c.ring.Each(func(i int, f *models.Frame) bool {
		diff := f.Timestamp - ts
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
		return true
	})
	if best < 0 {
		return 0, false
	}
	c.index = best
	return best, true
}

// AddMarkers appends markers to the timeline
func (c *Controller) AddMarkers(markers ...models.Marker) {
	c.markers = append(c.markers, markers...)
}

// Markers returns a copy of the accumulated markers
func (c *Controller) Markers() []models.Marker {
	return append([]models.Marker(nil), c.markers...)
}

// DropMarkersBefore discards markers older than ts
func (c *Controller) DropMarkersBefore(ts int64) {
	kept := c.markers[:0]
	for _, m := range c.markers {
		if m.Timestamp >= ts {
			kept = append(kept, m)
		}
	}
	clear(c.markers[len(kept):])
	c.markers = kept
}
