package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jengzang/floq-field/internal/metrics"
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/repository"
	"github.com/jengzang/floq-field/internal/stream"
	"github.com/jengzang/floq-field/internal/timelapse"
)

// ErrNotPlaying is returned by playback operations outside playback
var ErrNotPlaying = errors.New("playback is not active")

// PlaybackStatus describes the controller state
type PlaybackStatus struct {
	Playing  bool `json:"playing"`
	Index    int  `json:"index"`
	Frames   int  `json:"frames"`
	Capacity int  `json:"capacity"`
}

// TimelapseService serialises access to the time-lapse controller, runs the
// capture loop and archives what it captures
type TimelapseService struct {
	mu        sync.Mutex
	ctrl      *timelapse.Controller
	repo      *repository.TimelapseRepository
	hub       Broadcaster
	tick      time.Duration
	retention time.Duration
}

// NewTimelapseService wraps a controller. repo and hub may be nil.
func NewTimelapseService(ctrl *timelapse.Controller, repo *repository.TimelapseRepository, hub Broadcaster, tick, retention time.Duration) *TimelapseService {
	if tick <= 0 {
		tick = time.Second
	}
	return &TimelapseService{
		ctrl:      ctrl,
		repo:      repo,
		hub:       hub,
		tick:      tick,
		retention: retention,
	}
}

// Restore refills the ring and marker timeline from the archive
func (s *TimelapseService) Restore() error {
	if s.repo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.ctrl.Ring()
	frames, err := s.repo.RecentFrames(ring.Capacity())
	if err != nil {
		return fmt.Errorf("failed to restore frames: %w", err)
	}
	for _, f := range frames {
		ring.Push(f)
	}
	if len(frames) == 0 {
		return nil
	}

	markers, err := s.repo.ListMarkers(frames[0].Timestamp, 0)
	if err != nil {
		return fmt.Errorf("failed to restore markers: %w", err)
	}
	s.ctrl.AddMarkers(markers...)

	log.Printf("[TimelapseService] Restored %d frames and %d markers", len(frames), len(markers))
	return nil
}

// Run calls CaptureOnce every tick until ctx is done
func (s *TimelapseService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CaptureOnce()
		}
	}
}

// CaptureOnce captures a frame if one is due, derives its markers and
// archives both. Reports whether a frame was captured.
func (s *TimelapseService) CaptureOnce() bool {
	s.mu.Lock()
	capture, ok := s.ctrl.CaptureIfDue()
	if !ok {
		s.mu.Unlock()
		return false
	}
	markers := timelapse.ExtractMarkers(capture.Frame, capture.Hotspots)
	s.ctrl.AddMarkers(markers...)
	if oldest, full := s.ctrl.Ring().Oldest(); full {
		s.ctrl.DropMarkersBefore(oldest.Timestamp)
	}
	s.mu.Unlock()

	metrics.FramesCaptured.Inc()
	for _, m := range markers {
		metrics.MarkersEmitted.WithLabelValues(string(m.Kind)).Inc()
	}

	if s.repo != nil {
		if err := s.repo.SaveCapture(capture.Frame, markers); err != nil {
			log.Printf("[TimelapseService] Failed to archive frame %d: %v", capture.Frame.Timestamp, err)
		} else if s.retention > 0 {
			cutoff := capture.Frame.Timestamp - s.retention.Milliseconds()
			if _, err := s.repo.PruneBefore(cutoff); err != nil {
				log.Printf("[TimelapseService] Failed to prune archive: %v", err)
			}
		}
	}

	if s.hub != nil {
		if err := s.hub.Broadcast(stream.EventCapture, capture.Frame); err != nil {
			log.Printf("[TimelapseService] Broadcast failed: %v", err)
		}
	}
	return true
}

// Frames returns up to limit buffered frames, newest first
func (s *TimelapseService) Frames(limit int) []*models.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Frame
	s.ctrl.Ring().Each(func(i int, f *models.Frame) bool {
		if limit > 0 && i >= limit {
			return false
		}
		out = append(out, f)
		return true
	})
	return out
}

// ArchivedFrames returns up to limit archived frames, oldest first
func (s *TimelapseService) ArchivedFrames(limit int) ([]*models.Frame, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.RecentFrames(limit)
}

// LatestArchived returns the newest archived frame
func (s *TimelapseService) LatestArchived() (*models.Frame, error) {
	if s.repo == nil {
		return nil, repository.ErrNotFound
	}
	return s.repo.LatestFrame()
}

// Status returns the playback state
func (s *TimelapseService) Status() PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *TimelapseService) statusLocked() PlaybackStatus {
	ring := s.ctrl.Ring()
	return PlaybackStatus{
		Playing:  s.ctrl.Playing(),
		Index:    s.ctrl.PlaybackIndex(),
		Frames:   ring.Len(),
		Capacity: ring.Capacity(),
	}
}

// StartPlayback enters playback at the newest frame
func (s *TimelapseService) StartPlayback() PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.StartPlayback()
	return s.statusLocked()
}

// StopPlayback returns to live capture
func (s *TimelapseService) StopPlayback() PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.StopPlayback()
	return s.statusLocked()
}

// Seek moves playback to a normalised position
func (s *TimelapseService) Seek(position float64) (PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctrl.Playing() {
		return s.statusLocked(), ErrNotPlaying
	}
	s.ctrl.SeekTo(position)
	return s.statusLocked(), nil
}

// SeekTimestamp moves playback to the frame closest to ts
func (s *TimelapseService) SeekTimestamp(ts int64) (PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctrl.Playing() {
		return s.statusLocked(), ErrNotPlaying
	}
	if _, ok := s.ctrl.SeekToTimestamp(ts); !ok {
		return s.statusLocked(), repository.ErrNotFound
	}
	return s.statusLocked(), nil
}

// Step returns the next playback frame, or nil when none is due
func (s *TimelapseService) Step() (*models.Frame, PlaybackStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.ctrl.Step()
	if !ok {
		frame = nil
	}
	return frame, s.statusLocked()
}

// Markers returns markers with ts >= since
func (s *TimelapseService) Markers(since int64) []models.Marker {
	s.mu.Lock()
	all := s.ctrl.Markers()
	s.mu.Unlock()

	out := make([]models.Marker, 0, len(all))
	for _, m := range all {
		if m.Timestamp >= since {
			out = append(out, m)
		}
	}
	return out
}
