// Package playback renders decoded audio frames as gapless output.
// Frames are scheduled on the output device clock: each frame starts
// exactly where the previous one ends, regardless of arrival jitter,
// as long as frames arrive faster than real time.
package playback

import (
	"log/slog"
	"sync"
)

// Sink is the output device boundary. Positions are in sample frames on
// the device clock: Now reports how many frames the device has rendered,
// PlayAt schedules samples to begin at an absolute frame position.
type Sink interface {
	Now() int64
	PlayAt(start int64, samples []int16) error
	Flush()
	Close() error
}

// Scheduler keeps the playback cursor: the next available output position,
// monotonically non-decreasing, reset to "now" on interruption.
type Scheduler struct {
	sink       Sink
	sampleRate int
	log        *slog.Logger

	mu     sync.Mutex
	cursor int64
}

func NewScheduler(sink Sink, sampleRate int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		sink:       sink,
		sampleRate: sampleRate,
		log:        log.With("component", "playback"),
		cursor:     sink.Now(),
	}
}

// Schedule queues one frame for playback at the cursor and returns the
// start position it was scheduled at. A cursor that has fallen behind the
// device clock snaps forward to "now": the frame plays immediately after
// an audible gap, which is handled and non-fatal.
func (s *Scheduler) Schedule(samples []int16) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.sink.Now()
	if s.cursor < now {
		s.cursor = now
	}

	start := s.cursor
	if err := s.sink.PlayAt(start, samples); err != nil {
		s.log.Warn("frame schedule failed", "error", err, "start", start)
		return start
	}
	s.cursor = start + int64(len(samples))
	return start
}

// Interrupt discards everything queued but not yet rendered and resets the
// cursor to the device clock. This is the barge-in path.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Flush()
	s.cursor = s.sink.Now()
}

// Cursor returns the next available output position in sample frames.
func (s *Scheduler) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// CursorSeconds is Cursor converted to seconds of device time.
func (s *Scheduler) CursorSeconds() float64 {
	return float64(s.Cursor()) / float64(s.sampleRate)
}

func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Flush()
	s.cursor = 0
	return s.sink.Close()
}
