package capture

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voicedeck/voicedeck/internal/shared"
)

type fakeSource struct {
	mu       sync.Mutex
	buffers  [][]int16
	started  bool
	stopped  bool
	startErr error
	release  chan struct{}
}

func newFakeSource(buffers ...[]int16) *fakeSource {
	return &fakeSource{buffers: buffers, release: make(chan struct{})}
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSource) Read() ([]int16, error) {
	s.mu.Lock()
	if len(s.buffers) == 0 {
		s.mu.Unlock()
		// Block like a real device with no more data, until stopped.
		<-s.release
		return nil, io.EOF
	}
	buf := s.buffers[0]
	s.buffers = s.buffers[1:]
	s.mu.Unlock()
	return buf, nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.release)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collectFrames(t *testing.T, frames *[][]int16, mu *sync.Mutex, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(*frames)
		mu.Unlock()
		if n >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames, have %d", want, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPipeline_EmitsFixedFrames(t *testing.T) {
	src := newFakeSource(seq(0, 6), seq(6, 6))

	var mu sync.Mutex
	var frames [][]int16
	p, err := Start(src, Config{
		FrameSize: 4,
		Gate:      func() bool { return true },
		Emit: func(frame []int16) {
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()
		},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop()

	collectFrames(t, &frames, &mu, 3)

	mu.Lock()
	defer mu.Unlock()
	var all []int16
	for _, f := range frames {
		if len(f) != 4 {
			t.Errorf("frame size %d, want 4", len(f))
		}
		all = append(all, f...)
	}
	for i, s := range all {
		if s != int16(i) {
			t.Fatalf("sample %d out of order: got %d", i, s)
		}
	}
}

func TestPipeline_GateDropsFrames(t *testing.T) {
	src := newFakeSource(seq(0, 8))

	var emitted atomic.Int32
	p, err := Start(src, Config{
		FrameSize: 4,
		Gate:      func() bool { return false },
		Emit:      func([]int16) { emitted.Add(1) },
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if n := emitted.Load(); n != 0 {
		t.Errorf("expected 0 emitted frames while gated, got %d", n)
	}
}

func TestPipeline_StartFailureLeavesNothing(t *testing.T) {
	src := newFakeSource()
	src.startErr = shared.ErrCaptureUnavailable

	p, err := Start(src, Config{FrameSize: 4, Logger: discardLogger()})
	if p != nil {
		t.Error("expected nil pipeline on start failure")
	}
	if !errors.Is(err, shared.ErrCaptureUnavailable) {
		t.Errorf("expected ErrCaptureUnavailable, got %v", err)
	}
}

func TestPipeline_StopIdempotent(t *testing.T) {
	src := newFakeSource(seq(0, 4))
	p, err := Start(src, Config{FrameSize: 4, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.Stop()
	p.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	if !src.stopped {
		t.Error("source should be stopped")
	}
}
