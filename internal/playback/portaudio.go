package playback

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const outputBufferFrames = 1024

// StreamSink drives the default output device through PortAudio. It keeps
// a contiguous sample timeline: the device callback pulls scheduled
// samples at their absolute positions and renders silence everywhere else.
type StreamSink struct {
	stream *portaudio.Stream

	mu       sync.Mutex
	queue    []int16
	base     int64 // timeline position of queue[0]
	rendered int64 // frames the device has consumed
}

func NewStreamSink(sampleRate int) (*StreamSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &StreamSink{}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), outputBufferFrames, s.render)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}

	return s, nil
}

func (s *StreamSink) render(out []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range out {
		pos := s.rendered + int64(i)
		idx := pos - s.base
		if idx >= 0 && idx < int64(len(s.queue)) {
			out[i] = s.queue[idx]
		} else {
			out[i] = 0
		}
	}
	s.rendered += int64(len(out))

	// Drop the consumed prefix.
	if consumed := s.rendered - s.base; consumed > 0 {
		if consumed >= int64(len(s.queue)) {
			s.queue = s.queue[:0]
			s.base = s.rendered
		} else {
			s.queue = s.queue[consumed:]
			s.base = s.rendered
		}
	}
}

func (s *StreamSink) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

func (s *StreamSink) PlayAt(start int64, samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The device may have advanced between the caller's Now() and this
	// call. Skip only the truly rendered prefix; the rest still plays
	// immediately.
	if start < s.base {
		skip := s.base - start
		if skip >= int64(len(samples)) {
			return nil
		}
		samples = samples[skip:]
		start = s.base
	}

	end := s.base + int64(len(s.queue))
	if start > end {
		pad := make([]int16, start-end)
		s.queue = append(s.queue, pad...)
	}
	s.queue = append(s.queue[:start-s.base], samples...)
	return nil
}

func (s *StreamSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = s.queue[:0]
	s.base = s.rendered
}

func (s *StreamSink) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := portaudio.Terminate()
	if stopErr != nil {
		return stopErr
	}
	if closeErr != nil {
		return closeErr
	}
	return termErr
}
