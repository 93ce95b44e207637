package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/voicedeck/voicedeck/internal/shared"
)

// DeviceSource captures mono PCM16 from the default input device via
// PortAudio in blocking-read mode.
type DeviceSource struct {
	stream *portaudio.Stream
	buf    []int16
	out    []int16
}

// NewDeviceSource opens the default capture device. Permission denial or
// a missing device surfaces as shared.ErrCaptureUnavailable.
func NewDeviceSource(sampleRate, framesPerBuffer int) (*DeviceSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %v: %w", err, shared.ErrCaptureUnavailable)
	}

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open capture stream: %v: %w", err, shared.ErrCaptureUnavailable)
	}

	return &DeviceSource{
		stream: stream,
		buf:    buf,
		out:    make([]int16, framesPerBuffer),
	}, nil
}

func (s *DeviceSource) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start capture stream: %v: %w", err, shared.ErrCaptureUnavailable)
	}
	return nil
}

func (s *DeviceSource) Read() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	copy(s.out, s.buf)
	return s.out, nil
}

func (s *DeviceSource) Stop() error {
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
