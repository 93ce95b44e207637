// Package audio holds the PCM16 wire codec and sample conversions shared
// by the capture and playback paths.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/voicedeck/voicedeck/internal/shared"
)

const (
	SampleRate   = 24000
	Channels     = 1
	FrameSamples = 4800 // 200ms at 24kHz
)

// FrameDuration returns the playback duration of n samples in seconds.
func FrameDuration(n int) float64 {
	return float64(n) / float64(SampleRate)
}

// EncodeFrame serializes samples as little-endian PCM16 and base64-encodes
// the result. An empty frame yields an empty, valid payload.
func EncodeFrame(samples []int16) string {
	return base64.StdEncoding.EncodeToString(Int16ToPCMBytes(samples))
}

// DecodeFrame is the inverse of EncodeFrame. It fails with
// shared.ErrMalformedAudioPayload on invalid base64 or an odd byte count;
// callers treat that as a recoverable per-frame error.
func DecodeFrame(payload string) ([]int16, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", shared.ErrMalformedAudioPayload)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd byte count %d: %w", len(pcm), shared.ErrMalformedAudioPayload)
	}
	return PCMBytesToInt16(pcm), nil
}

func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func Int16ToPCMBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func Int16ToFloat32(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}

// Float32ToInt16 converts normalized samples to PCM16, clamping to [-1, 1]
// symmetrically and rounding to the nearest representable value so signal
// peaks do not wrap.
func Float32ToInt16(samples []float32) []int16 {
	result := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		result[i] = int16(math.Round(float64(s) * 32767.0))
	}
	return result
}
