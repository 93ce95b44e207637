// Package vad provides lightweight energy-based voice activity detection
// over PCM16 frames, used by the gateway to detect barge-in while the
// assistant is still speaking.
package vad

import (
	"math"

	"github.com/voicedeck/voicedeck/internal/audio"
)

const (
	// DefaultThreshold is the smoothed RMS level treated as speech.
	DefaultThreshold = 0.015
	// hangoverFrames keeps the detector active across short intra-word
	// pauses so one utterance does not report multiple onsets.
	hangoverFrames = 3
	smoothing      = 0.3
)

type Detector struct {
	threshold float64
	level     float64
	active    bool
	hangover  int
}

func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Process consumes one frame and reports speech onset and end edges.
// At most one of the two is true per call.
func (d *Detector) Process(samples []int16) (started, ended bool) {
	rms := frameRMS(samples)
	d.level = smoothing*rms + (1-smoothing)*d.level

	if d.level >= d.threshold {
		d.hangover = hangoverFrames
		if !d.active {
			d.active = true
			return true, false
		}
		return false, false
	}

	if d.active {
		if d.hangover > 0 {
			d.hangover--
			return false, false
		}
		d.active = false
		return false, true
	}
	return false, false
}

// Active reports whether the detector currently believes speech is in
// progress.
func (d *Detector) Active() bool {
	return d.active
}

func (d *Detector) Reset() {
	d.level = 0
	d.active = false
	d.hangover = 0
}

func frameRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	floats := audio.Int16ToFloat32(samples)
	var sum float64
	for _, s := range floats {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(floats)))
}
