package vad

import (
	"math"
	"testing"
)

func silence(n int) []int16 {
	return make([]int16, n)
}

func tone(n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * 32767.0 * math.Sin(2*math.Pi*440*float64(i)/24000.0))
	}
	return out
}

func TestDetector_SilenceNeverTriggers(t *testing.T) {
	d := NewDetector(0)
	for i := 0; i < 50; i++ {
		started, ended := d.Process(silence(4800))
		if started || ended {
			t.Fatalf("silence frame %d triggered started=%v ended=%v", i, started, ended)
		}
	}
	if d.Active() {
		t.Error("detector should not be active on silence")
	}
}

func TestDetector_SpeechOnsetOnce(t *testing.T) {
	d := NewDetector(0)

	onsets := 0
	for i := 0; i < 20; i++ {
		started, _ := d.Process(tone(4800, 0.5))
		if started {
			onsets++
		}
	}
	if onsets != 1 {
		t.Errorf("continuous speech should report exactly 1 onset, got %d", onsets)
	}
	if !d.Active() {
		t.Error("detector should be active during speech")
	}
}

func TestDetector_SpeechEndAfterHangover(t *testing.T) {
	d := NewDetector(0)
	for i := 0; i < 10; i++ {
		d.Process(tone(4800, 0.5))
	}

	var ended bool
	for i := 0; i < 30 && !ended; i++ {
		_, ended = d.Process(silence(4800))
	}
	if !ended {
		t.Fatal("speech end should be reported after sustained silence")
	}
	if d.Active() {
		t.Error("detector should be inactive after speech end")
	}
}

func TestDetector_ShortPauseDoesNotSplitUtterance(t *testing.T) {
	d := NewDetector(0)
	for i := 0; i < 10; i++ {
		d.Process(tone(4800, 0.5))
	}

	// One silent frame inside the hangover window.
	if _, ended := d.Process(silence(4800)); ended {
		t.Error("single silent frame should not end the utterance")
	}

	started, _ := d.Process(tone(4800, 0.5))
	if started {
		t.Error("resuming inside hangover should not be a second onset")
	}
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector(0)
	for i := 0; i < 10; i++ {
		d.Process(tone(4800, 0.5))
	}
	d.Reset()
	if d.Active() {
		t.Error("reset detector should be inactive")
	}
	started, _ := d.Process(tone(4800, 0.5))
	if !started {
		// First loud frame after reset may stay under the smoothed
		// threshold; a few more must cross it.
		for i := 0; i < 5 && !started; i++ {
			started, _ = d.Process(tone(4800, 0.5))
		}
		if !started {
			t.Error("speech after reset should trigger a fresh onset")
		}
	}
}
