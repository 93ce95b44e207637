// Package narrator is the scripted stand-in for the realtime AI provider
// on the far end of a presentation session. It streams a slide's
// narration as transcript deltas plus synthesized PCM16 audio, paced like
// a live synthesis stream so interruption mid-response is meaningful.
// Real providers plug in behind the Responder interface.
package narrator

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/voicedeck/voicedeck/internal/audio"
)

type EventKind int

const (
	EventAudio EventKind = iota
	EventTranscript
	EventDone
)

type Event struct {
	Kind    EventKind
	Samples []int16
	Text    string
	IsFinal bool
}

// Responder produces a stream of response events for one utterance. The
// stream always terminates with EventDone, even when the context is
// cancelled mid-response.
type Responder interface {
	Speak(ctx context.Context, text string) <-chan Event
}

type Narrator struct {
	log *slog.Logger
	// chunkInterval paces audio emission; one chunk covers chunkSamples
	// of playback so emission runs faster than real time.
	chunkInterval time.Duration
	chunkSamples  int
}

type Option func(*Narrator)

// WithPacing overrides the emission cadence, mainly for tests.
func WithPacing(interval time.Duration, chunkSamples int) Option {
	return func(n *Narrator) {
		n.chunkInterval = interval
		n.chunkSamples = chunkSamples
	}
}

func New(log *slog.Logger, opts ...Option) *Narrator {
	if log == nil {
		log = slog.Default()
	}
	n := &Narrator{
		log:           log.With("component", "narrator"),
		chunkInterval: 50 * time.Millisecond,
		chunkSamples:  audio.FrameSamples,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Narrator) Speak(ctx context.Context, text string) <-chan Event {
	out := make(chan Event, 8)

	go func() {
		defer close(out)

		words := strings.Fields(text)
		samples := synthesize(words)

		ticker := time.NewTicker(n.chunkInterval)
		defer ticker.Stop()

		wordsPerChunk := 0
		chunks := (len(samples) + n.chunkSamples - 1) / n.chunkSamples
		if chunks > 0 {
			wordsPerChunk = (len(words) + chunks - 1) / chunks
		}

		sent := 0
		wordIdx := 0
		for sent < len(samples) {
			select {
			case <-ctx.Done():
				n.log.Debug("response cancelled mid-stream")
				sendDone(out)
				return
			case <-ticker.C:
			}

			end := sent + n.chunkSamples
			if end > len(samples) {
				end = len(samples)
			}
			if !emit(ctx, out, Event{Kind: EventAudio, Samples: samples[sent:end]}) {
				sendDone(out)
				return
			}
			sent = end

			if wordsPerChunk > 0 && wordIdx < len(words) {
				wend := wordIdx + wordsPerChunk
				if wend > len(words) {
					wend = len(words)
				}
				delta := strings.Join(words[wordIdx:wend], " ") + " "
				if !emit(ctx, out, Event{Kind: EventTranscript, Text: delta}) {
					sendDone(out)
					return
				}
				wordIdx = wend
			}
		}

		emit(ctx, out, Event{Kind: EventTranscript, Text: text, IsFinal: true})
		emit(ctx, out, Event{Kind: EventDone})
	}()

	return out
}

// sendDone delivers the terminal event without blocking; consumers that
// already walked away observe the channel close instead.
func sendDone(out chan<- Event) {
	select {
	case out <- Event{Kind: EventDone}:
	default:
	}
}

func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// synthesize renders a word sequence as a low-amplitude tone contour:
// each word becomes a short burst whose pitch is derived from the word,
// separated by brief silences. Deterministic for a given input.
func synthesize(words []string) []int16 {
	const (
		wordDuration  = 180 * time.Millisecond
		pauseDuration = 60 * time.Millisecond
		amplitude     = 0.18
	)

	wordSamples := int(float64(audio.SampleRate) * wordDuration.Seconds())
	pauseSamples := int(float64(audio.SampleRate) * pauseDuration.Seconds())

	floats := make([]float32, 0, len(words)*(wordSamples+pauseSamples))
	for _, word := range words {
		freq := wordPitch(word)
		for i := 0; i < wordSamples; i++ {
			// Soft attack/decay envelope avoids clicks between bursts.
			env := envelope(i, wordSamples)
			sample := amplitude * env * math.Sin(2*math.Pi*freq*float64(i)/float64(audio.SampleRate))
			floats = append(floats, float32(sample))
		}
		floats = append(floats, make([]float32, pauseSamples)...)
	}

	return audio.Float32ToInt16(floats)
}

func wordPitch(word string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(word)))
	// 120-320 Hz, roughly a speaking register.
	return 120.0 + float64(h.Sum32()%200)
}

func envelope(i, total int) float64 {
	ramp := total / 8
	if ramp == 0 {
		return 1
	}
	if i < ramp {
		return float64(i) / float64(ramp)
	}
	if i > total-ramp {
		return float64(total-i) / float64(ramp)
	}
	return 1
}
