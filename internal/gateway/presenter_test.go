package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/voicedeck/voicedeck/internal/audio"
	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/history"
	"github.com/voicedeck/voicedeck/internal/narrator"
	"github.com/voicedeck/voicedeck/internal/protocol"
)

// fakeSink collects the frames a presenter emits, decoded back into
// server events.
type fakeSink struct {
	mu     sync.Mutex
	events []protocol.ServerEvent
}

func (s *fakeSink) Send(data []byte) {
	event, err := protocol.DecodeServer(data)
	if err != nil {
		panic("presenter emitted undecodable frame: " + err.Error())
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *fakeSink) snapshot() []protocol.ServerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ServerEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *fakeSink) waitFor(t *testing.T, match func(protocol.ServerEvent) bool) protocol.ServerEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, event := range s.snapshot() {
			if match(event) {
				return event
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected event never arrived; saw %#v", s.snapshot())
	return nil
}

func (s *fakeSink) count(match func(protocol.ServerEvent) bool) int {
	n := 0
	for _, event := range s.snapshot() {
		if match(event) {
			n++
		}
	}
	return n
}

func isAudioDone(e protocol.ServerEvent) bool { _, ok := e.(protocol.AudioDone); return ok }
func isAudioInterrupted(e protocol.ServerEvent) bool { _, ok := e.(protocol.AudioInterrupted); return ok }
func isAudioOutput(e protocol.ServerEvent) bool { _, ok := e.(protocol.AudioOutput); return ok }
func isSlideChanged(e protocol.ServerEvent) bool { _, ok := e.(protocol.SlideChanged); return ok }

// fakeResponder streams one audio chunk and a final transcript. With
// hold set it keeps the stream open until the context is cancelled.
type fakeResponder struct {
	hold bool
}

func (f *fakeResponder) Speak(ctx context.Context, text string) <-chan narrator.Event {
	out := make(chan narrator.Event, 8)
	go func() {
		defer close(out)
		out <- narrator.Event{Kind: narrator.EventAudio, Samples: make([]int16, audio.FrameSamples)}
		out <- narrator.Event{Kind: narrator.EventTranscript, Text: text, IsFinal: true}
		if f.hold {
			<-ctx.Done()
			out <- narrator.Event{Kind: narrator.EventDone}
			return
		}
		out <- narrator.Event{Kind: narrator.EventDone}
	}()
	return out
}

type fakeTranscripts struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeTranscripts) Append(_ context.Context, _ string, entry history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func testSlides() []deck.Slide {
	return []deck.Slide{
		{ID: 1, Title: "One", Content: []string{"a"}, Narration: "first slide"},
		{ID: 2, Title: "Two", Content: []string{"b"}, Narration: "second slide"},
		{ID: 3, Title: "Three", Content: []string{"c"}, Narration: "third slide"},
	}
}

func newTestPresenter(t *testing.T, hold bool) (*Presenter, *fakeSink, *fakeTranscripts) {
	t.Helper()
	sink := &fakeSink{}
	hist := &fakeTranscripts{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPresenter(sink, testSlides(), &fakeResponder{hold: hold}, hist, logger)
	t.Cleanup(p.Shutdown)
	return p, sink, hist
}

func sendFrame(t *testing.T, p *Presenter, event any) {
	t.Helper()
	data, err := protocol.Encode(event)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	p.HandleFrame(data)
}

func TestStartAnnouncesFirstSlide(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())

	started := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.SessionStarted)
		return ok
	}).(protocol.SessionStarted)
	if started.SessionID == "" {
		t.Error("expected a session id")
	}

	changed := sink.waitFor(t, isSlideChanged).(protocol.SlideChanged)
	if changed.SlideID != 1 || changed.TotalSlides != 3 {
		t.Errorf("unexpected slide announcement: %+v", changed)
	}
	if changed.HasPrevious {
		t.Error("first slide should not report a previous slide")
	}

	sink.waitFor(t, isAudioOutput)
	sink.waitFor(t, isAudioDone)
}

func TestStartIsIdempotent(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	first := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.SessionStarted)
		return ok
	}).(protocol.SessionStarted)

	sink.waitFor(t, isAudioDone)
	sendFrame(t, p, protocol.NewSessionStart())

	deadline := time.Now().Add(time.Second)
	var ids []string
	for time.Now().Before(deadline) {
		ids = ids[:0]
		for _, event := range sink.snapshot() {
			if started, ok := event.(protocol.SessionStarted); ok {
				ids = append(ids, started.SessionID)
			}
		}
		if len(ids) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two session.started events, got %d", len(ids))
	}
	if ids[1] != first.SessionID {
		t.Errorf("restart changed the session id: %s vs %s", ids[1], first.SessionID)
	}
}

func TestRestartWhileNarratingCancelsOldNarration(t *testing.T) {
	p, sink, _ := newTestPresenter(t, true)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioOutput)

	sendFrame(t, p, protocol.NewSessionStart())

	sink.waitFor(t, isAudioInterrupted)
	if got := sink.count(isAudioInterrupted); got != 1 {
		t.Errorf("expected exactly one interruption, got %d", got)
	}

	// The replayed narration streams fresh audio after the interrupt.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.count(isAudioOutput) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(isAudioOutput); got < 2 {
		t.Errorf("expected the restarted narration to stream audio, got %d frames", got)
	}
	if sink.count(isAudioDone) != 0 {
		t.Error("a held narration must not emit audio.done")
	}
}

func TestNavigateNextAnnouncesSlide(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	sendFrame(t, p, protocol.NewSlideNavigate("next"))

	sink.waitFor(t, func(e protocol.ServerEvent) bool {
		changed, ok := e.(protocol.SlideChanged)
		return ok && changed.SlideID == 2
	})
}

func TestNavigatePastEdgeIsIgnored(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)
	before := sink.count(isSlideChanged)

	sendFrame(t, p, protocol.NewSlideNavigate("prev"))

	time.Sleep(50 * time.Millisecond)
	if got := sink.count(isSlideChanged); got != before {
		t.Errorf("expected no new slide.changed, got %d extra", got-before)
	}
	for _, event := range sink.snapshot() {
		if _, ok := event.(protocol.ErrorEvent); ok {
			t.Errorf("edge navigation should not raise an error event")
		}
	}
}

func TestGotoInvalidSlide(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	sendFrame(t, p, protocol.NewSlideGoto(99))

	event := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.ErrorEvent)
		return ok
	}).(protocol.ErrorEvent)
	if event.Code != "invalid_slide" {
		t.Errorf("expected invalid_slide, got %s", event.Code)
	}
}

func TestGotoAnnouncesRequestedSlide(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	sendFrame(t, p, protocol.NewSlideGoto(3))

	changed := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		c, ok := e.(protocol.SlideChanged)
		return ok && c.SlideID == 3
	}).(protocol.SlideChanged)
	if changed.HasNext {
		t.Error("last slide should not report a next slide")
	}
}

func TestResponseCancelInterruptsNarration(t *testing.T) {
	p, sink, _ := newTestPresenter(t, true)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioOutput)

	sendFrame(t, p, protocol.NewResponseCancel())

	sink.waitFor(t, isAudioInterrupted)
	time.Sleep(50 * time.Millisecond)
	if sink.count(isAudioDone) != 0 {
		t.Error("cancelled narration must not emit audio.done")
	}
}

func TestBargeInInterruptsNarration(t *testing.T) {
	p, sink, _ := newTestPresenter(t, true)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioOutput)

	loud := make([]int16, audio.FrameSamples)
	for i := range loud {
		loud[i] = 20000
	}
	sendFrame(t, p, protocol.NewAudioInput(audio.EncodeFrame(loud)))

	sink.waitFor(t, isAudioInterrupted)
}

func TestMalformedAudioRaisesError(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	sendFrame(t, p, protocol.NewAudioInput("not base64!!"))

	event := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.ErrorEvent)
		return ok
	}).(protocol.ErrorEvent)
	if event.Code != "malformed_audio" {
		t.Errorf("expected malformed_audio, got %s", event.Code)
	}
}

func TestUndecodableFrameRaisesError(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	p.HandleFrame([]byte(`{"type":"bogus.event"}`))

	event := sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.ErrorEvent)
		return ok
	}).(protocol.ErrorEvent)
	if event.Code != "protocol_decode" {
		t.Errorf("expected protocol_decode, got %s", event.Code)
	}
}

func TestStopEndsSession(t *testing.T) {
	p, sink, _ := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	sendFrame(t, p, protocol.NewSessionStop())
	sink.waitFor(t, func(e protocol.ServerEvent) bool {
		_, ok := e.(protocol.SessionStopped)
		return ok
	})

	before := sink.count(isSlideChanged)
	sendFrame(t, p, protocol.NewSlideNavigate("next"))
	time.Sleep(50 * time.Millisecond)
	if got := sink.count(isSlideChanged); got != before {
		t.Error("navigation after stop should be ignored")
	}
}

func TestNarrationIsRecordedInHistory(t *testing.T) {
	p, sink, hist := newTestPresenter(t, false)

	sendFrame(t, p, protocol.NewSessionStart())
	sink.waitFor(t, isAudioDone)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hist.mu.Lock()
		n := len(hist.entries)
		hist.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	hist.mu.Lock()
	defer hist.mu.Unlock()
	if len(hist.entries) == 0 {
		t.Fatal("expected the narration transcript to be recorded")
	}
	if hist.entries[0].Speaker != "ai" || hist.entries[0].Text != "first slide" {
		t.Errorf("unexpected history entry: %+v", hist.entries[0])
	}
}
