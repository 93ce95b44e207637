package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voicedeck/voicedeck/internal/audio"
	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/history"
	"github.com/voicedeck/voicedeck/internal/narrator"
	"github.com/voicedeck/voicedeck/internal/protocol"
	"github.com/voicedeck/voicedeck/internal/shared"
	"github.com/voicedeck/voicedeck/internal/vad"
)

// sender delivers encoded frames to the presenter's connection.
type sender interface {
	Send(data []byte)
}

// transcripts records what was said during a session.
type transcripts interface {
	Append(ctx context.Context, sessionID string, entry history.Entry) error
}

// Presenter drives one presenter connection: it tracks the slide
// position, streams narration for the current slide, and interrupts
// narration when the presenter starts talking over it.
type Presenter struct {
	conn      sender
	session   *deck.Session
	responder narrator.Responder
	detector  *vad.Detector
	history   transcripts
	logger    *slog.Logger

	mu          sync.Mutex
	sessionID   string
	speaking    bool
	cancelSpeak context.CancelFunc
	narrating   sync.WaitGroup
}

func NewPresenter(conn sender, slides []deck.Slide, responder narrator.Responder, hist transcripts, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		conn:      conn,
		session:   deck.NewSession(slides),
		responder: responder,
		detector:  vad.NewDetector(vad.DefaultThreshold),
		history:   hist,
		logger:    logger.With("component", "presenter"),
	}
}

// HandleFrame dispatches one inbound frame. Frames arrive serially from
// the connection's read loop.
func (p *Presenter) HandleFrame(data []byte) {
	event, err := protocol.DecodeClient(data)
	if err != nil {
		p.logger.Warn("dropping undecodable frame", "error", err)
		p.sendEvent(protocol.NewError("could not decode event", "protocol_decode"))
		return
	}

	switch ev := event.(type) {
	case protocol.SessionStart:
		p.handleStart()
	case protocol.SessionStop:
		p.handleStop()
	case protocol.AudioInput:
		p.handleAudio(ev)
	case protocol.SlideNavigate:
		p.handleNavigate(ev.Direction)
	case protocol.SlideGoto:
		p.handleGoto(ev.SlideID)
	case protocol.ResponseCancel:
		p.interrupt()
	}
}

// Shutdown stops any in-flight narration and waits for its goroutine.
func (p *Presenter) Shutdown() {
	p.mu.Lock()
	if p.cancelSpeak != nil {
		p.cancelSpeak()
	}
	p.mu.Unlock()
	p.narrating.Wait()
}

func (p *Presenter) handleStart() {
	p.mu.Lock()
	if p.sessionID == "" {
		p.sessionID = shared.NewID("sess")
	}
	id := p.sessionID
	p.mu.Unlock()

	p.logger.Info("session started", "session_id", id)
	p.sendEvent(protocol.NewSessionStarted(id))

	// A repeated start replays the current slide; announce cancels any
	// narration still in flight first.
	p.announce(p.session.Current())
}

func (p *Presenter) handleStop() {
	p.mu.Lock()
	id := p.sessionID
	p.sessionID = ""
	cancel := p.cancelSpeak
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.narrating.Wait()
	p.detector.Reset()

	p.logger.Info("session stopped", "session_id", id)
	p.sendEvent(protocol.NewSessionStopped())
}

func (p *Presenter) handleAudio(ev protocol.AudioInput) {
	if !p.active() {
		return
	}

	samples, err := audio.DecodeFrame(ev.Audio)
	if err != nil {
		p.logger.Warn("dropping malformed audio frame", "error", err)
		p.sendEvent(protocol.NewError("malformed audio payload", "malformed_audio"))
		return
	}

	started, ended := p.detector.Process(samples)
	if started && p.isSpeaking() {
		p.logger.Debug("presenter spoke over narration, interrupting")
		p.interrupt()
	}
	if ended {
		p.appendHistory(history.Entry{Speaker: "user", Text: "(spoke)", Final: true})
	}
}

func (p *Presenter) handleNavigate(direction string) {
	if !p.active() {
		return
	}

	var (
		slide deck.Slide
		ok    bool
	)
	switch direction {
	case "next":
		slide, ok = p.session.Next()
	case "prev":
		slide, ok = p.session.Previous()
	default:
		p.sendEvent(protocol.NewError("unknown direction "+direction, "invalid_direction"))
		return
	}

	if !ok {
		p.logger.Debug("navigation past deck edge ignored", "direction", direction)
		return
	}
	p.announce(slide)
}

func (p *Presenter) handleGoto(slideID int) {
	if !p.active() {
		return
	}

	slide, ok := p.session.GoTo(slideID)
	if !ok {
		p.sendEvent(protocol.NewError("no such slide", "invalid_slide"))
		return
	}
	p.announce(slide)
}

// announce emits slide.changed and restarts narration for the slide.
func (p *Presenter) announce(slide deck.Slide) {
	p.interrupt()
	p.sendSlideChanged(slide)
	p.narrate(slide.Narration)
}

// interrupt cancels in-flight narration and tells the client to discard
// queued audio.
func (p *Presenter) interrupt() {
	p.mu.Lock()
	cancel := p.cancelSpeak
	wasSpeaking := p.speaking
	p.cancelSpeak = nil
	p.speaking = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.narrating.Wait()

	if wasSpeaking {
		p.sendEvent(protocol.NewAudioInterrupted())
	}
}

func (p *Presenter) narrate(text string) {
	if text == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.cancelSpeak = cancel
	p.speaking = true
	p.mu.Unlock()

	p.narrating.Add(1)
	go func() {
		defer p.narrating.Done()

		for ev := range p.responder.Speak(ctx, text) {
			switch ev.Kind {
			case narrator.EventAudio:
				p.sendEvent(protocol.NewAudioOutput(audio.EncodeFrame(ev.Samples)))
			case narrator.EventTranscript:
				p.sendEvent(protocol.NewTranscript(ev.Text, ev.IsFinal, "ai"))
				if ev.IsFinal {
					p.appendHistory(history.Entry{Speaker: "ai", Text: ev.Text, Final: true})
				}
			case narrator.EventDone:
				p.finishNarration(ctx)
				return
			}
		}
		p.finishNarration(ctx)
	}()
}

// finishNarration marks end of turn. A cancelled narration was already
// answered with audio.interrupted, so audio.done only follows a full
// run to the end.
func (p *Presenter) finishNarration(ctx context.Context) {
	interrupted := ctx.Err() != nil

	p.mu.Lock()
	p.speaking = false
	p.cancelSpeak = nil
	p.mu.Unlock()

	if !interrupted {
		p.sendEvent(protocol.NewAudioDone())
	}
}

func (p *Presenter) sendSlideChanged(slide deck.Slide) {
	p.sendEvent(protocol.SlideChanged{
		Type:        protocol.TypeSlideChanged,
		SlideID:     slide.ID,
		Title:       slide.Title,
		Content:     slide.Content,
		Narration:   slide.Narration,
		TotalSlides: p.session.Total(),
		HasNext:     p.session.HasNext(),
		HasPrevious: p.session.HasPrevious(),
	})
}

func (p *Presenter) sendEvent(event any) {
	data, err := protocol.Encode(event)
	if err != nil {
		p.logger.Error("failed to encode event", "error", err)
		return
	}
	p.conn.Send(data)
}

func (p *Presenter) appendHistory(entry history.Entry) {
	p.mu.Lock()
	id := p.sessionID
	p.mu.Unlock()

	if p.history == nil || id == "" {
		return
	}
	if err := p.history.Append(context.Background(), id, entry); err != nil {
		p.logger.Warn("failed to record transcript", "error", err)
	}
}

func (p *Presenter) active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID != ""
}

func (p *Presenter) isSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}
