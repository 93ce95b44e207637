// Package session owns the voice session lifecycle: it interprets inbound
// transport events, drives the capture pipeline and playback scheduler,
// and reports slide navigation and voice-activity changes through the
// presentation bridge.
//
// All inbound events are handled by one goroutine in transport-delivery
// order, run to completion, so transition handling needs no locking of its
// own; the mutex only guards the phase surface read by other goroutines.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voicedeck/voicedeck/internal/audio"
	"github.com/voicedeck/voicedeck/internal/presentation"
	"github.com/voicedeck/voicedeck/internal/protocol"
	"github.com/voicedeck/voicedeck/internal/shared"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	// PhaseProcessing covers the window after the transport handshake
	// while the first session-level signal is still pending.
	PhaseProcessing
	PhaseSpeaking
	PhaseListening
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseProcessing:
		return "processing"
	case PhaseSpeaking:
		return "speaking"
	case PhaseListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Transport is the persistent channel the session runs over.
type Transport interface {
	Send(event any) error
	Messages() <-chan []byte
	Closed() <-chan struct{}
	IsOpen() bool
	Close() error
}

// Capture is a running capture pipeline handle.
type Capture interface {
	Stop()
}

// Player schedules decoded frames for gapless output.
type Player interface {
	Schedule(samples []int16) int64
	Interrupt()
	Close() error
}

type Config struct {
	// Dial opens the transport; bounded by the channel's own handshake
	// timeout.
	Dial func(ctx context.Context) (Transport, error)
	// StartCapture acquires the microphone and begins emitting encoded
	// frames; gate is consulted per frame.
	StartCapture func(gate func() bool, emit func(frame []int16)) (Capture, error)
	NewPlayer    func() (Player, error)
	Bridge       presentation.Bridge
	OnTranscript func(text string, isFinal bool, speaker string)
	Logger       *slog.Logger
}

// Machine is the session state machine. At most one session is in flight;
// Start while not idle is a no-op.
type Machine struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	phase     Phase
	sessionID string
	lastErr   error
	stopping  bool

	channel Transport
	capture Capture
	player  Player
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMachine(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		cfg: cfg,
		log: cfg.Logger.With("component", "session"),
	}
}

// Start brings the session up: transport handshake, capture acquisition,
// playback context, then the session-start control event. Any failure
// aborts the attempt, runs full cleanup, and leaves the machine idle - it
// is never half-started.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		m.log.Debug("start ignored, session already in flight", "phase", m.phase.String())
		return nil
	}
	m.phase = PhaseConnecting
	m.lastErr = nil
	m.stopping = false
	sctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.cfg.Bridge.SetVoiceState(presentation.VoiceConnecting)

	ch, err := m.cfg.Dial(sctx)
	if err != nil {
		return m.failStart(fmt.Errorf("transport open: %w", err))
	}

	m.mu.Lock()
	if m.phase != PhaseConnecting || m.stopping {
		// A stop raced the handshake; do not resurrect.
		m.mu.Unlock()
		_ = ch.Close()
		m.cleanup()
		return nil
	}
	m.channel = ch
	m.mu.Unlock()

	player, err := m.cfg.NewPlayer()
	if err != nil {
		return m.failStart(fmt.Errorf("playback context: %w", err))
	}
	m.mu.Lock()
	m.player = player
	m.mu.Unlock()

	capturer, err := m.cfg.StartCapture(m.captureGate, m.onCaptureFrame)
	if err != nil {
		return m.failStart(err)
	}

	m.mu.Lock()
	if m.phase != PhaseConnecting || m.stopping {
		m.mu.Unlock()
		capturer.Stop()
		m.cleanup()
		return nil
	}
	m.capture = capturer
	m.phase = PhaseProcessing
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	_ = ch.Send(protocol.NewSessionStart())

	go m.run(ch, done)

	m.log.Info("session starting")
	return nil
}

// Stop is the sole cancellation entry point, safe from any state
// including mid-handshake. It always ends idle with every resource
// released.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.phase == PhaseIdle {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	ch := m.channel
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if ch != nil {
		_ = ch.Send(protocol.NewSessionStop())
		_ = ch.Close()
	}
	if cancel != nil {
		cancel()
	}

	if done != nil {
		// The event loop observes the close and finishes cleanup.
		<-done
		return
	}

	// Still connecting: Start's failure path or the phase check above
	// completes the teardown; nothing more to wait on here.
}

// Navigate asks the remote to move the deck one slide in either
// direction. The authoritative slide.changed event comes back over the
// channel.
func (m *Machine) Navigate(direction string) {
	m.sendControl(protocol.NewSlideNavigate(direction))
}

// GoToSlide requests an absolute jump by 1-based slide id.
func (m *Machine) GoToSlide(slideID int) {
	m.sendControl(protocol.NewSlideGoto(slideID))
}

// CancelResponse asks the remote to stop the in-progress answer.
func (m *Machine) CancelResponse() {
	m.sendControl(protocol.NewResponseCancel())
}

func (m *Machine) sendControl(event any) {
	m.mu.Lock()
	ch := m.channel
	active := m.phase == PhaseProcessing || m.phase == PhaseSpeaking || m.phase == PhaseListening
	m.mu.Unlock()

	if !active || ch == nil {
		m.log.Debug("control event dropped, session not active")
		return
	}
	_ = ch.Send(event)
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SessionID returns the server-issued identifier, empty until the remote
// acknowledges the session.
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// LastError reduces all terminal failures to one error consumable by the
// UI; the kind remains distinguishable via errors.Is.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Machine) captureGate() bool {
	m.mu.Lock()
	ch := m.channel
	active := m.phase == PhaseProcessing || m.phase == PhaseSpeaking || m.phase == PhaseListening
	m.mu.Unlock()
	return active && ch != nil && ch.IsOpen()
}

func (m *Machine) onCaptureFrame(frame []int16) {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	if ch == nil {
		return
	}
	_ = ch.Send(protocol.NewAudioInput(audio.EncodeFrame(frame)))
}

// run is the single consumer of the channel's event stream. Each event is
// handled to completion before the next is read; the only reordering is
// the explicit discard on interruption.
func (m *Machine) run(ch Transport, done chan struct{}) {
	defer close(done)

	msgs := ch.Messages()
	for {
		select {
		case data, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			m.handleMessage(data)
		case <-ch.Closed():
			// A message queued before the close still belongs to the
			// session; handle everything already buffered, in delivery
			// order, before tearing down.
			m.drainPending(msgs)
			m.handleClosed()
			return
		}
	}
}

func (m *Machine) drainPending(msgs <-chan []byte) {
	for {
		select {
		case data, ok := <-msgs:
			if !ok {
				return
			}
			m.handleMessage(data)
		default:
			return
		}
	}
}

func (m *Machine) handleMessage(data []byte) {
	event, err := protocol.DecodeServer(data)
	if err != nil {
		m.log.Warn("inbound event dropped", "error", err)
		return
	}

	switch ev := event.(type) {
	case protocol.SessionStarted:
		m.mu.Lock()
		m.sessionID = ev.SessionID
		m.mu.Unlock()
		m.setPhase(PhaseSpeaking)
		m.log.Info("session started", "session_id", ev.SessionID)

	case protocol.SessionStopped:
		// The remote follows with a close; cleanup happens there.
		m.log.Info("remote acknowledged stop")

	case protocol.AudioOutput:
		m.handleAudioOutput(ev)

	case protocol.AudioDone:
		// End of turn: queued audio keeps draining, no discard.
		m.setPhase(PhaseListening)

	case protocol.AudioInterrupted:
		m.mu.Lock()
		player := m.player
		m.mu.Unlock()
		if player != nil {
			player.Interrupt()
		}
		m.setPhase(PhaseListening)

	case protocol.SlideChanged:
		// Wire ids are 1-based, the bridge is 0-based.
		m.cfg.Bridge.GoToSlide(ev.SlideID - 1)

	case protocol.Transcript:
		if m.cfg.OnTranscript != nil {
			m.cfg.OnTranscript(ev.Text, ev.IsFinal, ev.Speaker)
		}

	case protocol.ErrorEvent:
		// The remote decides whether this is fatal by closing after it.
		m.mu.Lock()
		m.lastErr = fmt.Errorf("%s: %w", ev.Message, shared.ErrRemoteReported)
		m.mu.Unlock()
		m.log.Error("remote reported error", "message", ev.Message, "code", ev.Code)

	case protocol.ConnectionStatus:
		m.log.Debug("remote connection status", "status", ev.Status, "message", ev.Message)

	default:
		m.log.Warn("unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

func (m *Machine) handleAudioOutput(ev protocol.AudioOutput) {
	samples, err := audio.DecodeFrame(ev.Audio)
	if err != nil {
		// Recoverable per-frame error: drop it, keep the session.
		m.log.Warn("audio frame dropped", "error", err)
		return
	}
	if len(samples) == 0 {
		return
	}

	m.mu.Lock()
	player := m.player
	m.mu.Unlock()
	if player == nil {
		return
	}
	player.Schedule(samples)
	m.setPhase(PhaseSpeaking)
}

func (m *Machine) handleClosed() {
	m.mu.Lock()
	if m.phase == PhaseIdle {
		m.mu.Unlock()
		return
	}
	planned := m.stopping
	if !planned {
		// An unplanned close cleans up like a local stop but surfaces
		// as an error state, not a clean stop.
		m.lastErr = fmt.Errorf("connection closed unexpectedly: %w", shared.ErrConnectionFailed)
	}
	m.mu.Unlock()

	if planned {
		m.log.Info("session stopped")
	} else {
		m.log.Error("transport closed unexpectedly")
	}
	m.cleanup()
}

func (m *Machine) failStart(err error) error {
	if errors.Is(err, context.Canceled) {
		// Stop raced the handshake; a clean idle, not a failure.
		m.cleanup()
		return nil
	}

	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.log.Error("session start failed", "error", err)
	m.cleanup()
	return err
}

func (m *Machine) setPhase(p Phase) {
	m.mu.Lock()
	if m.phase == PhaseIdle {
		// Never resurrect a torn-down session from a late event.
		m.mu.Unlock()
		return
	}
	changed := m.phase != p
	m.phase = p
	m.mu.Unlock()

	if !changed {
		return
	}
	switch p {
	case PhaseSpeaking:
		m.cfg.Bridge.SetVoiceState(presentation.VoiceSpeaking)
	case PhaseListening:
		m.cfg.Bridge.SetVoiceState(presentation.VoiceListening)
	}
}

// cleanup releases every session resource. Idempotent: a second call, or
// a call when some resources were never acquired, is a no-op per handle.
// All references are nulled before a subsequent Start acquires new ones.
func (m *Machine) cleanup() {
	m.mu.Lock()
	capture := m.capture
	player := m.player
	ch := m.channel
	cancel := m.cancel
	m.capture = nil
	m.player = nil
	m.channel = nil
	m.cancel = nil
	m.done = nil
	m.sessionID = ""
	m.phase = PhaseIdle
	m.stopping = false
	m.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if player != nil {
		if err := player.Close(); err != nil {
			m.log.Warn("playback close failed", "error", err)
		}
	}
	if ch != nil {
		_ = ch.Close()
	}
	if cancel != nil {
		cancel()
	}

	m.cfg.Bridge.SetVoiceState(presentation.VoiceIdle)
}
