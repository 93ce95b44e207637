// Package protocol defines the JSON events exchanged between the voice
// client and the presentation gateway. Each message is a single complete
// JSON text frame with a "type" tag; unknown tags are a decode error,
// never silently dropped.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/voicedeck/voicedeck/internal/shared"
)

// Client -> server event types.
const (
	TypeSessionStart   = "session.start"
	TypeSessionStop    = "session.stop"
	TypeAudioInput     = "audio.input"
	TypeSlideNavigate  = "slide.navigate"
	TypeSlideGoto      = "slide.goto"
	TypeResponseCancel = "response.cancel"
)

// Server -> client event types.
const (
	TypeSessionStarted   = "session.started"
	TypeSessionStopped   = "session.stopped"
	TypeAudioOutput      = "audio.output"
	TypeAudioDone        = "audio.done"
	TypeAudioInterrupted = "audio.interrupted"
	TypeSlideChanged     = "slide.changed"
	TypeTranscript       = "transcript"
	TypeError            = "error"
	TypeConnectionStatus = "connection.status"
)

// connection.status values.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

type ClientEvent interface {
	clientEvent()
}

type SessionStart struct {
	Type string `json:"type"`
}

type SessionStop struct {
	Type string `json:"type"`
}

type AudioInput struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type SlideNavigate struct {
	Type      string `json:"type"`
	Direction string `json:"direction"`
}

type SlideGoto struct {
	Type    string `json:"type"`
	SlideID int    `json:"slide_id"`
}

type ResponseCancel struct {
	Type string `json:"type"`
}

func (SessionStart) clientEvent()   {}
func (SessionStop) clientEvent()    {}
func (AudioInput) clientEvent()     {}
func (SlideNavigate) clientEvent()  {}
func (SlideGoto) clientEvent()      {}
func (ResponseCancel) clientEvent() {}

func NewSessionStart() SessionStart         { return SessionStart{Type: TypeSessionStart} }
func NewSessionStop() SessionStop           { return SessionStop{Type: TypeSessionStop} }
func NewAudioInput(audio string) AudioInput { return AudioInput{Type: TypeAudioInput, Audio: audio} }
func NewSlideNavigate(direction string) SlideNavigate {
	return SlideNavigate{Type: TypeSlideNavigate, Direction: direction}
}
func NewSlideGoto(slideID int) SlideGoto {
	return SlideGoto{Type: TypeSlideGoto, SlideID: slideID}
}
func NewResponseCancel() ResponseCancel { return ResponseCancel{Type: TypeResponseCancel} }

type ServerEvent interface {
	serverEvent()
}

type SessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type SessionStopped struct {
	Type string `json:"type"`
}

type AudioOutput struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type AudioDone struct {
	Type string `json:"type"`
}

type AudioInterrupted struct {
	Type string `json:"type"`
}

type SlideChanged struct {
	Type        string   `json:"type"`
	SlideID     int      `json:"slide_id"`
	Title       string   `json:"title"`
	Content     []string `json:"content"`
	Narration   string   `json:"narration"`
	TotalSlides int      `json:"total_slides"`
	HasNext     bool     `json:"has_next"`
	HasPrevious bool     `json:"has_previous"`
}

type Transcript struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Speaker string `json:"speaker"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ConnectionStatus struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (SessionStarted) serverEvent()   {}
func (SessionStopped) serverEvent()   {}
func (AudioOutput) serverEvent()      {}
func (AudioDone) serverEvent()        {}
func (AudioInterrupted) serverEvent() {}
func (SlideChanged) serverEvent()     {}
func (Transcript) serverEvent()       {}
func (ErrorEvent) serverEvent()       {}
func (ConnectionStatus) serverEvent() {}

func NewSessionStarted(sessionID string) SessionStarted {
	return SessionStarted{Type: TypeSessionStarted, SessionID: sessionID}
}
func NewSessionStopped() SessionStopped { return SessionStopped{Type: TypeSessionStopped} }
func NewAudioOutput(audio string) AudioOutput {
	return AudioOutput{Type: TypeAudioOutput, Audio: audio}
}
func NewAudioDone() AudioDone               { return AudioDone{Type: TypeAudioDone} }
func NewAudioInterrupted() AudioInterrupted { return AudioInterrupted{Type: TypeAudioInterrupted} }
func NewTranscript(text string, isFinal bool, speaker string) Transcript {
	return Transcript{Type: TypeTranscript, Text: text, IsFinal: isFinal, Speaker: speaker}
}
func NewError(message, code string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message, Code: code}
}
func NewConnectionStatus(status, message string) ConnectionStatus {
	return ConnectionStatus{Type: TypeConnectionStatus, Status: status, Message: message}
}

func Encode(event any) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeServer parses one server -> client frame. Unknown or malformed
// frames fail with shared.ErrProtocolDecode; the caller drops the frame.
func DecodeServer(data []byte) (ServerEvent, error) {
	tag, err := peekType(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TypeSessionStarted:
		return decodeAs[SessionStarted](data)
	case TypeSessionStopped:
		return decodeAs[SessionStopped](data)
	case TypeAudioOutput:
		return decodeAs[AudioOutput](data)
	case TypeAudioDone:
		return decodeAs[AudioDone](data)
	case TypeAudioInterrupted:
		return decodeAs[AudioInterrupted](data)
	case TypeSlideChanged:
		return decodeAs[SlideChanged](data)
	case TypeTranscript:
		return decodeAs[Transcript](data)
	case TypeError:
		return decodeAs[ErrorEvent](data)
	case TypeConnectionStatus:
		ev, err := decodeAs[ConnectionStatus](data)
		if err != nil {
			return nil, err
		}
		switch ev.Status {
		case StatusConnecting, StatusConnected, StatusDisconnected, StatusError:
		default:
			return nil, fmt.Errorf("unknown connection status %q: %w", ev.Status, shared.ErrProtocolDecode)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown server event %q: %w", tag, shared.ErrProtocolDecode)
	}
}

// DecodeClient parses one client -> server frame.
func DecodeClient(data []byte) (ClientEvent, error) {
	tag, err := peekType(data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TypeSessionStart:
		return decodeAs[SessionStart](data)
	case TypeSessionStop:
		return decodeAs[SessionStop](data)
	case TypeAudioInput:
		return decodeAs[AudioInput](data)
	case TypeSlideNavigate:
		return decodeAs[SlideNavigate](data)
	case TypeSlideGoto:
		return decodeAs[SlideGoto](data)
	case TypeResponseCancel:
		return decodeAs[ResponseCancel](data)
	default:
		return nil, fmt.Errorf("unknown client event %q: %w", tag, shared.ErrProtocolDecode)
	}
}

func peekType(data []byte) (string, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("unparsable event: %w", shared.ErrProtocolDecode)
	}
	if probe.Type == "" {
		return "", fmt.Errorf("event missing type tag: %w", shared.ErrProtocolDecode)
	}
	return probe.Type, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("malformed event body: %w", shared.ErrProtocolDecode)
	}
	return ev, nil
}
