// Package presentation is the narrow surface between the voice session
// core and the slide UI: the session reads and mutates slide position and
// voice-activity state through it, nothing more.
package presentation

// VoiceState reflects whose turn the channel currently believes is active.
type VoiceState string

const (
	VoiceIdle       VoiceState = "idle"
	VoiceConnecting VoiceState = "connecting"
	VoiceListening  VoiceState = "listening"
	VoiceSpeaking   VoiceState = "speaking"
)

// Bridge is implemented by the UI layer. GoToSlide clamps silently to the
// valid range; it never fails.
type Bridge interface {
	GoToSlide(index int)
	SetVoiceState(state VoiceState)
}
