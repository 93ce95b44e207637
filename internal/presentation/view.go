package presentation

import (
	"sync"

	"github.com/voicedeck/voicedeck/internal/deck"
)

// View is a concurrency-safe Bridge backed by a slide deck snapshot.
// The terminal client renders from it; a richer UI could implement Bridge
// directly instead.
type View struct {
	mu         sync.RWMutex
	slides     []deck.Slide
	current    int
	voiceState VoiceState

	onChange func(slide deck.Slide, index int)
	onVoice  func(state VoiceState)
}

type ViewCallbacks struct {
	OnSlideChange func(slide deck.Slide, index int)
	OnVoiceState  func(state VoiceState)
}

func NewView(slides []deck.Slide, cb ViewCallbacks) *View {
	return &View{
		slides:     slides,
		voiceState: VoiceIdle,
		onChange:   cb.OnSlideChange,
		onVoice:    cb.OnVoiceState,
	}
}

func (v *View) GoToSlide(index int) {
	v.mu.Lock()
	if len(v.slides) == 0 {
		v.mu.Unlock()
		return
	}
	if index < 0 {
		index = 0
	} else if index >= len(v.slides) {
		index = len(v.slides) - 1
	}
	changed := index != v.current
	v.current = index
	slide := v.slides[index]
	cb := v.onChange
	v.mu.Unlock()

	if changed && cb != nil {
		cb(slide, index)
	}
}

func (v *View) SetVoiceState(state VoiceState) {
	v.mu.Lock()
	changed := state != v.voiceState
	v.voiceState = state
	cb := v.onVoice
	v.mu.Unlock()

	if changed && cb != nil {
		cb(state)
	}
}

func (v *View) Current() (deck.Slide, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.slides) == 0 {
		return deck.Slide{}, 0
	}
	return v.slides[v.current], v.current
}

func (v *View) VoiceState() VoiceState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.voiceState
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.slides)
}
