package deck

// Session tracks slide position for one presentation. Ids are 1-based;
// navigation outside the deck returns false and leaves position unchanged.
type Session struct {
	slides  []Slide
	current int // 1-based id of the current slide
}

func NewSession(slides []Slide) *Session {
	s := &Session{slides: slides}
	if len(slides) > 0 {
		s.current = slides[0].ID
	}
	return s
}

func (s *Session) Current() Slide {
	for _, slide := range s.slides {
		if slide.ID == s.current {
			return slide
		}
	}
	if len(s.slides) > 0 {
		return s.slides[0]
	}
	return Slide{}
}

func (s *Session) Total() int {
	return len(s.slides)
}

func (s *Session) HasNext() bool {
	return s.current < len(s.slides)
}

func (s *Session) HasPrevious() bool {
	return s.current > 1
}

func (s *Session) GoTo(id int) (Slide, bool) {
	if id < 1 || id > len(s.slides) {
		return Slide{}, false
	}
	s.current = id
	return s.Current(), true
}

func (s *Session) Next() (Slide, bool) {
	if !s.HasNext() {
		return Slide{}, false
	}
	return s.GoTo(s.current + 1)
}

func (s *Session) Previous() (Slide, bool) {
	if !s.HasPrevious() {
		return Slide{}, false
	}
	return s.GoTo(s.current - 1)
}
