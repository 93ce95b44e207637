package capture

// Framer accumulates raw samples and slices them into fixed-size frames.
// Samples cross push boundaries without loss; leftover partial-frame
// samples stay staged for the next push.
type Framer struct {
	size   int
	staged []int16
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultFrameSize
	}
	return &Framer{
		size:   size,
		staged: make([]int16, 0, size*2),
	}
}

// Push appends samples to the staging buffer and returns every complete
// frame now available, in FIFO order. Returned frames are copies.
func (f *Framer) Push(samples []int16) [][]int16 {
	f.staged = append(f.staged, samples...)

	var frames [][]int16
	for len(f.staged) >= f.size {
		frame := make([]int16, f.size)
		copy(frame, f.staged[:f.size])
		frames = append(frames, frame)
		f.staged = f.staged[f.size:]
	}

	if len(frames) > 0 && len(f.staged) > 0 {
		// Reclaim the sliced-off prefix so the buffer does not grow
		// for the lifetime of the stream.
		remaining := make([]int16, len(f.staged), f.size*2)
		copy(remaining, f.staged)
		f.staged = remaining
	} else if len(f.staged) == 0 {
		f.staged = f.staged[:0]
	}

	return frames
}

// Pending reports how many samples are staged short of a full frame.
func (f *Framer) Pending() int {
	return len(f.staged)
}

func (f *Framer) Reset() {
	f.staged = f.staged[:0]
}
