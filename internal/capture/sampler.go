package capture

// Sampler keeps one in every n frames. Not safe for concurrent use; the
// decode loop is the only caller.
type Sampler struct {
	n     int
	count int
}

// NewSampler builds a 1-in-n sampler. n < 1 keeps every frame.
func NewSampler(n int) *Sampler {
	if n < 1 {
		n = 1
	}
	return &Sampler{n: n}
}

// Keep counts the frame and reports whether it is the Nth.
func (s *Sampler) Keep() bool {
	s.count++
	return s.count%s.n == 0
}

// Seen returns the number of frames counted so far.
func (s *Sampler) Seen() int {
	return s.count
}
