package shutdown

import "sync"

// signalCounter escalates repeated signals: the first starts a graceful
// shutdown, the forceAfter-th calls onForce.
type signalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

func (s *signalCounter) increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}
