package scheduler

// Semaphore is a channel-based counting semaphore capping how many agent
// invocations run at once.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity (minimum 1).
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking; false means the cap is hit.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by a successful TryAcquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// Available returns the number of free slots.
func (s *Semaphore) Available() int {
	return cap(s.slots) - len(s.slots)
}
