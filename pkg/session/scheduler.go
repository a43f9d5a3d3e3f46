package session

// FrameScheduler coalesces update requests onto the next frame. Any number
// of Request calls between two frames result in a single update.
type FrameScheduler struct {
	pending bool
	update  func()
}

// NewFrameScheduler creates a scheduler that runs update on each frame
// with a pending request
func NewFrameScheduler(update func()) *FrameScheduler {
	return &FrameScheduler{update: update}
}

// Request marks an update as pending. It reports whether this call
// scheduled it, false if one was already pending.
func (f *FrameScheduler) Request() bool {
	if f.pending {
		return false
	}
	f.pending = true
	return true
}

// Pending reports whether an update is waiting for the next frame
func (f *FrameScheduler) Pending() bool { return f.pending }

// Frame runs the pending update, if any, and reports whether it ran
func (f *FrameScheduler) Frame() bool {
	if !f.pending {
		return false
	}
	f.pending = false
	f.update()
	return true
}
