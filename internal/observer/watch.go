package observer

import "sync"

// WatchFlag remembers whether model inspection was already requested from
// the tracking backend. Registering the inspection hooks twice is not safe,
// so every observer sharing a flag issues at most one Watch call overall.
type WatchFlag struct {
	mu  sync.Mutex
	set bool
}

// DefaultWatchFlag is shared by observers that are not given their own flag.
var DefaultWatchFlag = &WatchFlag{}

// TrySet sets the flag and reports whether this call was the one to set it.
func (f *WatchFlag) TrySet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return false
	}
	f.set = true
	return true
}

func (f *WatchFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}
