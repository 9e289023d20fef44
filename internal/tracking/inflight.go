package tracking

import (
	"sort"
	"sync"
)

// Inflight tracks call SIDs handed to the telephony vendor but not yet
// reported terminal. It exists for shutdown draining and operator visibility;
// nothing here survives a restart.
type Inflight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewInflight builds an empty registry.
func NewInflight() *Inflight {
	return &Inflight{ids: make(map[string]struct{})}
}

// Register records a call SID as live.
func (f *Inflight) Register(callSID string) {
	if callSID == "" {
		return
	}
	f.mu.Lock()
	f.ids[callSID] = struct{}{}
	f.mu.Unlock()
}

// Unregister removes a call SID, reporting whether it was present.
func (f *Inflight) Unregister(callSID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[callSID]
	delete(f.ids, callSID)
	return ok
}

// Len reports the number of live calls.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// Snapshot returns a sorted copy of the live call SIDs. Repeated snapshots
// without intervening mutation are identical.
func (f *Inflight) Snapshot() []string {
	f.mu.Lock()
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	f.mu.Unlock()

	sort.Strings(out)
	return out
}
