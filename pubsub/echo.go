package pubsub

import (
	"sync"
	"time"
)

type echoKey struct {
	user    string
	message string
}

type echoEntry struct {
	at      time.Time
	pending int
}

// EchoFilter suppresses the broadcast copy of a message a connection has
// just sent itself. Messages carry no identifiers, so a {user, message} pair
// seen again within the window is treated as the echo. Each remembered send
// suppresses exactly one matching delivery.
type EchoFilter struct {
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	recent map[echoKey]*echoEntry
}

func NewEchoFilter(window time.Duration) *EchoFilter {
	return &EchoFilter{window: window, now: time.Now, recent: map[echoKey]*echoEntry{}}
}

// Remember records a message sent from this connection.
func (f *EchoFilter) Remember(user, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prune()
	k := echoKey{user, message}
	e, ok := f.recent[k]
	if !ok {
		e = &echoEntry{}
		f.recent[k] = e
	}
	e.at = f.now()
	e.pending++
}

// Forget drops a remembered message, e.g. when sending it failed.
func (f *EchoFilter) Forget(user, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consume(echoKey{user, message})
}

// Suppress reports whether an incoming message is the echo of one sent
// within the window, consuming the record if so.
func (f *EchoFilter) Suppress(user, message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := echoKey{user, message}
	e, ok := f.recent[k]
	if !ok {
		return false
	}
	if f.now().Sub(e.at) > f.window {
		delete(f.recent, k)
		return false
	}
	f.consume(k)
	return true
}

func (f *EchoFilter) consume(k echoKey) {
	e, ok := f.recent[k]
	if !ok {
		return
	}
	if e.pending--; e.pending <= 0 {
		delete(f.recent, k)
	}
}

func (f *EchoFilter) prune() {
	now := f.now()
	for k, e := range f.recent {
		if now.Sub(e.at) > f.window {
			delete(f.recent, k)
		}
	}
}
