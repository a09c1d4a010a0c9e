package highlight

import "sync"

// Fanout is an Observer that forwards every event to a changing set of
// subscribers, such as the websocket clients watching one session.
type Fanout struct {
	mu   sync.Mutex
	subs map[Observer]struct{}
}

func NewFanout() *Fanout {
	return &Fanout{subs: make(map[Observer]struct{})}
}

// Add subscribes o and returns a function that unsubscribes it. o must be
// comparable; pointer receivers are.
func (f *Fanout) Add(o Observer) (remove func()) {
	f.mu.Lock()
	f.subs[o] = struct{}{}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, o)
		f.mu.Unlock()
	}
}

func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Fanout) each(fn func(Observer)) {
	f.mu.Lock()
	subs := make([]Observer, 0, len(f.subs))
	for o := range f.subs {
		subs = append(subs, o)
	}
	f.mu.Unlock()
	for _, o := range subs {
		fn(o)
	}
}

func (f *Fanout) Scanned(query string, total int) {
	f.each(func(o Observer) { o.Scanned(query, total) })
}

func (f *Fanout) Focused(m Match, cursor, total int) {
	f.each(func(o Observer) { o.Focused(m, cursor, total) })
}

func (f *Fanout) Blurred(m Match) {
	f.each(func(o Observer) { o.Blurred(m) })
}
