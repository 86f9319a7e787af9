package network

import "sync"

// Endpoints rotates across equivalent upstream URLs. Each failed dial
// advances to the next URL, so one dead gateway does not pin the feed
// while healthy ones exist.
type Endpoints struct {
	mu   sync.Mutex
	urls []string
	next int
}

func NewEndpoints(urls []string) *Endpoints {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return &Endpoints{urls: cp}
}

// Next returns the current URL and advances the rotation. Empty
// string when no URLs are configured.
func (e *Endpoints) Next() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.urls) == 0 {
		return ""
	}
	u := e.urls[e.next]
	e.next = (e.next + 1) % len(e.urls)
	return u
}

// Len reports the number of configured URLs.
func (e *Endpoints) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.urls)
}
