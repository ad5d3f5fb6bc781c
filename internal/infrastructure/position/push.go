// Package position provides position sources fed by the kiosk transports.
package position

import (
	"sync"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

type subscriber struct {
	onSample func(domain.PositionSample)
	onError  func(error)
}

// PushSource is a PositionSource whose samples are pushed in by a transport
// (HTTP handler, MQTT subscriber). Callbacks run on the pushing goroutine,
// outside the source's lock.
type PushSource struct {
	mu     sync.Mutex
	subs   map[uint64]subscriber
	nextID uint64
	closed bool
}

func NewPushSource() *PushSource {
	return &PushSource{subs: make(map[uint64]subscriber)}
}

// Subscribe registers callbacks. It fails with ErrPositionUnavailable once
// the source has been closed.
func (p *PushSource) Subscribe(onSample func(domain.PositionSample), onError func(error)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, domain.NewSourceError(domain.SourcePositionUnavailable, "source closed")
	}
	p.nextID++
	id := p.nextID
	p.subs[id] = subscriber{onSample: onSample, onError: onError}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}, nil
}

// Push delivers s to every subscriber and returns how many received it.
func (p *PushSource) Push(s domain.PositionSample) int {
	subs := p.snapshot()
	for _, sub := range subs {
		if sub.onSample != nil {
			sub.onSample(s)
		}
	}
	return len(subs)
}

// Fail reports err to every subscriber.
func (p *PushSource) Fail(err error) {
	for _, sub := range p.snapshot() {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

// Close drops all subscribers; later pushes are ignored.
func (p *PushSource) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	clear(p.subs)
}

func (p *PushSource) snapshot() []subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		out = append(out, s)
	}
	return out
}
