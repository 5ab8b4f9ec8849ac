package store

import (
	"sync"

	"github.com/nikbrunner/bmtree/internal/model"
)

// broadcaster fans change events out to subscribers. Each subscriber has
// its own unbounded queue so publishers never block and events are never
// dropped or reordered.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

type subscriber struct {
	ch     chan model.ChangeEvent
	mu     sync.Mutex
	queue  []model.ChangeEvent
	signal chan struct{}
	done   chan struct{}
}

// Subscribe registers a new subscriber.
func (b *broadcaster) Subscribe() (<-chan model.ChangeEvent, func()) {
	s := &subscriber{
		ch:     make(chan model.ChangeEvent),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]*subscriber)
	}
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	go s.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.done)
		})
	}
	return s.ch, cancel
}

func (b *broadcaster) publish(e model.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.mu.Lock()
		s.queue = append(s.queue, e)
		s.mu.Unlock()

		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

func (s *subscriber) pump() {
	defer close(s.ch)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.ch <- e:
			case <-s.done:
				return
			}
		}
	}
}
