package app

import (
	"sync"

	"onlyconnect-service/internal/domain"
)

// Feed fans quiz change events out to in-process subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.QuizEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan domain.QuizEvent]struct{})}
}

// Subscribe registers a subscriber for quizID.
func (f *Feed) Subscribe(quizID string) (<-chan domain.QuizEvent, func()) {
	ch := make(chan domain.QuizEvent, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.QuizEvent]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[quizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of its quiz without blocking.
func (f *Feed) Publish(ev domain.QuizEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[ev.QuizID] {
		select {
		case ch <- ev:
		default:
			// full: drop the oldest event
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many subscribers a quiz has.
func (f *Feed) Subscribers(quizID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID])
}
