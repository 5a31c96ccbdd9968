package signaling

import "sync"

// Loop serializes all relaycore mutations onto one goroutine. Connection
// read pumps post closures; the loop runs each to completion before taking
// the next, which is what lets the registry and directory stay lock-free.
type Loop struct {
	events chan func()
	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		events: make(chan func(), buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run processes events until Stop. Call it from exactly one goroutine.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.events:
			fn()
		case <-l.quit:
			// Drain whatever was accepted before the stop.
			for {
				select {
				case fn := <-l.events:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post queues fn for the loop. It blocks while the queue is full
// (backpressure on the posting connection) and reports false once the loop
// is stopping.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.events <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Stop ends the loop after draining accepted events and waits for Run to
// return.
func (l *Loop) Stop() {
	l.stop.Do(func() { close(l.quit) })
	<-l.done
}
