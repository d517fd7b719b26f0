package event

import (
	"errors"
	"sync"
)

var ErrBusClosing = errors.New("event bus is closing")

// Bus fans events out to subscriber channels. Its Handle method satisfies
// Handler so a Bus can be plugged directly into the gate and the executor.
type Bus struct {
	mutex    sync.Mutex
	closing  bool
	channels []chan *Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe creates a buffered channel with given capacity. Returns an error
// if the Bus is closing.
func (b *Bus) Subscribe(capacity uint) (<-chan *Event, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closing {
		return nil, ErrBusClosing
	}
	channel := make(chan *Event, capacity)
	b.channels = append(b.channels, channel)
	return channel, nil
}

// Handle publishes the event to every subscriber. Events published while the
// bus is closing are dropped.
func (b *Bus) Handle(e *Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closing {
		return
	}
	for _, c := range b.channels {
		c <- e
	}
}

// Close closes the Bus and all subscriber channels.
func (b *Bus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !b.closing {
		b.closing = true
		for _, ch := range b.channels {
			close(ch)
		}
	}
	return nil
}
