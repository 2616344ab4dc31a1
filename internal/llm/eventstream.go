package llm

import (
	"context"
	"errors"
	"io"
	"sync"
)

// eventStream adapts a producer function to the Stream interface. The
// producer runs in its own goroutine and writes events to the channel;
// Recv yields them until the producer returns, then reports io.EOF or
// the producer's error.
type eventStream struct {
	events chan Event
	cancel context.CancelFunc
	err    error
	once   sync.Once
}

// newEventStream runs produce in a goroutine. The producer must stop when
// ctx is cancelled; callers must Close the stream once they stop receiving
// so a blocked producer can drain and exit.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		cancel: cancel,
	}
	go func() {
		s.err = produce(ctx, s.events)
		close(s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if !ok {
		if s.err != nil && !errors.Is(s.err, context.Canceled) {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	return event, nil
}

func (s *eventStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}
