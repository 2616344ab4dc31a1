package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/leocavalcante/leochat/internal/llm"
)

// MockTurn scripts one provider response for MockProvider.
type MockTurn struct {
	Text       string
	ToolCalls  []llm.ToolCall
	Err        error
	Usage      *llm.Usage
	StopReason string
	Delay      time.Duration
}

// MockProvider replays scripted turns. Each Stream call consumes the next
// turn, so a multi-round exchange is scripted as a sequence of turns.
type MockProvider struct {
	name string

	mu       sync.Mutex
	turns    []MockTurn
	turn     int
	Requests []llm.Request
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (p *MockProvider) Name() string {
	return p.name
}

// AddTextResponse appends a turn that streams text and stops with end_turn.
func (p *MockProvider) AddTextResponse(text string) *MockProvider {
	return p.AddTurn(MockTurn{Text: text, StopReason: llm.StopEndTurn})
}

// AddToolCall appends a turn that requests a single tool call.
func (p *MockProvider) AddToolCall(id, name string, args any) *MockProvider {
	raw, _ := json.Marshal(args)
	return p.AddTurn(MockTurn{
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Arguments: raw}},
		StopReason: llm.StopToolUse,
	})
}

// AddError appends a turn that fails mid-stream.
func (p *MockProvider) AddError(err error) *MockProvider {
	return p.AddTurn(MockTurn{Err: err})
}

func (p *MockProvider) AddTurn(turn MockTurn) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
	return p
}

// Reset clears recorded requests and rewinds to the first turn.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = nil
	p.turn = 0
}

// CurrentTurn returns the index of the next turn to be played.
func (p *MockProvider) CurrentTurn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turn
}

func (p *MockProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	if p.turn >= len(p.turns) {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock provider %q: no more turns configured (turn %d)", p.name, p.turn)
	}
	turn := p.turns[p.turn]
	p.turn++
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s := &scriptedStream{
		events: make(chan llm.Event, 16),
		cancel: cancel,
	}
	go func() {
		s.err = playTurn(ctx, turn, s.events)
		close(s.events)
	}()
	return s, nil
}

func playTurn(ctx context.Context, turn MockTurn, events chan<- llm.Event) error {
	if turn.Delay > 0 {
		select {
		case <-time.After(turn.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if turn.Err != nil {
		return turn.Err
	}
	for _, chunk := range chunkText(turn.Text, 10) {
		select {
		case events <- llm.Event{Type: llm.EventTextDelta, Text: chunk}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := range turn.ToolCalls {
		call := turn.ToolCalls[i]
		events <- llm.Event{Type: llm.EventToolCall, Tool: &call}
	}
	usage := turn.Usage
	if usage == nil {
		usage = &llm.Usage{InputTokens: 10, OutputTokens: len(turn.Text)/4 + 1}
	}
	events <- llm.Event{Type: llm.EventUsage, Use: usage}

	stopReason := turn.StopReason
	if stopReason == "" {
		if len(turn.ToolCalls) > 0 {
			stopReason = llm.StopToolUse
		} else {
			stopReason = llm.StopEndTurn
		}
	}
	events <- llm.Event{Type: llm.EventDone, StopReason: stopReason}
	return nil
}

// scriptedStream delivers a turn's events then reports io.EOF, or the
// turn's scripted error.
type scriptedStream struct {
	events chan llm.Event
	cancel context.CancelFunc
	err    error
	once   sync.Once
}

func (s *scriptedStream) Recv() (llm.Event, error) {
	event, ok := <-s.events
	if !ok {
		if s.err != nil && !errors.Is(s.err, context.Canceled) {
			return llm.Event{}, s.err
		}
		return llm.Event{}, io.EOF
	}
	return event, nil
}

func (s *scriptedStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}

// chunkText splits text into chunks of at most size bytes.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	chunks = append(chunks, text)
	return chunks
}
