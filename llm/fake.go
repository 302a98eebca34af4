package llm

import (
	"context"
	"sync"
	"time"
)

// Fake is a canned Provider for tests. It records every prompt it is
// asked to complete.
type Fake struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Prompt string
	Model  string
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Complete(ctx context.Context, prompt, model string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Prompt: prompt, Model: model})
	f.mu.Unlock()
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}
