package stt

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory Provider for tests.
type Fake struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Samples  int
	Model    string
	Language string
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, samples []float32, model, language string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Samples: len(samples), Model: model, Language: language})
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

// Calls returns a snapshot of recorded invocations.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
