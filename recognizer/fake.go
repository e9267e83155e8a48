package recognizer

import (
	"context"
	"sync"
)

// FakeResponse scripts one Recognize call of the Fake.
type FakeResponse struct {
	Text string
	Err  error
}

// Fake replays scripted responses; the last one repeats once the script is
// exhausted.
type Fake struct {
	mu         sync.Mutex
	responses  []FakeResponse
	calls      int
	lastLocale string
}

func NewFake(responses ...FakeResponse) *Fake {
	if len(responses) == 0 {
		responses = []FakeResponse{{Text: "hello"}}
	}
	return &Fake{responses: responses}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Recognize(_ context.Context, _ []byte, locale string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	f.lastLocale = locale

	r := f.responses[idx]
	if r.Err != nil {
		return Result{}, r.Err
	}
	return Result{Text: r.Text, Confidence: 0.9}, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) LastLocale() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLocale
}
