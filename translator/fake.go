package translator

import (
	"context"
	"sync"
)

// Fake looks translations up in a fixed dictionary and prefixes the target
// code onto anything unknown, so tests stay deterministic.
type Fake struct {
	mu         sync.Mutex
	dict       map[string]string
	err        error
	calls      int
	lastSource string
	lastTarget string
}

func NewFake(dict map[string]string) *Fake {
	return &Fake{dict: dict}
}

// SetErr makes every following Translate call fail.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Translate(_ context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastSource = source
	f.lastTarget = target

	if f.err != nil {
		return "", f.err
	}
	if v, ok := f.dict[text]; ok {
		return v, nil
	}
	return "[" + target + "] " + text, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) LastPair() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSource, f.lastTarget
}
