package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"parley/audio"
	"parley/recognizer"
	"parley/session"
	"parley/translator"
)

// fakeSource feeds phrases pushed by the test and reports a wait timeout
// when none are pending, like a quiet microphone.
type fakeSource struct {
	mu      sync.Mutex
	phrases chan []byte
	err     error
}

func newFakeSource() *fakeSource {
	return &fakeSource{phrases: make(chan []byte, 8)}
}

func (f *fakeSource) Push(pcm []byte) {
	f.phrases <- pcm
}

func (f *fakeSource) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) Listen() ([]byte, error) {
	select {
	case pcm := <-f.phrases:
		return pcm, nil
	case <-time.After(time.Millisecond):
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			return nil, f.err
		}
		return nil, audio.ErrWaitTimeout
	}
}

// phrasePCM is a tenth of a second of silence, enough to flow through the
// encoder.
func phrasePCM() []byte {
	return make([]byte, 3200)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startWorker(t *testing.T, state *session.State, source PhraseSource, rec recognizer.Recognizer, tr translator.Translator, sourceLang, targetLang string) (uint64, chan struct{}) {
	t.Helper()
	gen, ok := state.Begin(sourceLang, targetLang)
	if !ok {
		t.Fatal("Begin refused")
	}
	w := NewWorker(state, source, rec, tr)
	w.backoff = time.Millisecond
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(gen, sourceLang, targetLang)
	}()
	return gen, done
}

func stopWorker(t *testing.T, state *session.State, done chan struct{}) {
	t.Helper()
	state.RequestStop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerPublishesTranslation(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	rec := recognizer.NewFake(recognizer.FakeResponse{Text: "hello"})
	tr := translator.NewFake(map[string]string{"hello": "नमस्ते"})

	_, done := startWorker(t, state, source, rec, tr, "en", "hi")
	source.Push(phrasePCM())

	waitFor(t, "translated text", func() bool {
		return state.Snapshot().TranslatedText == "नमस्ते"
	})
	if got := rec.LastLocale(); got != "en-US" {
		t.Errorf("locale = %q, want en-US", got)
	}
	if src, tgt := tr.LastPair(); src != "en" || tgt != "hi" {
		t.Errorf("language pair = %q/%q, want en/hi", src, tgt)
	}

	stopWorker(t, state, done)
	if snap := state.Snapshot(); !strings.Contains(snap.TranslatedText, "नमस्ते") {
		t.Errorf("text after stop = %q, want last translation retained", snap.TranslatedText)
	}
}

func TestWorkerDeviceErrorEndsSession(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	source.Fail(&audio.DeviceError{Op: "capture", Err: errors.New("device gone")})
	rec := recognizer.NewFake(recognizer.FakeResponse{Text: "hello"})
	tr := translator.NewFake(nil)

	_, done := startWorker(t, state, source, rec, tr, "en", "en")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on device error")
	}
	snap := state.Snapshot()
	if snap.Running {
		t.Error("session still running after device error")
	}
	if !strings.Contains(snap.TranslatedText, "Microphone error") {
		t.Errorf("text = %q, want microphone error notice", snap.TranslatedText)
	}
}

func TestWorkerRecognitionErrorContinues(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	rec := recognizer.NewFake(
		recognizer.FakeResponse{Err: fmt.Errorf("%w: status 500", recognizer.ErrService)},
		recognizer.FakeResponse{Text: "hello"},
	)
	tr := translator.NewFake(nil)

	_, done := startWorker(t, state, source, rec, tr, "en", "hi")
	source.Push(phrasePCM())
	source.Push(phrasePCM())

	waitFor(t, "recovery after service error", func() bool {
		return state.Snapshot().TranslatedText == "[hi] hello"
	})
	stopWorker(t, state, done)
}

func TestWorkerNoSpeechContinues(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	rec := recognizer.NewFake(
		recognizer.FakeResponse{Err: recognizer.ErrNoSpeech},
		recognizer.FakeResponse{Text: "there you are"},
	)
	tr := translator.NewFake(nil)

	_, done := startWorker(t, state, source, rec, tr, "en", "en")
	source.Push(phrasePCM())

	waitFor(t, "first phrase consumed", func() bool { return rec.Calls() == 1 })
	if got := state.Snapshot().TranslatedText; got != session.StartingText {
		t.Errorf("text after unrecognized phrase = %q, want unchanged", got)
	}

	source.Push(phrasePCM())
	waitFor(t, "second phrase recognized", func() bool {
		return state.Snapshot().TranslatedText == "[en] there you are"
	})
	stopWorker(t, state, done)
}

func TestWorkerTranslationFailureKeepsPreviousText(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	rec := recognizer.NewFake(recognizer.FakeResponse{Text: "hello"})
	tr := translator.NewFake(map[string]string{"hello": "नमस्ते"})

	_, done := startWorker(t, state, source, rec, tr, "en", "hi")
	source.Push(phrasePCM())
	waitFor(t, "first translation", func() bool {
		return state.Snapshot().TranslatedText == "नमस्ते"
	})

	tr.SetErr(fmt.Errorf("%w: service unavailable", translator.ErrTranslation))
	source.Push(phrasePCM())
	waitFor(t, "second translate attempt", func() bool { return tr.Calls() == 2 })

	if got := state.Snapshot().TranslatedText; got != "नमस्ते" {
		t.Errorf("text after failed translation = %q, want previous text kept", got)
	}
	stopWorker(t, state, done)
}

func TestWorkerStopsPromptlyWhileWaiting(t *testing.T) {
	state := session.New()
	source := newFakeSource()
	rec := recognizer.NewFake(recognizer.FakeResponse{Text: "hello"})
	tr := translator.NewFake(nil)

	_, done := startWorker(t, state, source, rec, tr, "en", "en")
	stopWorker(t, state, done)

	if got := state.Snapshot().TranslatedText; got != session.StoppedText {
		t.Errorf("text after silent session = %q, want %q", got, session.StoppedText)
	}
}
