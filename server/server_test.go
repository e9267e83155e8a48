package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parley/recognizer"
	"parley/session"
	"parley/translator"
)

type testHarness struct {
	server *Server
	state  *session.State
	source *fakeSource
	rec    *recognizer.Fake
	tr     *translator.Fake
	http   *httptest.Server
}

func newHarness(t *testing.T, configure ...func(*Server)) *testHarness {
	t.Helper()
	return newHarnessWithSources(t, nil, configure...)
}

func newHarnessWithSources(t *testing.T, sources SourceFactory, configure ...func(*Server)) *testHarness {
	t.Helper()
	h := &testHarness{
		state:  session.New(),
		source: newFakeSource(),
		rec:    recognizer.NewFake(recognizer.FakeResponse{Text: "hello"}),
		tr:     translator.NewFake(map[string]string{"hello": "नमस्ते"}),
	}
	if sources == nil {
		sources = func() (PhraseSource, func(), error) {
			return h.source, func() {}, nil
		}
	}
	h.server = New(h.state, h.rec, h.tr, sources)
	h.server.backoff = time.Millisecond
	for _, fn := range configure {
		fn(h.server)
	}
	h.http = httptest.NewServer(h.server.Handler())
	t.Cleanup(func() {
		h.state.RequestStop()
		h.http.Close()
	})
	return h
}

func (h *testHarness) start(t *testing.T, body string) messageResponse {
	t.Helper()
	resp, err := http.Post(h.http.URL+"/start", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func (h *testHarness) status(t *testing.T) session.Snapshot {
	t.Helper()
	resp, err := http.Get(h.http.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	return snap
}

func (h *testHarness) stop(t *testing.T) messageResponse {
	t.Helper()
	resp, err := http.Get(h.http.URL + "/stop")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestStatusBeforeStart(t *testing.T) {
	h := newHarness(t)
	snap := h.status(t)
	if snap.Running {
		t.Error("running before any start")
	}
	if snap.TranslatedText != session.DefaultText {
		t.Errorf("text = %q, want %q", snap.TranslatedText, session.DefaultText)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	h := newHarness(t)

	out := h.start(t, `{"sourceLang":"en","targetLang":"hi"}`)
	if out.Message != "Listening and translating..." {
		t.Errorf("start message = %q", out.Message)
	}
	if out.TranslatedText != session.StartingText {
		t.Errorf("start text = %q, want %q", out.TranslatedText, session.StartingText)
	}

	snap := h.status(t)
	if !snap.Running {
		t.Fatal("not running after start")
	}
	if snap.SourceLang != "en" || snap.TargetLang != "hi" {
		t.Errorf("languages = %q/%q, want en/hi", snap.SourceLang, snap.TargetLang)
	}

	h.source.Push(phrasePCM())
	waitFor(t, "translation via status", func() bool {
		return h.status(t).TranslatedText == "नमस्ते"
	})

	out = h.stop(t)
	if out.Message != "Stopped." {
		t.Errorf("stop message = %q", out.Message)
	}
	waitFor(t, "session wind-down", func() bool {
		return !h.status(t).Running
	})
	if got := h.status(t).TranslatedText; got != "नमस्ते" {
		t.Errorf("text after stop = %q, want last translation retained", got)
	}
}

func TestSecondStartRefused(t *testing.T) {
	h := newHarness(t)

	h.start(t, `{"sourceLang":"en","targetLang":"hi"}`)
	out := h.start(t, `{"sourceLang":"gu","targetLang":"ko"}`)
	if out.Message != "Already running" {
		t.Errorf("second start message = %q, want Already running", out.Message)
	}

	snap := h.status(t)
	if snap.SourceLang != "en" || snap.TargetLang != "hi" {
		t.Errorf("languages changed by refused start: %q/%q", snap.SourceLang, snap.TargetLang)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	h := newHarness(t)
	out := h.stop(t)
	if out.Message != "Not running" {
		t.Errorf("stop message = %q, want Not running", out.Message)
	}
}

func TestStartDefaultsLanguages(t *testing.T) {
	h := newHarness(t, func(s *Server) {
		s.SetDefaultLanguages("hi", "en")
	})

	h.start(t, "")
	snap := h.status(t)
	if snap.SourceLang != "hi" || snap.TargetLang != "en" {
		t.Errorf("languages = %q/%q, want defaults hi/en", snap.SourceLang, snap.TargetLang)
	}
}

func TestStartRequiresPost(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.http.URL + "/start")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /start status = %d, want 405", resp.StatusCode)
	}
}

func TestSourceFactoryFailure(t *testing.T) {
	h := newHarnessWithSources(t, func() (PhraseSource, func(), error) {
		return nil, nil, errors.New("no capture device")
	})

	h.start(t, "")
	waitFor(t, "failed session wind-down", func() bool {
		return !h.status(t).Running
	})
	if got := h.status(t).TranslatedText; !strings.Contains(got, "Microphone error") {
		t.Errorf("text = %q, want microphone error notice", got)
	}

	// The device slot is free again for a later attempt.
	if _, ok := h.state.Begin("en", "en"); !ok {
		t.Error("start refused after failed session")
	}
}

func TestCORSHeaders(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}

	req, _ := http.NewRequest(http.MethodOptions, h.http.URL+"/start", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
}

func TestStaticUI(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "<title>Parley</title>") {
		t.Error("index page missing title")
	}

	for _, path := range []string{"/nope.txt", "/secrets", "/../go.mod"} {
		resp, err := http.Get(h.http.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}
