// Package session holds the process-wide translation session state shared
// between the worker loop and the HTTP control surface.
package session

import "sync"

const (
	// DefaultText is shown before any session has started.
	DefaultText = "Waiting for speech..."
	// StartingText is set when a session begins, before the first phrase.
	StartingText = "Starting speech recognition..."
	// StoppedText replaces an empty transcript when a session ends.
	StoppedText = "Stopped."
)

// Snapshot is a point-in-time copy of the session state, shaped for the
// status endpoint.
type Snapshot struct {
	Running        bool   `json:"running"`
	TranslatedText string `json:"translatedText"`
	SourceLang     string `json:"sourceLang"`
	TargetLang     string `json:"targetLang"`
}

// State is the singleton session record. The worker is the only writer of
// the translated text while running; handlers read snapshots and toggle the
// run and stop flags. All access goes through one mutex.
//
// Each Begin hands out a generation token. Worker writes carry that token,
// so a worker still draining an in-flight capture after a stop cannot
// clobber a session that was started in the meantime.
type State struct {
	mu            sync.Mutex
	gen           uint64
	running       bool
	stopRequested bool
	text          string
	sourceLang    string
	targetLang    string
}

func New() *State {
	return &State{text: DefaultText}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:        s.running,
		TranslatedText: s.text,
		SourceLang:     s.sourceLang,
		TargetLang:     s.targetLang,
	}
}

// Begin transitions Idle -> Running and resets the state for a new session,
// returning the session's generation token. It returns ok == false, leaving
// everything untouched, when a session is already running. This is what
// keeps at most one worker alive.
func (s *State) Begin(sourceLang, targetLang string) (gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return 0, false
	}
	s.gen++
	s.running = true
	s.stopRequested = false
	s.sourceLang = sourceLang
	s.targetLang = targetLang
	s.text = StartingText
	return s.gen, true
}

// RequestStop clears the run flag and raises the stop flag. It never waits
// for the worker; an in-flight capture may still complete before the loop
// observes the flag.
func (s *State) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stopRequested = true
}

// Stopping is polled by the worker at the top of each loop iteration.
func (s *State) Stopping(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen || s.stopRequested || !s.running
}

func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetText publishes the latest translated text. Stale generations and empty
// strings are ignored, so a failed cycle never blanks the previous result.
func (s *State) SetText(gen uint64, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.text = text
}

// Finish is called by the worker on exit, whether from a stop request or a
// fatal device error. The last translated text is retained for polling.
func (s *State) Finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.running = false
	s.stopRequested = false
	if s.text == "" || s.text == StartingText {
		s.text = StoppedText
	}
}
