package server

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"parley/log"
	"parley/recognizer"
	"parley/session"
	"parley/translator"
)

//go:embed web
var webFS embed.FS

// SourceFactory opens the capture pipeline for a new session. The returned
// close function releases the device when the session ends.
type SourceFactory func() (PhraseSource, func(), error)

// Server exposes the control API (/start, /stop, /status) and the bundled
// web UI. One translation session runs at a time.
type Server struct {
	state   *session.State
	rec     recognizer.Recognizer
	tr      translator.Translator
	sources SourceFactory

	defaultSource string
	defaultTarget string

	backoff time.Duration
	mux     *http.ServeMux
}

func New(state *session.State, rec recognizer.Recognizer, tr translator.Translator, sources SourceFactory) *Server {
	s := &Server{
		state:         state,
		rec:           rec,
		tr:            tr,
		sources:       sources,
		defaultSource: "en",
		defaultTarget: "en",
		backoff:       defaultBackoff,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/", s.handleStatic)
	s.mux = mux
	return s
}

// SetDefaultLanguages sets the language pair used when a start request
// does not name one.
func (s *Server) SetDefaultLanguages(source, target string) {
	if source != "" {
		s.defaultSource = source
	}
	if target != "" {
		s.defaultTarget = target
	}
}

func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

type startRequest struct {
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

type messageResponse struct {
	Message        string `json:"message"`
	TranslatedText string `json:"translatedText,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startRequest
	if r.Body != nil {
		// A missing or malformed body just means defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.SourceLang == "" {
		req.SourceLang = s.defaultSource
	}
	if req.TargetLang == "" {
		req.TargetLang = s.defaultTarget
	}

	gen, ok := s.state.Begin(req.SourceLang, req.TargetLang)
	if !ok {
		writeJSON(w, http.StatusOK, messageResponse{
			Message:        "Already running",
			TranslatedText: s.state.Snapshot().TranslatedText,
		})
		return
	}

	go s.runSession(gen, req.SourceLang, req.TargetLang)

	writeJSON(w, http.StatusOK, messageResponse{
		Message:        "Listening and translating...",
		TranslatedText: session.StartingText,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.state.Running() {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Not running"})
		return
	}
	s.state.RequestStop()
	writeJSON(w, http.StatusOK, messageResponse{Message: "Stopped."})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// runSession opens the capture source and hands it to a worker. Opening the
// device can fail well after the start request was acknowledged, so failures
// surface through the session text rather than an HTTP status.
func (s *Server) runSession(gen uint64, sourceLang, targetLang string) {
	source, closeSource, err := s.sources()
	if err != nil {
		log.Errorf("capture init error: %v", err)
		s.state.SetText(gen, "Microphone error: "+err.Error())
		s.state.Finish(gen)
		return
	}
	defer closeSource()

	w := NewWorker(s.state, source, s.rec, s.tr)
	w.backoff = s.backoff
	w.Run(gen, sourceLang, targetLang)
}

var staticExtensions = map[string]bool{
	".html": true,
	".css":  true,
	".js":   true,
	".ico":  true,
	".png":  true,
	".svg":  true,
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." {
		name = "index.html"
	}
	if !staticExtensions[path.Ext(name)] {
		http.NotFound(w, r)
		return
	}
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.ServeFileFS(w, r, sub, name)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("response encode error: %v", err)
	}
}
