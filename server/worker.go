package server

import (
	"context"
	"errors"
	"time"

	"parley/audio"
	"parley/encoder"
	"parley/log"
	"parley/recognizer"
	"parley/session"
	"parley/translator"
)

// PhraseSource hands out one captured phrase of PCM per call. The audio
// listener implements it; tests substitute scripted sources.
type PhraseSource interface {
	Listen() ([]byte, error)
}

const defaultBackoff = time.Second

// Worker runs one translation session: capture a phrase, recognize it,
// translate it, publish the result, repeat until stopped. Recoverable
// adapter errors are logged and swallowed here; only device failures end
// the session.
type Worker struct {
	state  *session.State
	source PhraseSource
	rec    recognizer.Recognizer
	tr     translator.Translator

	// backoff after a recognition service failure, shortened in tests
	backoff time.Duration
}

func NewWorker(state *session.State, source PhraseSource, rec recognizer.Recognizer, tr translator.Translator) *Worker {
	return &Worker{
		state:   state,
		source:  source,
		rec:     rec,
		tr:      tr,
		backoff: defaultBackoff,
	}
}

func (w *Worker) Run(gen uint64, sourceLang, targetLang string) {
	defer w.state.Finish(gen)

	locale := recognizer.Locale(sourceLang)
	trSource := translator.Source(sourceLang)
	trTarget := translator.Target(targetLang)

	log.SessionStart(sourceLang, targetLang, locale)
	cycles := 0
	defer func() { log.SessionEnd(cycles) }()

	ctx := context.Background()

	for !w.state.Stopping(gen) {
		pcm, err := w.source.Listen()
		if errors.Is(err, audio.ErrWaitTimeout) {
			continue
		}
		if err != nil {
			// Device failures are fatal for the session; it takes a new
			// start command to try again.
			log.Errorf("capture error: %v", err)
			w.state.SetText(gen, "Microphone error: "+err.Error())
			return
		}

		cycleStart := time.Now()

		flacData, _, err := encoder.EncodePCM(pcm)
		if err != nil {
			log.Errorf("encode error: %v", err)
			continue
		}
		encodeDone := time.Now()

		res, err := w.rec.Recognize(ctx, flacData, locale)
		if errors.Is(err, recognizer.ErrNoSpeech) {
			continue
		}
		if err != nil {
			log.Errorf("recognition error: %v", err)
			w.state.SetText(gen, "Speech recognition error; retrying...")
			time.Sleep(w.backoff)
			continue
		}
		recognizeDone := time.Now()

		translated, err := w.tr.Translate(ctx, res.Text, trSource, trTarget)
		if err != nil {
			// Previous text stays in place.
			log.Errorf("translation error: %v", err)
			continue
		}
		translateDone := time.Now()

		w.state.SetText(gen, translated)
		log.TranslationText(translated)
		cycles++

		rawSize := float64(len(pcm))
		encodedSize := float64(len(flacData))
		compressionPct := 0.0
		if rawSize > 0 {
			compressionPct = (1.0 - encodedSize/rawSize) * 100
		}
		connReused := false
		if res.Metrics != nil {
			connReused = res.Metrics.ConnReused
		}
		log.Cycle(log.CycleMetrics{
			AudioLengthS:     audio.Duration(pcm, encoder.SampleRate).Seconds(),
			RawSizeKB:        rawSize / 1024,
			CompressedSizeKB: encodedSize / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(encodeDone.Sub(cycleStart).Milliseconds()),
			RecognizeMs:      float64(recognizeDone.Sub(encodeDone).Milliseconds()),
			TranslateMs:      float64(translateDone.Sub(recognizeDone).Milliseconds()),
			TotalMs:          float64(translateDone.Sub(cycleStart).Milliseconds()),
		}, locale, trSource, trTarget, connReused)
	}
}
