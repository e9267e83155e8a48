package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by Listen when no speech started before the
// configured wait timeout. Callers treat it as "check the stop flag and
// listen again".
var ErrWaitTimeout = errors.New("audio: no speech before wait timeout")

var errCaptureStalled = errors.New("capture stalled, no frames from device")

// DeviceError wraps a capture-device failure. It is fatal for a session.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

type ListenConfig struct {
	PhraseLimit time.Duration // max length of one phrase
	WaitTimeout time.Duration // max wait for speech to start
	PauseWindow time.Duration // trailing silence that ends a phrase
	Calibration time.Duration // ambient noise sampling before first phrase
}

func (c *ListenConfig) applyDefaults() {
	if c.PhraseLimit <= 0 {
		c.PhraseLimit = 7 * time.Second
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = time.Second
	}
	if c.PauseWindow <= 0 {
		c.PauseWindow = 800 * time.Millisecond
	}
	if c.Calibration <= 0 {
		c.Calibration = time.Second
	}
}

const (
	prerollChunks = 5
	stallTimeout  = 2 * time.Second
)

// Listener segments a continuous capture stream into phrases. The capture
// device runs for the lifetime of the listener; Listen hands out one phrase
// of raw PCM at a time.
type Listener struct {
	capture CaptureDevice
	det     SpeechDetector
	cfg     ListenConfig
	chunks  chan []byte
	started bool
}

func NewListener(capture CaptureDevice, det SpeechDetector, cfg ListenConfig) *Listener {
	cfg.applyDefaults()
	return &Listener{
		capture: capture,
		det:     det,
		cfg:     cfg,
		chunks:  make(chan []byte, 64),
	}
}

// Start begins capture and calibrates the detector against ambient noise.
func (l *Listener) Start() error {
	l.capture.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		chunk := make([]byte, len(data))
		copy(chunk, data)
		select {
		case l.chunks <- chunk:
		default:
			// drop when the consumer falls behind
		}
	})

	if err := l.capture.Start(); err != nil {
		l.capture.ClearCallback()
		return &DeviceError{Op: "start", Err: err}
	}
	l.started = true

	l.calibrate()
	return nil
}

// calibrate samples ambient noise and lowers the detector onto it. Seeing no
// frames at all during the window is tolerated; the detector keeps its
// default floor and the first Listen call will surface a stall if the device
// truly produces nothing.
func (l *Listener) calibrate() {
	deadline := time.After(l.cfg.Calibration)
	var sum float64
	n := 0
	for {
		select {
		case chunk := <-l.chunks:
			sum += RMS(chunk)
			n++
		case <-deadline:
			if n > 0 {
				l.det.SetNoiseFloor(sum / float64(n))
			}
			return
		}
	}
}

// Listen blocks until one phrase has been captured and returns its PCM.
// It returns ErrWaitTimeout when no speech started in time, and a
// *DeviceError when the device stops producing frames.
func (l *Listener) Listen() ([]byte, error) {
	if !l.started {
		return nil, &DeviceError{Op: "listen", Err: errors.New("listener not started")}
	}

	l.det.Reset()

	var preroll [][]byte
	waitDeadline := time.After(l.cfg.WaitTimeout)

	// Wait for speech to begin.
	for {
		select {
		case chunk := <-l.chunks:
			preroll = append(preroll, chunk)
			if len(preroll) > prerollChunks {
				preroll = preroll[1:]
			}
			if l.det.Detect(chunk) {
				return l.collect(preroll)
			}
		case <-waitDeadline:
			return nil, ErrWaitTimeout
		case <-time.After(stallTimeout):
			return nil, &DeviceError{Op: "capture", Err: errCaptureStalled}
		}
	}
}

// collect gathers the rest of the phrase: everything until a trailing pause
// or the phrase limit. The preroll keeps the phrase onset intact.
func (l *Listener) collect(preroll [][]byte) ([]byte, error) {
	var buf []byte
	for _, chunk := range preroll {
		buf = append(buf, chunk...)
	}

	lastSpeech := time.Now()
	limit := time.After(l.cfg.PhraseLimit)

	for {
		select {
		case chunk := <-l.chunks:
			buf = append(buf, chunk...)
			if l.det.Detect(chunk) {
				lastSpeech = time.Now()
			} else if time.Since(lastSpeech) >= l.cfg.PauseWindow {
				return buf, nil
			}
		case <-limit:
			return buf, nil
		case <-time.After(stallTimeout):
			return nil, &DeviceError{Op: "capture", Err: errCaptureStalled}
		}
	}
}

// Duration reports how much audio a PCM phrase holds.
func Duration(pcm []byte, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	frames := len(pcm) / 2
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

func (l *Listener) Close() {
	if l.started {
		l.capture.Stop()
		l.started = false
	}
	l.capture.ClearCallback()
}
