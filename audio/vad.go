package audio

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode       = 3
	vadSampleRate = 16000
	vadFrameMs    = 20
	vadFrameBytes = vadSampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadRatio      = 0.5  // share of frames in a chunk that must be voiced
	vadNoiseGain  = 1.5  // speech must rise this far above the noise floor
	vadFloorMin   = 0.01 // RMS floor when calibration saw near-silence
)

// SpeechDetector decides whether a chunk of s16 PCM contains speech.
// The Listener uses it for phrase endpointing.
type SpeechDetector interface {
	Detect(chunk []byte) bool
	SetNoiseFloor(rms float64)
	Reset()
}

// VADDetector combines WebRTC VAD frame classification with an RMS gate
// derived from ambient noise calibration.
type VADDetector struct {
	vad *webrtcvad.VAD

	mu    sync.Mutex
	buf   []byte
	floor float64
}

func NewVADDetector() (*VADDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &VADDetector{vad: v, floor: vadFloorMin}, nil
}

func (d *VADDetector) SetNoiseFloor(rms float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.floor = rms * vadNoiseGain
	if d.floor < vadFloorMin {
		d.floor = vadFloorMin
	}
}

func (d *VADDetector) Detect(chunk []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	level := RMS(chunk)

	d.buf = append(d.buf, chunk...)
	total, voiced := 0, 0
	for len(d.buf) >= vadFrameBytes {
		frame := d.buf[:vadFrameBytes]
		d.buf = d.buf[vadFrameBytes:]

		active, err := d.vad.Process(vadSampleRate, frame)
		if err != nil {
			continue
		}
		total++
		if active {
			voiced++
		}
	}
	if total == 0 {
		return false
	}
	return float64(voiced)/float64(total) >= vadRatio && level > d.floor
}

func (d *VADDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
}
