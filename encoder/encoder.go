package encoder

import "time"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// EncodePCM is the whole-phrase convenience path: it splits little-endian
// s16 PCM into blocks, feeds them through a fresh FLAC encoder and returns
// the encoded bytes.
func EncodePCM(pcm []byte) ([]byte, uint64, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, 0, err
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}

	start := time.Now()
	for i := 0; i < len(samples); i += BlockSize {
		end := i + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, 0, err
		}
	}
	enc.AddEncodeTime(time.Since(start))

	if err := enc.Close(); err != nil {
		return nil, 0, err
	}
	return enc.Bytes(), enc.TotalFrames(), nil
}
