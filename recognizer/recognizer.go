// Package recognizer adapts remote speech-to-text services. One call
// recognizes one captured phrase.
package recognizer

import (
	"context"
	"errors"
	"strings"

	"parley/transport"
)

// ErrNoSpeech means the service found nothing intelligible in the phrase.
// Recoverable: the worker just listens for the next phrase.
var ErrNoSpeech = errors.New("recognizer: no speech detected")

// ErrService wraps network or service-side failures. Recoverable: the worker
// logs and tries again on the next phrase.
var ErrService = errors.New("recognizer: service unavailable")

type Result struct {
	Text       string
	Confidence float64
	Metrics    *transport.NetworkMetrics
}

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, flacData []byte, locale string) (Result, error)
}

// DefaultLocale is used for any unmapped UI language code.
const DefaultLocale = "en-US"

// localeMap translates UI language codes to recognition-service locales.
var localeMap = map[string]string{
	"en":    "en-US",
	"hi":    "hi-IN",
	"gu":    "gu-IN",
	"cn":    "zh-CN",
	"zh":    "zh-CN",
	"zh-cn": "zh-CN",
	"ko":    "ko-KR",
}

// Locale maps a UI language code to a service locale, falling back to
// DefaultLocale rather than failing on unknown codes.
func Locale(code string) string {
	c := strings.TrimSpace(code)
	if v, ok := localeMap[c]; ok {
		return v
	}
	if v, ok := localeMap[strings.ToLower(c)]; ok {
		return v
	}
	return DefaultLocale
}
