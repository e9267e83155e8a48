// Package translator adapts remote text translation services.
package translator

import (
	"context"
	"errors"
	"strings"
)

// ErrTranslation wraps a final translation failure, after the auto-detect
// retry was also exhausted. Recoverable: the worker keeps the previous text.
var ErrTranslation = errors.New("translator: translation failed")

// AutoDetect lets the service infer the source language.
const AutoDetect = "auto"

// DefaultTarget is used for any unmapped target language code.
const DefaultTarget = "en"

type Translator interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// codeMap translates UI language codes to service codes.
var codeMap = map[string]string{
	"en":    "en",
	"hi":    "hi",
	"gu":    "gu",
	"cn":    "zh-CN",
	"zh":    "zh-CN",
	"zh-cn": "zh-CN",
	"ko":    "ko",
}

func lookup(code string) (string, bool) {
	c := strings.TrimSpace(code)
	if v, ok := codeMap[c]; ok {
		return v, true
	}
	if v, ok := codeMap[strings.ToLower(c)]; ok {
		return v, true
	}
	return "", false
}

// Source maps a UI code to a service source code. Unmapped codes degrade to
// auto-detect rather than failing.
func Source(code string) string {
	if v, ok := lookup(code); ok {
		return v
	}
	return AutoDetect
}

// Target maps a UI code to a service target code, falling back to
// DefaultTarget.
func Target(code string) string {
	if v, ok := lookup(code); ok {
		return v
	}
	return DefaultTarget
}
