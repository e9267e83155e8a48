package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Audio.PhraseLimitMS != 7000 {
		t.Fatalf("expected default phrase limit, got %d", cfg.Audio.PhraseLimitMS)
	}
	if cfg.Languages.Source != "en" || cfg.Languages.Target != "en" {
		t.Fatalf("expected en/en language defaults, got %s/%s", cfg.Languages.Source, cfg.Languages.Target)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	body := `
server:
  host: 0.0.0.0
  port: 8123
  open_browser: false
audio:
  device: "USB Microphone"
  phrase_limit_ms: 5000
languages:
  source: hi
  target: en
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8123 {
		t.Fatalf("server override not applied: %+v", cfg.Server)
	}
	if cfg.Server.OpenBrowser {
		t.Fatal("expected open_browser false")
	}
	if cfg.Audio.Device != "USB Microphone" {
		t.Fatalf("device override not applied: %q", cfg.Audio.Device)
	}
	if cfg.Audio.PhraseLimitMS != 5000 {
		t.Fatalf("phrase limit override not applied: %d", cfg.Audio.PhraseLimitMS)
	}
	if cfg.Audio.WaitTimeoutMS != 1000 {
		t.Fatalf("unset field should keep default, got %d", cfg.Audio.WaitTimeoutMS)
	}
	if cfg.Languages.Source != "hi" {
		t.Fatalf("language override not applied: %q", cfg.Languages.Source)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_RECOGNIZER_KEY", "secret-key")
	t.Setenv("PARLEY_RECOGNIZER_ENDPOINT", "http://sr.example")
	t.Setenv("PARLEY_TRANSLATOR_ENDPOINT", "http://tr.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognizer.Key != "secret-key" {
		t.Fatalf("expected key override, got %q", cfg.Recognizer.Key)
	}
	if cfg.Recognizer.Endpoint != "http://sr.example" {
		t.Fatalf("expected recognizer endpoint override, got %q", cfg.Recognizer.Endpoint)
	}
	if cfg.Translator.Endpoint != "http://tr.example" {
		t.Fatalf("expected translator endpoint override, got %q", cfg.Translator.Endpoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	bad := Default()
	bad.Server.Port = 0
	if err := validate(bad); err == nil {
		t.Error("expected error for port 0")
	}

	bad = Default()
	bad.Audio.PhraseLimitMS = 100
	if err := validate(bad); err == nil {
		t.Error("expected error for tiny phrase limit")
	}

	bad = Default()
	bad.Audio.WaitTimeoutMS = 10
	if err := validate(bad); err == nil {
		t.Error("expected error for tiny wait timeout")
	}
}
