// Package config loads the YAML configuration with environment overrides
// for service credentials.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	OpenBrowser bool   `yaml:"open_browser"`
}

type RecognizerConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

type TranslatorConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type AudioConfig struct {
	Device        string `yaml:"device"`
	PhraseLimitMS int    `yaml:"phrase_limit_ms"`
	WaitTimeoutMS int    `yaml:"wait_timeout_ms"`
	PauseWindowMS int    `yaml:"pause_window_ms"`
	CalibrationMS int    `yaml:"calibration_ms"`
}

type LanguageConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Translator TranslatorConfig `yaml:"translator"`
	Audio      AudioConfig      `yaml:"audio"`
	Languages  LanguageConfig   `yaml:"languages"`
	LogPath    string           `yaml:"log_path"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			OpenBrowser: true,
		},
		Audio: AudioConfig{
			PhraseLimitMS: 7000,
			WaitTimeoutMS: 1000,
			PauseWindowMS: 800,
			CalibrationMS: 1000,
		},
		Languages: LanguageConfig{
			Source: "en",
			Target: "en",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_RECOGNIZER_KEY"); v != "" {
		cfg.Recognizer.Key = v
	}
	if v := os.Getenv("PARLEY_RECOGNIZER_ENDPOINT"); v != "" {
		cfg.Recognizer.Endpoint = v
	}
	if v := os.Getenv("PARLEY_TRANSLATOR_ENDPOINT"); v != "" {
		cfg.Translator.Endpoint = v
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Audio.PhraseLimitMS < 500 {
		return fmt.Errorf("phrase_limit_ms %d too small, need at least 500", cfg.Audio.PhraseLimitMS)
	}
	if cfg.Audio.WaitTimeoutMS < 100 {
		return fmt.Errorf("wait_timeout_ms %d too small, need at least 100", cfg.Audio.WaitTimeoutMS)
	}
	return nil
}
