package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"

	"parley/audio"
	"parley/config"
	"parley/encoder"
	"parley/log"
	"parley/recognizer"
	"parley/server"
	"parley/session"
	"parley/shutdown"
	"parley/translator"
)

var version = "dev"

func listDevices(ctx audio.Context) {
	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("Error listing devices: %v\n", err)
		return
	}
	fmt.Println("Capture devices:")
	for _, dev := range devices {
		suffix := ""
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
		fmt.Printf("  %s%s\n", dev.Name, suffix)
	}
}

func main() {
	configFlag := flag.String("config", "", "Config file path (yaml)")
	portFlag := flag.Int("port", 0, "HTTP listen port (overrides config)")
	hostFlag := flag.String("host", "", "HTTP listen host (overrides config)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	devicesFlag := flag.Bool("devices", false, "List capture devices and exit")
	sourceFlag := flag.String("source", "", "Default source language (overrides config)")
	targetFlag := flag.String("target", "", "Default target language (overrides config)")
	noBrowserFlag := flag.Bool("no-browser", false, "Do not open the web UI in a browser")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("parley %s\n", version)
		os.Exit(0)
	}

	// A local .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != 0 {
		cfg.Server.Port = *portFlag
	}
	if *hostFlag != "" {
		cfg.Server.Host = *hostFlag
	}
	if *deviceFlag != "" {
		cfg.Audio.Device = *deviceFlag
	}
	if *sourceFlag != "" {
		cfg.Languages.Source = *sourceFlag
	}
	if *targetFlag != "" {
		cfg.Languages.Target = *targetFlag
	}
	if *noBrowserFlag {
		cfg.Server.OpenBrowser = false
	}

	logDir := *logPathFlag
	if logDir == "" {
		logDir = cfg.LogPath
	}
	logPath, err := log.ResolveDir(logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	if *devicesFlag {
		listDevices(audioCtx)
		os.Exit(0)
	}

	device := audio.FindDevice(audioCtx, cfg.Audio.Device)
	if cfg.Audio.Device != "" && device == nil {
		fmt.Printf("Warning: device %q not found, using system default\n", cfg.Audio.Device)
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		log.Warnf("bluetooth microphone %q selected, capture quality may suffer", device.Name)
	}

	rec := recognizer.NewGoogle(cfg.Recognizer.Endpoint, cfg.Recognizer.Key)
	tr := translator.NewGoogle(cfg.Translator.Endpoint)
	rec.Warm()
	tr.Warm()

	listenCfg := audio.ListenConfig{
		PhraseLimit: time.Duration(cfg.Audio.PhraseLimitMS) * time.Millisecond,
		WaitTimeout: time.Duration(cfg.Audio.WaitTimeoutMS) * time.Millisecond,
		PauseWindow: time.Duration(cfg.Audio.PauseWindowMS) * time.Millisecond,
		Calibration: time.Duration(cfg.Audio.CalibrationMS) * time.Millisecond,
	}
	sources := func() (server.PhraseSource, func(), error) {
		det, err := audio.NewVADDetector()
		if err != nil {
			return nil, nil, err
		}
		capture, err := audioCtx.NewCapture(device, audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		})
		if err != nil {
			return nil, nil, err
		}
		listener := audio.NewListener(capture, det, listenCfg)
		if err := listener.Start(); err != nil {
			capture.Close()
			return nil, nil, err
		}
		return listener, func() {
			listener.Close()
			capture.Close()
		}, nil
	}

	state := session.New()
	srv := server.New(state, rec, tr, sources)
	srv.SetDefaultLanguages(cfg.Languages.Source, cfg.Languages.Target)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on http://%s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	url := fmt.Sprintf("http://%s/", addr)
	fmt.Printf("parley %s listening on %s\n", version, url)
	if cfg.Server.OpenBrowser {
		go func() {
			// Give the listener a moment before pointing a browser at it.
			time.Sleep(300 * time.Millisecond)
			if err := browser.OpenURL(url); err != nil {
				log.Warnf("could not open browser: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			log.Errorf("server error: %v", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		log.Infof("received %v, shutting down", sig)
		state.RequestStop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}
}
