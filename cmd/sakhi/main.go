package main

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"sakhi/internal/audio"
	"sakhi/internal/config"
	"sakhi/internal/conversation"
	"sakhi/internal/duck"
	"sakhi/internal/ipc"
	"sakhi/internal/mentor"
	"sakhi/internal/notify"
	"sakhi/internal/proxy"
	"sakhi/internal/screen"
	"sakhi/internal/speech"
	"sakhi/internal/tts"
	"sakhi/internal/voice"
	"sakhi/pkg/stt"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.Level(),
		TimeFormat: time.Kitchen,
	})))

	log.Info("Booting up", "backend", cfg.Backend, "locale", cfg.Locale)

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, cfg.Timeout+5*time.Second)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	var backend mentor.Backend
	switch cfg.Backend {
	case "openai":
		backend = mentor.NewOpenAI(httpClient, cfg.Endpoint, cfg.Model)
	default:
		backend = mentor.NewGemini(httpClient, cfg.Endpoint, cfg.Model)
	}

	hub := screen.NewHub()
	scr := screen.New(screen.Config{
		Conversation: conversation.Options{
			Responder:   mentor.NewResponder(backend, cfg.Timeout),
			NewListener: listenerFactory(cfg),
			NewTalker:   talkerFactory(cfg),
		},
		Credential: cfg.APIKey,
		FPS:        cfg.FPS,
	}, hub)
	hub.SetHandler(scr.Handle)

	ctl, err := ipc.Listen(cfg.Socket, func(msg ipc.ControlMessage) any {
		return scr.Handle(screen.Command(msg))
	})
	if err != nil {
		log.Error("Failed ipc server", "socket", cfg.Socket, "err", err)
		os.Exit(1)
	}

	srv := screen.NewServer(hub)
	go func() {
		if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Screen server stopped", "err", err)
		}
	}()

	log.Info("Boot up - successful", "addr", "http://"+cfg.Addr, "socket", cfg.Socket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("Screen server shutdown", "err", err)
	}
	if err := ctl.Close(); err != nil {
		log.Warn("Control socket close", "err", err)
	}
	if err := scr.Close(); err != nil {
		log.Warn("Session close", "err", err)
	}
}

// listenerFactory loads whisper and opens the microphone on first use, or
// reads a fixed recording when one is configured.
func listenerFactory(cfg config.Config) func() (conversation.Listener, error) {
	return func() (conversation.Listener, error) {
		tr, err := stt.NewTranscriber(cfg.WhisperModel)
		if err != nil {
			return nil, err
		}
		log.Debug("Loaded whisper", "model", cfg.WhisperModel)

		if cfg.AudioFile != "" {
			return speech.NewCapture(voice.NewFile(cfg.AudioFile, tr, cfg.Threads), cfg.Locale), nil
		}

		rec := audio.NewRecorder(audio.DefaultEndpointing)
		if err := rec.Init(); err != nil {
			tr.Close()
			return nil, err
		}
		log.Debug("Loaded recorder")

		opts := voice.Options{Threads: cfg.Threads}
		if cfg.Chime != "" {
			opts.Cue = notify.NewChime(cfg.Chime)
		}
		if cfg.Duck {
			opts.Ducker = duck.New(nil, []string{"sakhi"}, cfg.DuckFactor, 200*time.Millisecond)
		}
		return speech.NewCapture(voice.NewMic(rec, tr, opts), cfg.Locale), nil
	}
}

func talkerFactory(cfg config.Config) func() (conversation.Talker, error) {
	if cfg.TTS == "none" {
		return nil
	}
	return func() (conversation.Talker, error) {
		synth, err := tts.NewEspeak()
		if err != nil {
			return nil, err
		}
		p := speech.NewPlayback(synth, cfg.Locale, speech.DefaultProsody)
		if cfg.Voice != "" {
			p.UseVoice(speech.Voice{ID: cfg.Voice})
		}
		return p, nil
	}
}
