// Package config reads daemon settings from flags, an optional .env file and
// SAKHI_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
)

const EnvPrefix = "SAKHI_"

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	EnvFile  string
	LogLevel string

	Addr   string
	Socket string

	Backend  string
	Model    string
	Endpoint string
	Proxy    string
	Timeout  time.Duration

	Locale       string
	WhisperModel string
	AudioFile    string
	Threads      int
	TTS          string
	Voice        string
	Chime        string
	Duck         bool
	DuckFactor   float64

	FPS int

	// APIKey pre-fills the screen credential. It comes only from the
	// environment and is never written anywhere.
	APIKey string
}

func (c Config) Level() log.Level {
	return logLevelMap[c.LogLevel]
}

// Load parses args (without the program name).
func Load(args []string) (Config, error) {
	var c Config

	flags := cli.NewFlagSet("sakhi", cli.ContinueOnError)
	flags.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	flags.StringVarP(&c.LogLevel, "log", "l", "info", "Log level (debug|info|warn|error)")
	flags.StringVarP(&c.Addr, "addr", "a", "127.0.0.1:8093", "Screen HTTP listen address")
	flags.StringVarP(&c.Socket, "socket", "s", "/tmp/sakhi.sock", "Control socket path")
	flags.StringVarP(&c.Backend, "backend", "b", "gemini", "Generation backend (gemini|openai)")
	flags.StringVarP(&c.Model, "model", "m", "", "Model name, backend default when empty")
	flags.StringVar(&c.Endpoint, "endpoint", "", "Backend base URL, backend default when empty")
	flags.StringVarP(&c.Proxy, "proxy", "p", "", "Socks proxy address for the backend")
	flags.DurationVarP(&c.Timeout, "timeout", "t", 30*time.Second, "Generation timeout")
	flags.StringVar(&c.Locale, "locale", "hi-IN", "Speech locale")
	flags.StringVarP(&c.WhisperModel, "whisper-model", "w", "third_party/whisper.cpp/models/ggml-medium.bin", "Whisper ggml model")
	flags.StringVar(&c.AudioFile, "audio-file", "", "Transcribe this file instead of the microphone")
	flags.IntVar(&c.Threads, "threads", 0, "Whisper threads, 0 for all cores")
	flags.StringVar(&c.TTS, "tts", "espeak", "Speech synthesizer (espeak|none)")
	flags.StringVar(&c.Voice, "voice", "", "Synthesizer voice, chosen from the locale when empty")
	flags.StringVar(&c.Chime, "chime", "", "mp3 played when listening starts")
	flags.BoolVar(&c.Duck, "duck", false, "Lower other audio streams while listening")
	flags.Float64Var(&c.DuckFactor, "duck-factor", 0.3, "Volume factor for ducked streams")
	flags.IntVar(&c.FPS, "fps", 30, "Avatar frames per second")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", c.EnvFile, err)
	}

	var envErr error
	flags.VisitAll(func(f *cli.Flag) {
		if f.Changed || f.Name == "env" {
			return
		}
		v, ok := os.LookupEnv(EnvName(f.Name))
		if !ok || v == "" {
			return
		}
		if err := flags.Set(f.Name, v); err != nil && envErr == nil {
			envErr = fmt.Errorf("%s: %w", EnvName(f.Name), err)
		}
	})
	if envErr != nil {
		return Config{}, envErr
	}

	c.Backend = strings.ToLower(c.Backend)
	c.TTS = strings.ToLower(c.TTS)
	c.LogLevel = strings.ToLower(c.LogLevel)

	switch c.Backend {
	case "gemini":
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	case "openai":
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		return Config{}, fmt.Errorf("unknown backend %q", c.Backend)
	}
	if v := os.Getenv(EnvPrefix + "API_KEY"); v != "" {
		c.APIKey = v
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// EnvName maps a flag name to its environment variable.
func EnvName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func (c Config) validate() error {
	if _, ok := logLevelMap[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.TTS {
	case "espeak", "none":
	default:
		return fmt.Errorf("unknown tts %q", c.TTS)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if c.DuckFactor < 0 || c.DuckFactor > 1 {
		return errors.New("duck-factor must be within [0, 1]")
	}
	return nil
}
