package config

import (
	log "log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "GEMINI_API_KEY", "SAKHI_API_KEY", "SAKHI_ADDR", "SAKHI_LOCALE", "SAKHI_BACKEND")

	c, err := Load([]string{"--env", noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8093", c.Addr)
	assert.Equal(t, "/tmp/sakhi.sock", c.Socket)
	assert.Equal(t, "gemini", c.Backend)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "hi-IN", c.Locale)
	assert.Equal(t, "espeak", c.TTS)
	assert.Equal(t, 30, c.FPS)
	assert.Equal(t, log.LevelInfo, c.Level())
	assert.Empty(t, c.APIKey)
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("SAKHI_ADDR", "0.0.0.0:9000")
	t.Setenv("SAKHI_FPS", "12")

	c, err := Load([]string{"--env", noEnvFile(t), "-a", "127.0.0.1:1234", "--log", "DEBUG"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1234", c.Addr)
	assert.Equal(t, 12, c.FPS)
	assert.Equal(t, log.LevelDebug, c.Level())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t, "SAKHI_LOCALE", "SAKHI_TIMEOUT", "OPENAI_API_KEY", "SAKHI_API_KEY", "SAKHI_BACKEND")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SAKHI_LOCALE=en-IN\nSAKHI_TIMEOUT=5s\nOPENAI_API_KEY=sk-file\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SAKHI_LOCALE")
		os.Unsetenv("SAKHI_TIMEOUT")
		os.Unsetenv("OPENAI_API_KEY")
	})

	c, err := Load([]string{"-e", path, "--backend", "openai"})
	require.NoError(t, err)

	assert.Equal(t, "en-IN", c.Locale)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, "openai", c.Backend)
	assert.Equal(t, "sk-file", c.APIKey)
}

func TestLoadAPIKeyOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-gemini")
	t.Setenv("SAKHI_API_KEY", "from-sakhi")
	clearEnv(t, "SAKHI_BACKEND")

	c, err := Load([]string{"--env", noEnvFile(t)})
	require.NoError(t, err)
	assert.Equal(t, "from-sakhi", c.APIKey)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t, "SAKHI_BACKEND", "SAKHI_TTS", "SAKHI_FPS", "SAKHI_LOG", "SAKHI_TIMEOUT", "SAKHI_DUCK_FACTOR")

	cases := map[string][]string{
		"backend":     {"--backend", "claude"},
		"tts":         {"--tts", "festival"},
		"fps":         {"--fps", "0"},
		"log":         {"--log", "verbose"},
		"timeout":     {"--timeout", "0s"},
		"duck factor": {"--duck-factor", "2"},
		"unknown":     {"--nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(append([]string{"--env", noEnvFile(t)}, args...))
			assert.Error(t, err)
		})
	}

	t.Setenv("SAKHI_FPS", "many")
	_, err := Load([]string{"--env", noEnvFile(t)})
	assert.ErrorContains(t, err, "SAKHI_FPS")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SAKHI_WHISPER_MODEL", EnvName("whisper-model"))
	assert.Equal(t, "SAKHI_ADDR", EnvName("addr"))
}
