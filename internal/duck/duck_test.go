package duck

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
		media.name = "Playback"
Sink Input #57
	Volume: mono: 39322 /  60% / -13.31 dB
	Properties:
		application.name = "sakhi"
Sink Input #63
	Volume: front-left: 52429 /  80% / -5.81 dB,   front-right: 52429 /  80% / -5.81 dB
	Properties:
		application.name = "spotify"
Sink Input #bad
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := ParseSinkInputs(sinkInputs)
	assert.Equal(t, []Stream{
		{ID: 41, Volume: 100, AppName: "Firefox"},
		{ID: 57, Volume: 60, AppName: "sakhi"},
		{ID: 63, Volume: 80, AppName: "spotify"},
	}, got)

	assert.Empty(t, ParseSinkInputs(""))
	assert.Empty(t, ParseSinkInputs("no sink inputs here"))
}

type fakePactl struct {
	mu   sync.Mutex
	list string
	sets []string
}

func (f *fakePactl) run(ctx context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if args[0] == "list" {
		return []byte(f.list), nil
	}
	f.sets = append(f.sets, strings.Join(args[1:], " "))
	return nil, nil
}

func TestDuckAndRestore(t *testing.T) {
	p := &fakePactl{list: sinkInputs}
	d := New(p.run, []string{"sakhi"}, 0.3, 0)

	require.NoError(t, d.Duck(context.Background()))
	assert.Equal(t, []string{"41 30%", "63 24%"}, p.sets)

	// already ducked
	require.NoError(t, d.Duck(context.Background()))
	assert.Len(t, p.sets, 2)

	p.sets = nil
	p.list = strings.ReplaceAll(strings.ReplaceAll(sinkInputs, "100%", "30%"), " 80%", " 24%")
	require.NoError(t, d.Restore(context.Background()))
	assert.Equal(t, []string{"41 100%", "63 80%"}, p.sets)

	p.sets = nil
	require.NoError(t, d.Restore(context.Background()))
	assert.Empty(t, p.sets)
}

func TestDuckFades(t *testing.T) {
	p := &fakePactl{list: "Sink Input #7\n\tVolume: mono: 100%\n\tapplication.name = \"mpv\"\n"}
	d := New(p.run, nil, 0.5, 30*time.Millisecond)

	require.NoError(t, d.Duck(context.Background()))
	require.Len(t, p.sets, 3)
	assert.Equal(t, "7 50%", p.sets[2])
}
