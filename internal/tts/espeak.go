// Package tts speaks through the espeak-ng command line synthesizer.
package tts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"sakhi/internal/speech"
)

var ErrNotFound = errors.New("tts: espeak-ng not found")

// espeak defaults the prosody multipliers apply to
const (
	baseSpeed     = 175 // words per minute
	basePitch     = 50  // 0-99
	baseAmplitude = 100 // 0-200
)

type Espeak struct {
	bin string
}

// NewEspeak finds espeak-ng, falling back to classic espeak.
func NewEspeak() (*Espeak, error) {
	for _, name := range []string{"espeak-ng", "espeak"} {
		if p, err := exec.LookPath(name); err == nil {
			return &Espeak{bin: p}, nil
		}
	}
	return nil, ErrNotFound
}

func (e *Espeak) Voices(ctx context.Context) ([]speech.Voice, error) {
	out, err := exec.CommandContext(ctx, e.bin, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return ParseVoices(string(out)), nil
}

// Say blocks until espeak exits. Cancelling ctx kills it mid-sentence.
func (e *Espeak) Say(ctx context.Context, text string, v speech.Voice, p speech.Prosody) error {
	cmd := exec.CommandContext(ctx, e.bin, Args(v, p)...)
	cmd.Stdin = strings.NewReader(text)

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("espeak: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (e *Espeak) Close() error { return nil }

// Args builds the espeak command line; text is read from stdin as UTF-8.
func Args(v speech.Voice, p speech.Prosody) []string {
	args := []string{
		"-b", "1",
		"-s", strconv.Itoa(scale(baseSpeed, p.Rate, 80, 450)),
		"-p", strconv.Itoa(scale(basePitch, p.Pitch, 0, 99)),
		"-a", strconv.Itoa(scale(baseAmplitude, p.Volume, 0, 200)),
	}
	if v.ID != "" {
		args = append(args, "-v", v.ID)
	}
	return append(args, "--stdin")
}

func scale(base int, factor float64, lo, hi int) int {
	if factor <= 0 {
		factor = 1
	}
	v := int(math.Round(float64(base) * factor))
	return min(max(v, lo), hi)
}

// ParseVoices reads `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  hi              --/M      Hindi              inc/hi
func ParseVoices(text string) []speech.Voice {
	var voices []speech.Voice

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, speech.Voice{
			ID:   fields[1],
			Name: strings.ReplaceAll(fields[3], "_", " "),
			Lang: fields[1],
		})
	}
	return voices
}
