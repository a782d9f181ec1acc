package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sakhi/internal/speech"
)

const voicesOutput = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 5  hi              --/M      Hindi              inc/hi
 5  mr              --/M      Marathi            inc/mr
`

func TestParseVoices(t *testing.T) {
	got := ParseVoices(voicesOutput)
	assert.Equal(t, []speech.Voice{
		{ID: "af", Name: "Afrikaans", Lang: "af"},
		{ID: "en-us", Name: "English (America)", Lang: "en-us"},
		{ID: "hi", Name: "Hindi", Lang: "hi"},
		{ID: "mr", Name: "Marathi", Lang: "mr"},
	}, got)

	v, ok := speech.SelectVoice(got, "hi-IN")
	assert.True(t, ok)
	assert.Equal(t, "hi", v.ID)
}

func TestArgs(t *testing.T) {
	got := Args(speech.Voice{ID: "hi"}, speech.DefaultProsody)
	assert.Equal(t, []string{"-b", "1", "-s", "158", "-p", "55", "-a", "100", "-v", "hi", "--stdin"}, got)

	got = Args(speech.Voice{}, speech.Prosody{Rate: 10, Pitch: 3, Volume: 0})
	assert.Equal(t, []string{"-b", "1", "-s", "450", "-p", "99", "-a", "100", "--stdin"}, got)
}
