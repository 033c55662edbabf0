package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

func newTestModerator(t *testing.T, words ...string) *Moderator {
	mod, err := NewModerator(words, replacementChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return mod
}

func TestModerator_Censor_Chat_Messages(t *testing.T) {
	mod := newTestModerator(t, "idiot", "stupid", "shut up")

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Plain word",
			input:    "you are an idiot",
			expected: "you are an *****",
			words:    []string{"idiot"},
		},
		{
			name:     "Leet speak keeps the original length",
			input:    "so $tup1d",
			expected: "so ******",
			words:    []string{"stupid"},
		},
		{
			name:     "Dotted letters, a trailing bang reads as an i",
			input:    "I.D.I.O.T!",
			expected: "*********!",
			words:    []string{"idiot"},
		},
		{
			name:     "Pattern with a space matches across punctuation",
			input:    "Shut up, please",
			expected: "*******, please",
			words:    []string{"shutup"},
		},
		{
			name:     "Several words in order of appearance",
			input:    "stupid idiot",
			expected: "****** *****",
			words:    []string{"stupid", "idiot"},
		},
		{
			name:     "Accents around are left alone",
			input:    "Quel été idiot",
			expected: "Quel été *****",
			words:    []string{"idiot"},
		},
		{
			name:     "Substrings are censored too",
			input:    "idiotic",
			expected: "*****ic",
			words:    []string{"idiot"},
		},
		{
			name:     "Nothing to censor",
			input:    "See you at home for dinner",
			expected: "See you at home for dinner",
		},
		{
			name: "Empty message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_Noise_Only_Patterns_Are_Skipped(t *testing.T) {
	req := require.New(t)

	// Given a dictionary polluted with punctuation
	mod := newTestModerator(t, "...", ",,,", "", "idiot")

	// Then real words are still censored
	content, words := mod.Censor("what an idiot...")
	req.Equal("what an *****...", content)
	req.Equal([]string{"idiot"}, words)

	// And punctuation alone is never censored
	content, words = mod.Censor("wait...")
	req.Equal("wait...", content)
	req.Nil(words)
}

func TestModerator_Empty_Dictionary(t *testing.T) {
	req := require.New(t)
	mod := newTestModerator(t, "", "...")

	content, words := mod.Censor("nothing to see")
	req.Equal("nothing to see", content)
	req.Nil(words)
}

func TestModerator_DetectLanguage(t *testing.T) {
	req := require.New(t)
	mod := newTestModerator(t, "idiot")

	req.Equal("fr", mod.DetectLanguage("Bonjour à tous, je serai à la maison ce soir pour le dîner avec les enfants"))
	req.Equal("en", mod.DetectLanguage("Hello everyone, I will be home tonight for dinner with the children"))
	req.Empty(mod.DetectLanguage(""))
}
