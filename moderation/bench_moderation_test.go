package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// syntheticWords builds a dictionary far larger than the embedded ones.
// Letters only, since digits would be read as leet speak.
func syntheticWords(n int) []string {
	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var sb strings.Builder
		sb.WriteString("zq")
		for v := i; ; v /= 26 {
			sb.WriteByte(byte('a' + v%26))
			if v < 26 {
				break
			}
		}
		words = append(words, sb.String())
	}
	return words
}

func Test_Moderator_Builds_Large_Dictionary(t *testing.T) {
	req := require.New(t)
	words := syntheticWords(100_000)

	mod, err := NewModerator(words, '*', logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)

	content, found := mod.Censor(fmt.Sprintf("see you at %s tonight", words[4242]))
	req.NotEmpty(found)
	req.True(strings.HasPrefix(content, "see you at *"), content)
	req.True(strings.HasSuffix(content, " tonight"), content)
}

func BenchmarkModerator_Build(b *testing.B) {
	words := syntheticWords(100_000)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewModerator(words, '*', log); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkModerator_Censor(b *testing.B) {
	data, err := NewEmbeddedLoader().LoadAll("censored")
	if err != nil {
		b.Fatal(err)
	}
	mod, err := NewModerator(data.Words, '*', logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	message := "Je rentre vers 19h, on se retrouve à la maison avec les enfants pour le dîner ce soir"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(message)
	}
}
