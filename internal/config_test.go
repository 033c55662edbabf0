package internal

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	environment := env.EnvSet{
		"PORT":            "8080",
		"JWT_SECRET":      "secret",
		"BADGER_FILEPATH": "/tmp/badger",
		"CENSORED_WORDS":  "weasel,ferret",
	}

	var config Config
	err := env.Unmarshal(environment, &config)

	req.NoError(err)
	req.Equal("0.0.0.0:8080", config.Addr())
	req.Equal(60*time.Second, config.PongWait)
	req.Equal(256, config.ConnectionBufferSize)
	req.Nil(config.LimitMessages)
	req.Equal([]string{"weasel", "ferret"}, config.ExtraCensoredWords())
	req.Empty(config.MQTTBrokerURL)
}

func TestConfig_Required(t *testing.T) {
	var config Config
	err := env.Unmarshal(env.EnvSet{"PORT": "8080"}, &config)
	require.Error(t, err)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
