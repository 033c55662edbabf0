package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// HUB_ADDR is the host:port of a running hub, the scenarios are skipped without it
	HubAddr    string `envconfig:"HUB_ADDR"`
	HealthAddr string `envconfig:"HEALTH_ADDR"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	// The users and circle must have been seeded beforehand with `inspect seed`
	FirstUser  string `envconfig:"E2E_FIRST_USER" default:"alice"`
	SecondUser string `envconfig:"E2E_SECOND_USER" default:"bob"`
	CircleID   string `envconfig:"E2E_CIRCLE" default:"family"`
	// E2E_DEBUG_JSON allows dumping every websocket frame as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
