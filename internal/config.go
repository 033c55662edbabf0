package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,required=true"`
	HealthPort int    `env:"HEALTH_PORT,default=9090"`
	JWTSecret  string `env:"JWT_SECRET,required=true"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait            time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`

	PushTimeout         time.Duration `env:"PUSH_TIMEOUT,default=5s"`
	PersistTimeout      time.Duration `env:"PERSIST_TIMEOUT,default=3s"`
	CallRetention       time.Duration `env:"CALL_RETENTION,default=10m"`
	EvictionInterval    time.Duration `env:"EVICTION_INTERVAL,default=1m"`
	LocationBufferSize  int           `env:"LOCATION_BUFFER_SIZE,default=1024"`
	LocationTTL         time.Duration `env:"LOCATION_TTL,default=720h"`
	TelemetryBufferSize int           `env:"TELEMETRY_BUFFER_SIZE,default=1024"`
	MetricInterval      time.Duration `env:"METRIC_INTERVAL,default=10s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LatencyThreshold    time.Duration `env:"LATENCY_THRESHOLD,default=100ms"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID,default=circle-hub"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`
	MQTTPushTopic string `env:"MQTT_PUSH_TOPIC,default=circle-hub/push/emergency"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	PresenceTTL   time.Duration `env:"PRESENCE_TTL,default=24h"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ExtraCensoredWords splits the comma separated CENSORED_WORDS setting.
func (c Config) ExtraCensoredWords() []string {
	if c.CensoredWords == "" {
		return nil
	}
	return strings.Split(c.CensoredWords, ",")
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
