package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type EnvVars struct {
	AppEnv       string        `envconfig:"APP_ENV" default:"dev"`
	Port         int           `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	// Empty key disables authentication (local development only).
	AgentAPIKey string `envconfig:"AGENT_API_KEY"`

	OpenMeteoBaseURL string        `envconfig:"OPEN_METEO_BASE_URL" default:"https://api.open-meteo.com/v1/forecast"`
	OpenMeteoTimeout time.Duration `envconfig:"OPEN_METEO_TIMEOUT" default:"20s"`

	FetchWorkers int `envconfig:"FETCH_WORKERS" default:"4"`
	QueueBuffer  int `envconfig:"QUEUE_BUFFER" default:"100"`

	TaskTTL time.Duration `envconfig:"TASK_TTL" default:"10m"`
	// Path to the sqlite archive; empty disables archiving.
	TaskDB string `envconfig:"TASK_DB"`

	RateLimit       int           `envconfig:"RATE_LIMIT" default:"60"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func LoadEnv() (*EnvVars, error) {
	var v EnvVars
	if err := envconfig.Process("", &v); err != nil {
		return nil, err
	}
	return &v, nil
}
