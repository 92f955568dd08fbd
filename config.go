package schedkit

import (
	"github.com/dmitrymomot/schedkit/pkg/availability"
	"github.com/dmitrymomot/schedkit/pkg/config"
	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/mongo"
	"github.com/dmitrymomot/schedkit/pkg/pg"
	"github.com/dmitrymomot/schedkit/pkg/queue"
	"github.com/dmitrymomot/schedkit/pkg/redis"
	"github.com/dmitrymomot/schedkit/pkg/scheduling"
)

// Config holds the engine settings. Every field has a default, so it loads
// from an empty environment.
type Config struct {
	Logger       logger.Config
	Queue        queue.Config
	Availability availability.Config
	Scheduling   scheduling.Config

	// MetricsLog writes metric updates as debug log records when no sink is
	// passed with WithMetrics.
	MetricsLog bool `env:"METRICS_LOG" envDefault:"false"`
}

// StoresConfig holds the connection settings used by Open.
type StoresConfig struct {
	Postgres pg.Config
	Redis    redis.Config
	Mongo    mongo.Config
}

// LoadConfig reads Config from the environment and an optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadStoresConfig reads StoresConfig from the environment. PG_CONN_URL and
// MONGODB_URL are required.
func LoadStoresConfig() (StoresConfig, error) {
	var cfg StoresConfig
	if err := config.Load(&cfg); err != nil {
		return StoresConfig{}, err
	}
	return cfg, nil
}
