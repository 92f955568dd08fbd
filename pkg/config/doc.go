// Package config loads schedkit configuration from the environment.
//
// Structs describe their settings with github.com/caarlos0/env/v11 tags; a
// default .env file is read once through github.com/joho/godotenv before the
// first Load. Load caches the parsed value per type and Reset clears the cache
// in tests.
//
//	type Config struct {
//		DefaultMaxAttempts int `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
