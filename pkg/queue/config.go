package queue

// Config holds the queue engine settings.
type Config struct {
	DefaultMaxAttempts int `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
	DefaultListLimit   int `env:"QUEUE_LIST_LIMIT" envDefault:"50"`
	MaxListLimit       int `env:"QUEUE_MAX_LIST_LIMIT" envDefault:"500"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		DefaultMaxAttempts: 3,
		DefaultListLimit:   50,
		MaxListLimit:       500,
	}
}
