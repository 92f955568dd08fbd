package availability

// Config holds the availability engine limits.
type Config struct {
	// MaxSlots bounds the grid size of a single query.
	MaxSlots int `env:"AVAILABILITY_MAX_SLOTS" envDefault:"20000"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{MaxSlots: 20000}
}
