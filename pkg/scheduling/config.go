package scheduling

// Config holds the suggestion engine settings.
type Config struct {
	// MaxSlotMinutes caps the availability slot size; the request duration is
	// used when it is smaller.
	MaxSlotMinutes   int    `env:"SCHEDULING_MAX_SLOT_MINUTES" envDefault:"30"`
	Workers          int    `env:"SCHEDULING_WORKERS" envDefault:"1"`
	QueueSize        int    `env:"SCHEDULING_QUEUE_SIZE" envDefault:"256"`
	DefaultListLimit int    `env:"SCHEDULING_LIST_LIMIT" envDefault:"50"`
	MaxListLimit     int    `env:"SCHEDULING_MAX_LIST_LIMIT" envDefault:"500"`
	DefaultSolver    string `env:"SCHEDULING_DEFAULT_SOLVER" envDefault:"first-fit"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		MaxSlotMinutes:   30,
		Workers:          1,
		QueueSize:        256,
		DefaultListLimit: 50,
		MaxListLimit:     500,
		DefaultSolver:    "first-fit",
	}
}
