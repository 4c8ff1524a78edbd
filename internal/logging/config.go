package logging

// Config controls log rotation and verbosity for the orchestrator logger.
type Config struct {
	LogFile     string
	MaxSize     int // megabytes
	MaxAge      int // days
	MaxBackups  int
	Compress    bool
	Development bool
}

// DefaultConfig returns sane defaults for a locally-run orchestrator.
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "swaprun.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}
