// Package obs contains observability utilities: logging and metrics.
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global structured logger used by the service. It carries a
// usable default so library code can log before InitLogger runs.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// InitLogger initializes the global Logger with a JSON handler. Unknown
// levels fall back to info.
func InitLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	Logger = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "page-stats").
		Logger()
}
