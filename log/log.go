package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a console logger tagged with the owning module name.
func New(module string) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:           os.Stderr,
		TimeFormat:    "15:04",
		PartsOrder:    []string{"time", "level", "module", "message"},
		FieldsExclude: []string{"module"},
	}

	out.FormatPartValueByName = func(i any, s string) string {
		if s == "module" && i != nil {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		return ""
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Str("module", module).
		Logger()

	return logger
}

// SetLevel applies a textual level to the global zerolog filter,
// falling back to info on unknown input.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
