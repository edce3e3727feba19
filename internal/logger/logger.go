// Package logger configures the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const appName = "face-auth"

var once sync.Once

// Init sets the global level and output format. Only the first call has effect.
func Init(level string, pretty bool) {
	once.Do(func() {
		initLogger(os.Stderr, level, pretty)
		log.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("Logger initialized")
	})
}

func initLogger(out io.Writer, level string, pretty bool) {
	zerolog.SetGlobalLevel(parseLevel(level))

	var w io.Writer = out
	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
			FieldsExclude: []string{"app"},
		}
	}

	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		return file + ":" + strconv.Itoa(line)
	}

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Str("app", appName).Logger()
}

// parseLevel maps a case-insensitive level name to a zerolog level.
// Unknown names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
