package enrollment

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logFailure starts a log event for a failed operation. Only internal
// failures are logged at error level.
func logFailure(err error, op string) *zerolog.Event {
	var ev *zerolog.Event
	switch KindOf(err) {
	case KindInternal:
		ev = log.Error()
	case KindUnavailable:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	return ev.Err(err).Str("op", op).Str("kind", KindOf(err).String())
}
