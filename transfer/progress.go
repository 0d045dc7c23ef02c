package transfer

import (
	"github.com/rs/zerolog"

	"github.com/bitfsorg/libmsgstore-go/transport"
)

// ProgressFunc receives cumulative byte progress for a whole transfer.
type ProgressFunc = transport.ProgressFunc

// logStep is the granularity of progress logging when no callback is given.
const logStep = 5

// logProgress returns a ProgressFunc that logs at debug level each time
// another logStep percent completes.
func logProgress(log zerolog.Logger, op string, h Handle) ProgressFunc {
	last := -1
	return func(done, total int64) {
		pct := 100
		if total > 0 {
			pct = int(done * 100 / total)
		}
		step := pct / logStep
		if step == last {
			return
		}
		last = step
		log.Debug().
			Str("op", op).
			Int64("handle", int64(h)).
			Int64("done", done).
			Int64("total", total).
			Msgf("%d%%", pct)
	}
}

// progressOrLog returns fn, or a logging ProgressFunc when fn is nil.
func (e *Engine) progressOrLog(fn ProgressFunc, op string, h Handle) ProgressFunc {
	if fn != nil {
		return fn
	}
	return logProgress(e.log, op, h)
}
