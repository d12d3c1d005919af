package dispatch

import (
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/darkhz/blueapplet/api/bluetooth"
)

// guard wraps an outcome callback pair, so that only the first invocation
// of either callback reaches the caller.
func guard(logger zerolog.Logger, ok bluetooth.Reply, fail bluetooth.ErrorReply) (bluetooth.Reply, bluetooth.ErrorReply) {
	var done atomic.Bool

	guardedOk := func() {
		if !done.CompareAndSwap(false, true) {
			logger.Error().Msg("Request outcome already delivered, dropping success reply")
			return
		}

		if ok != nil {
			ok()
		}
	}

	guardedFail := func(err error) {
		if !done.CompareAndSwap(false, true) {
			logger.Error().Err(err).Msg("Request outcome already delivered, dropping error reply")
			return
		}

		if fail != nil {
			fail(err)
		}
	}

	return guardedOk, guardedFail
}
