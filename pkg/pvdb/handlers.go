package pvdb

import (
	"time"

	"github.com/chanaccess/cas-go/pkg/pv"
)

// DeferredWriteHandler answers every remote write with a completion token
// and applies the written value after delay. A PV closed before the delay
// elapses fails the write.
func DeferredWriteHandler(delay time.Duration) pv.WriteHandler {
	return func(p *pv.PV, v pv.Value, ts time.Time, wc *pv.WriteContext) pv.WriteReply {
		token, err := pv.NewAsyncWrite(p, wc)
		if err != nil {
			return pv.Reject(err)
		}
		time.AfterFunc(delay, func() {
			// Complete reports failures itself and hands them to onDone.
			_ = token.Complete(v, ts)
		})
		return token
	}
}
