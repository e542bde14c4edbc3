// Package ratelimit guards the backend dial path against connect
// storms: a burst of inbound requests during a backend outage
// shouldn't turn into a burst of doomed TCP SYNs. Grounded on
// golang.org/x/time/rate, the dependency both kidoz-vulners-proxy-go
// and vyrodovalexey-avapigw carry for exactly this kind of throttling.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Dialer paces backend connect attempts. A zero-value rate disables
// limiting (Wait becomes a no-op); config.Default sets 50 dials/sec
// with a burst of 10.
type Dialer struct {
	limiter *rate.Limiter
}

// NewDialer builds a limiter allowing ratePerSecond dials/sec with the
// given burst. ratePerSecond <= 0 disables limiting.
func NewDialer(ratePerSecond float64, burst int) *Dialer {
	if ratePerSecond <= 0 {
		return &Dialer{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Dialer{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a connect attempt is permitted or ctx is done.
func (d *Dialer) Wait(ctx context.Context) error {
	if d == nil || d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}
