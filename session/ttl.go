package session

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const renewalMargin = 60 * time.Second

// ParseTTL parses a token time-to-live string. A bare integer is interpreted
// as milliseconds; a suffix-qualified value uses s/m/h/d units.
func ParseTTL(ttl string) (time.Duration, error) {
	if ttl == "" {
		return 0, errors.New("[ParseTTL] empty duration string")
	}

	if ms, err := strconv.ParseInt(ttl, 10, 64); err == nil {
		if ms < 0 {
			return 0, errors.Errorf("[ParseTTL] negative duration %q", ttl)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	unit := ttl[len(ttl)-1]
	n, err := strconv.ParseInt(ttl[:len(ttl)-1], 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Errorf("[ParseTTL] unparseable duration %q", ttl)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, errors.Errorf("[ParseTTL] unknown duration unit %q", string(unit))
}

// RenewalDelay computes when to silently renew: one minute before expiry, or
// at 75% of lifetime, whichever leaves the smaller margin. Short-lived tokens
// renew earlier in their lifetime; long-lived ones keep the standard
// pre-expiry buffer.
func RenewalDelay(ttl time.Duration) time.Duration {
	beforeExpiry := ttl - renewalMargin
	proportional := time.Duration(float64(ttl) * 0.75)
	if beforeExpiry > proportional {
		return beforeExpiry
	}
	return proportional
}
