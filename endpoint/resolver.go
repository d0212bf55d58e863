// Package endpoint resolves the backend base every request URL is built
// from, reconciling explicit configuration, relative reverse-proxy prefixes
// and the development fallback.
package endpoint

import (
	"net/url"
	"strings"

	apperrors "github.com/edukite/go-edukite-client/internal/errors"
	"github.com/pkg/errors"
)

const devDefaultBase = "/api"

// Base is the resolved endpoint: either a relative path prefix (same-origin
// reverse-proxy deployments) or an absolute origin+path.
type Base struct {
	value    string
	relative bool
}

// Resolve produces the base endpoint from the configured value and the
// runtime environment. Resolution happens once at startup; an error here is
// fatal and must abort startup rather than degrade silently.
func Resolve(configured, env string) (Base, error) {
	raw := strings.TrimSpace(configured)
	raw = strings.Trim(raw, `"'`)
	raw = strings.TrimSpace(raw)

	if raw == "" {
		if strings.EqualFold(env, "DEV") {
			return Base{value: devDefaultBase, relative: true}, nil
		}
		return Base{}, errors.Wrap(apperrors.ErrEndpointNotConfigured,
			"[Resolve] set EDUKITE_API_URL for deployed environments")
	}

	if strings.HasPrefix(raw, "/") {
		return Base{value: strings.TrimRight(raw, "/"), relative: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Base{}, errors.Wrapf(apperrors.ErrInvalidEndpoint, "[Resolve] parse %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Base{}, errors.Wrapf(apperrors.ErrInvalidEndpoint, "[Resolve] unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Base{}, errors.Wrapf(apperrors.ErrInvalidEndpoint, "[Resolve] missing host in %q", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return Base{value: u.String()}, nil
}

// IsRelative reports whether the base is a path prefix rather than an
// absolute origin.
func (b Base) IsRelative() bool {
	return b.relative
}

// String returns the resolved base as configured (no trailing slash).
func (b Base) String() string {
	return b.value
}

// JoinPath appends a request path to the base. Absolute caller-supplied
// paths pass through unmodified.
func (b Base) JoinPath(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.value + path
}

// WithOrigin resolves a relative base against an origin, yielding an
// absolute base. Absolute bases are returned unchanged.
func (b Base) WithOrigin(origin string) (Base, error) {
	if !b.relative {
		return b, nil
	}
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return Base{}, errors.Wrap(apperrors.ErrOriginNotConfigured,
			"[WithOrigin] relative base requires an origin")
	}
	abs, err := Resolve(origin, "")
	if err != nil {
		return Base{}, errors.Wrap(err, "[WithOrigin] resolve origin")
	}
	if abs.relative {
		return Base{}, errors.Wrapf(apperrors.ErrInvalidEndpoint, "[WithOrigin] origin %q is not absolute", origin)
	}
	return Base{value: abs.value + b.value}, nil
}
