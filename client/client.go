// Package client is the request dispatcher: it composes outbound calls with
// auth, tenant and anti-forgery headers, performs the network call, and on an
// authorization failure runs exactly one transparent refresh-and-retry cycle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/edukite/go-edukite-client/endpoint"
	"github.com/edukite/go-edukite-client/internal/config"
	"github.com/edukite/go-edukite-client/internal/obs"
	"github.com/edukite/go-edukite-client/session"
)

const (
	tenantHeader    = "x-tenant-id"
	csrfHeader      = "x-csrf-token"
	requestIDHeader = "x-request-id"

	devDefaultOrigin = "http://localhost:8080"
)

// Client dispatches requests against the resolved base endpoint. It holds a
// cookie jar (anti-forgery token exchange requires cookies on every call)
// and implements session.Refresher so the session manager can renew through
// the same transport.
type Client struct {
	http           *http.Client
	base           endpoint.Base
	session        *session.Manager
	log            zerolog.Logger
	csrfCookie     string
	containerHosts map[string]struct{}
}

var _ session.Refresher = (*Client)(nil)

// Option modifies a Client at construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport. A cookie jar is attached
// if the given client has none.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the client logger. The default logger is a nop.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log.With().Str("component", "client").Logger()
	}
}

// New creates a dispatcher from configuration and binds itself as the
// session's refresher. Endpoint resolution happens here, once: a bad or
// missing base is a startup failure, not a degraded run.
func New(cfg config.Config, sess *session.Manager, options ...Option) (*Client, error) {
	if sess == nil {
		return nil, errors.New("[New] session manager is required")
	}

	base, err := endpoint.Resolve(cfg.GetAPIBaseURL(), cfg.GetEnv())
	if err != nil {
		return nil, errors.Wrap(err, "[New] resolve base endpoint")
	}
	if base.IsRelative() {
		origin := cfg.GetOrigin()
		if origin == "" && strings.EqualFold(cfg.GetEnv(), "DEV") {
			origin = devDefaultOrigin
		}
		base, err = base.WithOrigin(origin)
		if err != nil {
			return nil, errors.Wrap(err, "[New] resolve origin for relative base")
		}
	}

	c := &Client{
		base:       base,
		session:    sess,
		log:        zerolog.Nop(),
		csrfCookie: cfg.GetCSRFCookieName(),
	}
	c.containerHosts = make(map[string]struct{})
	for _, h := range cfg.GetContainerHosts() {
		c.containerHosts[h] = struct{}{}
	}
	for _, opt := range options {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "[New] create cookie jar")
		}
		c.http.Jar = jar
	}

	obs.Init()
	sess.BindRefresher(c)
	return c, nil
}

// Base returns the resolved base endpoint.
func (c *Client) Base() endpoint.Base {
	return c.base
}

// callOptions carries per-dispatch settings.
type callOptions struct {
	headers http.Header
	binary  bool
	noAuth  bool
}

// CallOption modifies a single dispatched call.
type CallOption func(*callOptions)

// WithHeader sets an explicit request header. An explicit Authorization
// header suppresses the bearer token.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Set(key, value)
	}
}

// Do dispatches a JSON call. A non-nil body is marshalled as the JSON
// request body; a non-nil out receives the decoded response. 204 responses
// resolve to an empty result.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	data, err := c.dispatch(ctx, method, path, body, callOptions{}, true)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "[Do] decode response from %s", path)
	}
	return nil
}

// Binary dispatches an explicitly binary call (document downloads) and
// resolves to the raw byte payload.
func (c *Client) Binary(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.dispatch(ctx, method, path, body, callOptions{binary: true}, true)
}

// Call dispatches a JSON call and decodes the response into T.
func Call[T any](ctx context.Context, c *Client, method, path string, body any, options ...CallOption) (T, error) {
	var out T
	opts := callOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	data, err := c.dispatch(ctx, method, path, body, opts, true)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrapf(err, "[Call] decode response from %s", path)
	}
	return out, nil
}

// RefreshSession implements session.Refresher: it POSTs the refresh token to
// the renewal endpoint. The call never triggers its own refresh-and-retry
// cycle, and carries no bearer header.
func (c *Client) RefreshSession(ctx context.Context, refreshToken, tenantID string) (*session.AuthResponse, error) {
	opts := callOptions{noAuth: true}
	if tenantID != "" {
		opts.headers = http.Header{}
		opts.headers.Set(tenantHeader, tenantID)
	}

	body := map[string]string{"refreshToken": refreshToken}
	data, err := c.dispatch(ctx, http.MethodPost, "/auth/refresh", body, opts, false)
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshSession] renewal call")
	}

	var auth session.AuthResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, errors.Wrap(err, "[RefreshSession] decode renewal response")
	}
	return &auth, nil
}

// dispatch performs one logical call: at most two network attempts (the
// original plus one after a successful refresh), never a third.
func (c *Client) dispatch(ctx context.Context, method, path string, body any, opts callOptions, retry bool) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "[dispatch] marshal request body for %s", path)
		}
	}
	return c.doOnce(ctx, method, path, payload, opts, retry, false)
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, opts callOptions, retry, retried bool) ([]byte, error) {
	targetURL := c.base.JoinPath(path)

	resp, data, err := c.roundTrip(ctx, method, targetURL, payload, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && retry && c.session.RefreshToken() != "" {
		auth, err := c.session.Refresh(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[dispatch] refresh after 401")
		}
		if auth != nil && auth.AccessToken != "" {
			obs.ObserveAuthRetry()
			c.log.Debug().Str("path", path).Msg("retrying after token refresh")
			return c.doOnce(ctx, method, path, payload, opts, false, true)
		}
		// Refresh could not reauthenticate; session already cleared.
		return nil, &AuthExpiredError{APIError: *normalizeError(resp.StatusCode, data, targetURL)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := normalizeError(resp.StatusCode, data, targetURL)
		if resp.StatusCode == http.StatusUnauthorized && retried {
			// The backend rejected the freshly refreshed token. Terminal.
			if err := c.session.Invalidate(); err != nil {
				c.log.Warn().Err(err).Msg("session invalidate after rejected retry")
			}
			return nil, &AuthExpiredError{APIError: *apiErr}
		}
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return data, nil
}

// roundTrip builds and performs the network call, applying the one bounded
// recovery attempt for container hostnames that do not resolve locally.
func (c *Client) roundTrip(ctx context.Context, method, targetURL string, payload []byte, opts callOptions) (*http.Response, []byte, error) {
	start := time.Now()

	resp, err := c.attempt(ctx, method, targetURL, payload, opts)
	if err != nil {
		if fallback, ok := c.loopbackURL(targetURL); ok {
			c.log.Warn().Str("url", targetURL).Str("fallback", fallback).
				Msg("transport failure, retrying against loopback")
			resp, err = c.attempt(ctx, method, fallback, payload, opts)
			targetURL = fallback
		}
	}
	if err != nil {
		obs.ObserveRequest(method, 0, time.Since(start))
		return nil, nil, &ConnectivityError{Origin: originOf(targetURL), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		obs.ObserveRequest(method, resp.StatusCode, time.Since(start))
		return nil, nil, &ConnectivityError{Origin: originOf(targetURL), Err: err}
	}

	obs.ObserveRequest(method, resp.StatusCode, time.Since(start))
	c.log.Debug().Str("method", method).Str("url", targetURL).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("dispatched")
	return resp, data, nil
}

func (c *Client) attempt(ctx context.Context, method, targetURL string, payload []byte, opts callOptions) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", targetURL)
	}

	for key, values := range opts.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get(tenantHeader) == "" {
		if tenant := c.session.TenantID(); tenant != "" {
			req.Header.Set(tenantHeader, tenant)
		}
	}
	if token := c.csrfToken(req.URL); token != "" {
		req.Header.Set(csrfHeader, token)
	}
	if !opts.noAuth && req.Header.Get("Authorization") == "" {
		if access := c.session.AccessToken(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}
	req.Header.Set(requestIDHeader, uuid.NewString())

	return c.http.Do(req)
}

// csrfToken returns the anti-forgery token the backend set as a cookie, if
// one is present in the jar for the request URL.
func (c *Client) csrfToken(u *url.URL) string {
	if c.http.Jar == nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == c.csrfCookie {
			return cookie.Value
		}
	}
	return ""
}

// loopbackURL substitutes a known container hostname with loopback, keeping
// the port. Returns false when the host is not a container hostname.
func (c *Client) loopbackURL(targetURL string) (string, bool) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "", false
	}
	if _, ok := c.containerHosts[u.Hostname()]; !ok {
		return "", false
	}
	host := "127.0.0.1"
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String(), true
}

func originOf(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return targetURL
	}
	return u.Scheme + "://" + u.Host
}
