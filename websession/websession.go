// Package websession binds the tierauth session mirror to net/http: the
// durable token lives in an HttpOnly cookie on the request/response pair, and
// the volatile token and identity snapshot live in a per-browsing-session
// Values bag supplied by the host's session layer.
package websession

import (
	"net/http"
	"time"

	"github.com/mlevaskis/tierauth"
)

// Options controls the durable cookie attributes.
type Options struct {
	Name   string // default "SESSID"
	Path   string // default "/"
	Domain string // may be empty for host-only
	Secure bool
}

// OptionsFromConfig copies the cookie attributes out of a lifecycle config,
// so a host loading configuration through [tierauth.LoadConfigFromEnv] wires
// the same cookie settings into its per-request mirrors.
func OptionsFromConfig(cfg tierauth.CookieConfig) Options {
	return Options{
		Name:   cfg.Name,
		Path:   cfg.Path,
		Domain: cfg.Domain,
		Secure: cfg.Secure,
	}
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "SESSID"
	}
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// Values is the volatile half of the session mirror. The host keeps one
// Values per browsing session (however it tracks those) and hands it to
// [New] on every request. Values is not safe for concurrent use; requests
// for the same browsing session are expected to be serialized by the host.
type Values struct {
	token       string
	hasToken    bool
	identity    tierauth.Identity
	hasIdentity bool
}

// Sync implements [tierauth.SessionSync] for one request/response pair.
type Sync struct {
	w      http.ResponseWriter
	r      *http.Request
	values *Values
	opts   Options

	// cookie override set within this request, so reads after a write
	// observe the value the response is about to carry.
	written    string
	hasWritten bool
	cleared    bool
}

// New returns a per-request session mirror. values must outlive the request;
// a nil values gets a fresh (empty) bag, which degrades the volatile half to
// request scope.
func New(w http.ResponseWriter, r *http.Request, values *Values, opts Options) *Sync {
	if values == nil {
		values = &Values{}
	}
	return &Sync{
		w:      w,
		r:      r,
		values: values,
		opts:   opts.withDefaults(),
	}
}

// Token describes the token operation and its observable behavior.
func (s *Sync) Token() (string, bool) {
	if !s.values.hasToken || s.values.token == "" {
		return "", false
	}
	return s.values.token, true
}

// SetToken describes the settoken operation and its observable behavior.
func (s *Sync) SetToken(token string) {
	s.values.token = token
	s.values.hasToken = token != ""
}

// ClearToken describes the cleartoken operation and its observable behavior.
func (s *Sync) ClearToken() {
	s.values.token = ""
	s.values.hasToken = false
}

// DurableToken describes the durabletoken operation and its observable behavior.
func (s *Sync) DurableToken() (string, bool) {
	if s.cleared {
		return "", false
	}
	if s.hasWritten {
		return s.written, true
	}
	c, err := s.r.Cookie(s.opts.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// SetDurableToken describes the setdurabletoken operation and its observable behavior.
func (s *Sync) SetDurableToken(token string, ttl time.Duration) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.opts.Name,
		Value:    token,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.opts.Secure,
	})
	s.written = token
	s.hasWritten = true
	s.cleared = false
}

// ClearDurableToken describes the cleardurabletoken operation and its observable behavior.
func (s *Sync) ClearDurableToken() {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.opts.Name,
		Value:    "",
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.opts.Secure,
	})
	s.written = ""
	s.hasWritten = false
	s.cleared = true
}

// Identity describes the identity operation and its observable behavior.
func (s *Sync) Identity() (tierauth.Identity, bool) {
	if !s.values.hasIdentity {
		return tierauth.Identity{}, false
	}
	return s.values.identity, true
}

// SetIdentity describes the setidentity operation and its observable behavior.
func (s *Sync) SetIdentity(identity tierauth.Identity) {
	s.values.identity = identity
	s.values.hasIdentity = identity.UserID != ""
	if !s.values.hasIdentity {
		s.values.identity = tierauth.Identity{}
	}
}

// ClearIdentity describes the clearidentity operation and its observable behavior.
func (s *Sync) ClearIdentity() {
	s.values.identity = tierauth.Identity{}
	s.values.hasIdentity = false
}

var _ tierauth.SessionSync = (*Sync)(nil)
