package tierauth

import "time"

// Config defines a public type used by tierauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token   TokenConfig
	Cookie  CookieConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the signing key pair and the four expiration tiers.
// The tiers are a configuration contract: update ≤ session ≤ auth ≤ visitor.
// The lifecycle does not enforce the ordering; misordered tiers produce
// legal but surprising rotation behavior.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default), "rs256" optional
	PrivateKey    []byte
	PublicKey     []byte

	// UpdateExpiration is the window after which the token must be rotated.
	UpdateExpiration time.Duration
	// SessionExpiration is the window after which rotation starts a brand-new
	// record instead of reusing the existing row.
	SessionExpiration time.Duration
	// AuthExpiration is the window after which rotation detaches any bound
	// user identity.
	AuthExpiration time.Duration
	// VisitorExpiration is the overall record and cookie lifetime ceiling.
	VisitorExpiration time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines a public type used by tierauth APIs.
//
// CookieConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CookieConfig struct {
	Name   string // default "SESSID"
	Path   string // default "/"
	Domain string // may be empty for host-only
	Secure bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by tierauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by tierauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: MethodEd25519,
		},
		Cookie: CookieConfig{
			Name: "SESSID",
			Path: "/",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

const (
	// MethodEd25519 is an exported constant or variable used by the session lifecycle engine.
	MethodEd25519 = "ed25519"
	// MethodRS256 is an exported constant or variable used by the session lifecycle engine.
	MethodRS256 = "rs256"
)

func validateConfig(cfg Config) error {
	if len(cfg.Token.PrivateKey) == 0 || len(cfg.Token.PublicKey) == 0 {
		return ErrKeysNotConfigured
	}
	if cfg.Token.UpdateExpiration <= 0 ||
		cfg.Token.SessionExpiration <= 0 ||
		cfg.Token.AuthExpiration <= 0 ||
		cfg.Token.VisitorExpiration <= 0 {
		return ErrExpirationsNotConfigured
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	return out
}
