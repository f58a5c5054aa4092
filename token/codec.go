package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by tierauth APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the session lifecycle engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodRS256 is an exported constant or variable used by the session lifecycle engine.
	MethodRS256 SigningMethod = "rs256"
)

// ErrMalformedToken is returned by Decode for input that is not a well-formed
// signed token. Signature mismatch and expiry failures are returned as the
// jwt library's own errors; callers must treat every Decode error identically
// to "token absent".
var ErrMalformedToken = errors.New("malformed token")

// Config defines a public type used by tierauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
}

// Payload is the ephemeral claim set embedded in a signed token. The four
// expiry tiers are absolute unix seconds; the two fingerprints are hex sha256
// digests of the originating address and user agent.
type Payload struct {
	AddressHash   string
	AgentHash     string
	UpdateExpiry  int64
	SessionExpiry int64
	AuthExpiry    int64
	VisitorExpiry int64
}

type payloadClaims struct {
	AddressHash   string `json:"tp"`
	AgentHash     string `json:"tb"`
	UpdateExpiry  int64  `json:"ue"`
	SessionExpiry int64  `json:"se"`
	AuthExpiry    int64  `json:"ae"`
	VisitorExpiry int64  `json:"ve"`
	jwt.RegisteredClaims
}

// Codec encodes token payloads into compact signed strings and verifies
// signed strings back into payloads. Verification uses only the public key,
// so read-side deployments never need the private key material.
type Codec struct {
	config Config
}

// NewCodec validates the configured key material and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	switch cfg.SigningMethod {
	case MethodEd25519, "":
		cfg.SigningMethod = MethodEd25519
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	case MethodRS256:
		if len(cfg.PrivateKey) > 0 {
			if _, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey); err != nil {
				return nil, fmt.Errorf("invalid rsa private key: %w", err)
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("rs256 requires public key")
		}
		if _, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKey); err != nil {
			return nil, fmt.Errorf("invalid rsa public key: %w", err)
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// Encode signs the payload. Every call stamps a fresh random jti, so two
// tokens encoded from identical payloads in the same second are still
// distinct strings. The visitor expiry doubles as the registered exp claim so
// the jwt library enforces the overall lifetime ceiling on parse. Encode
// fails only for invalid key material, never for ordinary payloads.
func (c *Codec) Encode(p Payload) (string, error) {
	claims := payloadClaims{
		AddressHash:   p.AddressHash,
		AgentHash:     p.AgentHash,
		UpdateExpiry:  p.UpdateExpiry,
		SessionExpiry: p.SessionExpiry,
		AuthExpiry:    p.AuthExpiry,
		VisitorExpiry: p.VisitorExpiry,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Unix(p.VisitorExpiry, 0)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tok := jwt.NewWithClaims(c.getMethod(), claims)

	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}

	return tok.SignedString(signKey)
}

// Decode verifies the signature with the public key and returns the embedded
// payload. Malformed input, signature mismatch, and an exceeded lifetime
// ceiling all return an error and a zero payload; a partial payload is never
// returned.
func (c *Codec) Decode(signed string) (Payload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.getMethod().Alg()}),
	)

	tok, err := parser.ParseWithClaims(signed, &payloadClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.getVerifyKey()
	})
	if err != nil {
		return Payload{}, err
	}

	claims, ok := tok.Claims.(*payloadClaims)
	if !ok || !tok.Valid {
		return Payload{}, ErrMalformedToken
	}

	return Payload{
		AddressHash:   claims.AddressHash,
		AgentHash:     claims.AgentHash,
		UpdateExpiry:  claims.UpdateExpiry,
		SessionExpiry: claims.SessionExpiry,
		AuthExpiry:    claims.AuthExpiry,
		VisitorExpiry: claims.VisitorExpiry,
	}, nil
}

func (c *Codec) getMethod() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodRS256:
		return jwt.SigningMethodRS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) getSignKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodRS256:
		return jwt.ParseRSAPrivateKeyFromPEM(c.config.PrivateKey)
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodRS256:
		return jwt.ParseRSAPublicKeyFromPEM(c.config.PublicKey)
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
