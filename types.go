package tierauth

import (
	"context"
	"time"
)

// TokenRecord is the durable row backing one issued token. The Token field
// changes value when the record is rotated in place; a new record (fresh ID)
// is created only when a session boundary is crossed.
//
// TokenRecord instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenRecord struct {
	ID          string
	Token       string
	UserID      string
	VisitorHash string
	Address     string
	UserAgent   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Anonymous reports whether the record has no bound user.
func (r TokenRecord) Anonymous() bool {
	return r.UserID == ""
}

// TokenFilter selects token records. Zero-valued fields are ignored. Results
// are ordered most recent first; Limit caps the result length when positive.
type TokenFilter struct {
	Token     string
	Address   string
	UserAgent string

	// ActiveAt excludes records whose ExpiresAt is at or before the given
	// instant. The zero time disables the check.
	ActiveAt time.Time

	Limit int
}

// TokenMutation is a partial update applied to an existing record. Nil fields
// are left untouched.
type TokenMutation struct {
	Token     *string
	UserID    *string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// TokenStore is the persistence interface that callers must implement to
// integrate tierauth with their database. The store assigns record IDs on
// Insert. Implementations must treat Find with an unmatched filter as an
// empty result, not an error.
type TokenStore interface {
	Find(ctx context.Context, filter TokenFilter) ([]TokenRecord, error)
	Insert(ctx context.Context, record TokenRecord) (TokenRecord, error)
	Update(ctx context.Context, id string, mutation TokenMutation) error
}

// UserRecord is the directory row cached into the session identity snapshot
// after a successful login.
type UserRecord struct {
	ID    string
	Email string
	Name  string
}

// UserDirectory looks up user records by a unique field. A missing user is
// reported as (nil, nil); errors are reserved for directory failures.
type UserDirectory interface {
	FindByField(ctx context.Context, field, value string) (*UserRecord, error)
}

// Identity is the denormalized authenticated-identity snapshot held in the
// volatile session. A zero UserID means anonymous.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// SessionSync mirrors the current token between the volatile per-request
// session and the durable cookie, and caches the identity snapshot. Clearing
// operations must be idempotent. Implementations are per-request and need not
// be safe for concurrent use.
type SessionSync interface {
	// Token reads the volatile session's cached token.
	Token() (string, bool)
	SetToken(token string)
	ClearToken()

	// DurableToken reads the token from the durable cookie store.
	DurableToken() (string, bool)
	SetDurableToken(token string, ttl time.Duration)
	ClearDurableToken()

	Identity() (Identity, bool)
	SetIdentity(identity Identity)
	ClearIdentity()
}
