package tierauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mlevaskis/tierauth/token"
)

// Lifecycle orchestrates the session token state machine: creation for fresh
// clients, the per-request refresh cycle, user binding on login, and row
// invalidation on logout. One Lifecycle serves all requests; per-request
// state travels in the context and the injected [SessionSync].
type Lifecycle struct {
	config    Config
	codec     *token.Codec
	store     TokenStore
	directory UserDirectory
	audit     *auditDispatcher
	metrics   *Metrics
	now       func() time.Time

	// rotations holds short-lived exclusive claims keyed by the old token
	// string, so two racing requests past the update tier produce a single
	// rotation within this process.
	rotations sync.Map
}

// Close describes the close operation and its observable behavior.
func (l *Lifecycle) Close() {
	if l == nil {
		return
	}
	if l.audit != nil {
		l.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
func (l *Lifecycle) AuditDropped() uint64 {
	if l == nil || l.audit == nil {
		return 0
	}
	return l.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (l *Lifecycle) MetricsSnapshot() MetricsSnapshot {
	if l == nil || l.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return l.metrics.Snapshot()
}

func (l *Lifecycle) metricInc(id MetricID) {
	if l == nil || l.metrics == nil {
		return
	}
	l.metrics.Inc(id)
}

// Identity returns the cached authenticated-identity snapshot, or false when
// the session is anonymous.
func (l *Lifecycle) Identity(sess SessionSync) (Identity, bool) {
	if l == nil || sess == nil {
		return Identity{}, false
	}
	identity, ok := sess.Identity()
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}

// ReadToken decodes and verifies a signed token string without consulting the
// store. It proves only that the token was signed with the configured key;
// callers must not treat a successful decode as authentication.
func (l *Lifecycle) ReadToken(signed string) (token.Payload, error) {
	if l == nil {
		return token.Payload{}, ErrLifecycleNotReady
	}
	return l.codec.Decode(signed)
}

// neededSession locates the most recent non-expired record matching the given
// token and the current client's raw address and user agent. Returns nil when
// no such record exists.
func (l *Lifecycle) neededSession(ctx context.Context, oldToken string) (*TokenRecord, error) {
	if oldToken == "" {
		return nil, nil
	}

	records, err := l.store.Find(ctx, TokenFilter{
		Token:     oldToken,
		Address:   clientAddressFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		ActiveAt:  l.now(),
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	record := records[0]
	return &record, nil
}

// tokenKnown reports whether the literal token string has a store record,
// expired or not. Only a well-formed token the store has never seen is the
// forgery signal; tokens are encoded with a unique jti, so a token string
// never maps to more than one record.
func (l *Lifecycle) tokenKnown(ctx context.Context, signed string) (bool, error) {
	records, err := l.store.Find(ctx, TokenFilter{Token: signed})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return len(records) > 0, nil
}
