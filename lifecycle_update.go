package tierauth

import (
	"context"
	"fmt"

	"github.com/mlevaskis/tierauth/fingerprint"
	"github.com/mlevaskis/tierauth/token"
)

// Update runs the per-request refresh cycle. Observing the cookie token at
// the start of the request, it either creates a fresh anonymous record (no
// cookie), clears cookie and session state (invalid or unknown token), leaves
// everything untouched (inside the update window), or rotates the token,
// reusing or replacing the store row depending on which expiration tiers have
// been crossed.
//
// Decode failures and unknown tokens degrade the request to anonymous and
// return nil; only store unavailability is returned as an error, since
// without the store no rotation decision is safe.
func (l *Lifecycle) Update(ctx context.Context, sess SessionSync) error {
	if l == nil {
		return ErrLifecycleNotReady
	}

	cookieToken, ok := sess.DurableToken()
	if !ok || cookieToken == "" {
		_, err := l.issueToken(ctx, sess, "", nil, true, true)
		return err
	}

	payload, err := l.codec.Decode(cookieToken)
	if err != nil {
		l.fraudAttempt(ctx, sess, fmt.Errorf("%w: %v", ErrTokenInvalid, err))
		return nil
	}

	known, err := l.tokenKnown(ctx, cookieToken)
	if err != nil {
		return err
	}
	if !known {
		l.fraudAttempt(ctx, sess, ErrTokenUnknown)
		return nil
	}

	now := l.now().Unix()
	if now < payload.UpdateExpiry {
		l.metricInc(MetricUpdateNoop)
		return nil
	}

	startNewSession := now >= payload.SessionExpiry
	detachUser := now >= payload.AuthExpiry

	if _, contended := l.rotations.LoadOrStore(cookieToken, struct{}{}); contended {
		// Another in-flight request holds the rotation claim; it will write
		// the fresh token. This request keeps the old one.
		l.metricInc(MetricRotationContended)
		return nil
	}
	defer l.rotations.Delete(cookieToken)

	// Re-check under the claim: a rotation that completed between the first
	// lookup and the claim acquisition has already replaced this token, and
	// rotating again would insert a second live row.
	known, err = l.tokenKnown(ctx, cookieToken)
	if err != nil {
		return err
	}
	if !known {
		l.metricInc(MetricRotationContended)
		return nil
	}

	_, err = l.issueToken(ctx, sess, cookieToken, &payload, detachUser, startNewSession)
	return err
}

// issueToken signs a fresh payload and writes the resulting record, reusing
// the prior row unless a session boundary was crossed. With no old token it
// synthesizes a brand-new anonymous record from the current request bindings.
// On success the new token is mirrored to both cookie and session cache.
func (l *Lifecycle) issueToken(ctx context.Context, sess SessionSync, oldToken string, oldPayload *token.Payload, clearUser, newSession bool) (TokenRecord, error) {
	address := clientAddressFromContext(ctx)
	userAgent := userAgentFromContext(ctx)

	payload := token.Payload{}
	if oldPayload != nil {
		// Fingerprints are carried over from the old payload, not recomputed:
		// the binding names the client the token was first issued to.
		payload.AddressHash = oldPayload.AddressHash
		payload.AgentHash = oldPayload.AgentHash
	} else {
		if address == "" || userAgent == "" {
			return TokenRecord{}, ErrNoClientBinding
		}
		payload.AddressHash = fingerprint.Hash(address)
		payload.AgentHash = fingerprint.Hash(userAgent)
	}
	if payload.AddressHash == "" || payload.AgentHash == "" {
		return TokenRecord{}, ErrNoClientBinding
	}

	now := l.now()
	payload.UpdateExpiry = now.Add(l.config.Token.UpdateExpiration).Unix()
	payload.SessionExpiry = now.Add(l.config.Token.SessionExpiration).Unix()
	payload.AuthExpiry = now.Add(l.config.Token.AuthExpiration).Unix()
	payload.VisitorExpiry = now.Add(l.config.Token.VisitorExpiration).Unix()

	signed, err := l.codec.Encode(payload)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("encoding token: %w", err)
	}

	prev, err := l.neededSession(ctx, oldToken)
	if err != nil {
		return TokenRecord{}, err
	}

	record := TokenRecord{
		Token:       signed,
		VisitorHash: fingerprint.Visitor(address, userAgent),
		Address:     address,
		UserAgent:   userAgent,
		IssuedAt:    now,
		ExpiresAt:   now.Add(l.config.Token.VisitorExpiration),
	}

	hadUser := prev != nil && prev.UserID != ""
	if !clearUser && hadUser {
		record.UserID = prev.UserID
	}

	if prev != nil && !newSession {
		record.ID = prev.ID
		mutation := TokenMutation{
			Token:     &record.Token,
			UserID:    &record.UserID,
			IssuedAt:  &record.IssuedAt,
			ExpiresAt: &record.ExpiresAt,
		}
		if err := l.store.Update(ctx, prev.ID, mutation); err != nil {
			return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		l.metricInc(MetricTokenRotatedInPlace)
		l.emitAudit(ctx, auditEventTokenRotated, true, &record, nil, nil)
	} else {
		record, err = l.store.Insert(ctx, record)
		if err != nil {
			return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if oldToken == "" {
			l.metricInc(MetricTokenCreated)
			l.emitAudit(ctx, auditEventTokenCreated, true, &record, nil, nil)
		} else {
			l.metricInc(MetricSessionStarted)
			l.emitAudit(ctx, auditEventSessionStart, true, &record, nil, nil)
		}
	}

	if clearUser && hadUser {
		l.metricInc(MetricUserDetached)
		l.emitAudit(ctx, auditEventUserDetached, true, &record, nil, map[string]string{
			"detached_user_id": prev.UserID,
		})
	}

	if record.UserID == "" {
		sess.ClearIdentity()
	}

	sess.SetDurableToken(record.Token, l.config.Token.VisitorExpiration)
	sess.SetToken(record.Token)

	return record, nil
}

// fraudAttempt handles a token that is well-formed-but-unknown or fails
// verification: the durable cookie, the volatile token, and the identity
// snapshot are cleared and the request proceeds as anonymous. The stale store
// row, if any, is left for the store's own expiry sweep.
func (l *Lifecycle) fraudAttempt(ctx context.Context, sess SessionSync, cause error) {
	sess.ClearDurableToken()
	sess.ClearToken()
	sess.ClearIdentity()

	l.metricInc(MetricFraudDetected)
	l.emitAudit(ctx, auditEventFraudDetected, false, nil, cause, map[string]string{
		"address": clientAddressFromContext(ctx),
	})
}
