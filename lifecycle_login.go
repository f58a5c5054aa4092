package tierauth

import (
	"context"
	"fmt"
)

// Login binds the given user to the active session row: the most recent
// non-expired record matching the current cookie token and the client's
// address and user agent. On success the user's directory record is cached as
// the session identity snapshot. When no matching row exists, Login succeeds
// without effect; callers must not assume a session row always exists at
// login time.
func (l *Lifecycle) Login(ctx context.Context, sess SessionSync, userID string) error {
	if l == nil {
		return ErrLifecycleNotReady
	}

	cookieToken, _ := sess.DurableToken()
	record, err := l.neededSession(ctx, cookieToken)
	if err != nil {
		return err
	}
	if record == nil {
		l.metricInc(MetricLoginNoSession)
		return nil
	}

	if err := l.store.Update(ctx, record.ID, TokenMutation{UserID: &userID}); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	record.UserID = userID

	if l.directory != nil {
		user, err := l.directory.FindByField(ctx, "id", userID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUserDirectoryUnavailable, err)
		}
		if user != nil {
			sess.SetIdentity(Identity{
				UserID: user.ID,
				Email:  user.Email,
				Name:   user.Name,
			})
		}
	}

	l.metricInc(MetricLoginSuccess)
	l.emitAudit(ctx, auditEventLogin, true, record, nil, nil)
	return nil
}

// Logout marks the active session row as ended and expired, so lookups by its
// token fail immediately, and clears the identity snapshot together with both
// token mirrors. The cookie is cleared here as well, matching the fraud path;
// the next Update call issues a fresh anonymous token.
func (l *Lifecycle) Logout(ctx context.Context, sess SessionSync) error {
	if l == nil {
		return ErrLifecycleNotReady
	}

	cookieToken, ok := sess.DurableToken()
	if ok && cookieToken != "" {
		record, err := l.neededSession(ctx, cookieToken)
		if err != nil {
			return err
		}
		if record != nil {
			now := l.now()
			if err := l.store.Update(ctx, record.ID, TokenMutation{
				IssuedAt:  &now,
				ExpiresAt: &now,
			}); err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			l.emitAudit(ctx, auditEventLogout, true, record, nil, nil)
		}
	}

	sess.ClearIdentity()
	sess.ClearToken()
	sess.ClearDurableToken()

	l.metricInc(MetricLogout)
	return nil
}
