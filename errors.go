package tierauth

import "errors"

var (
	// ErrKeysNotConfigured is an exported constant or variable used by the session lifecycle engine.
	ErrKeysNotConfigured = errors.New("public or private signing key not configured")
	// ErrExpirationsNotConfigured is an exported constant or variable used by the session lifecycle engine.
	ErrExpirationsNotConfigured = errors.New("expiration tiers not configured")
	// ErrStoreNotConfigured is an exported constant or variable used by the session lifecycle engine.
	ErrStoreNotConfigured = errors.New("token store not configured")
	// ErrLifecycleNotReady is an exported constant or variable used by the session lifecycle engine.
	ErrLifecycleNotReady = errors.New("lifecycle not initialized")
	// ErrBuilderAlreadyUsed is returned when Build is called twice on the same Builder.
	ErrBuilderAlreadyUsed = errors.New("builder already used")
	// ErrStoreUnavailable is an exported constant or variable used by the session lifecycle engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrUserDirectoryUnavailable is an exported constant or variable used by the session lifecycle engine.
	ErrUserDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrTokenInvalid is an exported constant or variable used by the session lifecycle engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenUnknown is returned when a well-formed token has no matching store record.
	ErrTokenUnknown = errors.New("token unknown to store")
	// ErrNoClientBinding is returned when the request context carries no client address or user agent.
	ErrNoClientBinding = errors.New("client address or user agent missing from context")
)
