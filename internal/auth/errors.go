package auth

import "errors"

var (
	// ErrUnsupportedProvider is returned for a provider that is unknown or
	// not configured in this deployment.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidState is returned when the OAuth state round-trip fails:
	// missing, malformed, or not matching the saved cookie value.
	ErrInvalidState = errors.New("invalid state")

	// ErrUpstream marks a failure of the provider itself: token exchange,
	// profile fetch, network faults, or malformed provider responses.
	ErrUpstream = errors.New("upstream provider error")

	// ErrUnauthenticated is returned when an operation requires a session and
	// none was presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidSession is returned when a presented session token does not
	// resolve to a stored session.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionExpired is returned when a session exists but its expiry has
	// passed. Callers treat it the same as ErrInvalidSession.
	ErrSessionExpired = errors.New("session expired")

	// ErrAccountAlreadyLinked is returned in link mode when the external
	// identity is already owned by a different user.
	ErrAccountAlreadyLinked = errors.New("social account already linked to another user")

	// ErrCannotRemoveLastAccount guards disconnect: a user must always retain
	// at least one login method.
	ErrCannotRemoveLastAccount = errors.New("cannot disconnect the last linked account")

	// ErrDuplicateAccount is reported by repositories when an account insert
	// hits the (provider, provider_account_id) unique constraint.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrUserNotFound is reported when a referenced user row is absent.
	ErrUserNotFound = errors.New("user not found")
)
