package brain

import "errors"

var (
	// ErrProfileNotFound aborts a search that names an unknown profile.
	ErrProfileNotFound = errors.New("index profile not found")
	// ErrMissingTenant rejects any request without a tenant id.
	ErrMissingTenant = errors.New("tenant id is required")
	// ErrUnauthenticated rejects secured searches without an actor.
	ErrUnauthenticated = errors.New("authenticated actor required")
	// ErrEpisodeNotFound is returned by direct episode lookups for
	// unknown or non-cluster ids.
	ErrEpisodeNotFound = errors.New("episode not found")
)
