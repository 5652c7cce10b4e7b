package repository

import "errors"

// ErrPlayerNotTracked is returned for position/aggregate queries
// against a player the registry does not hold. Callers must treat it
// as a contract violation, not an empty result.
var ErrPlayerNotTracked = errors.New("player not tracked")
