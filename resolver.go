package organizer

import (
	"fmt"
	"path/filepath"
)

// DefaultMaxCollisions bounds the disambiguation counter.
const DefaultMaxCollisions = 10000

// OccupancyFunc reports whether a candidate path is already taken, either
// within the plan being built or on disk.
type OccupancyFunc func(path string) bool

// ResolveCollision returns candidate if it is free, otherwise the first free
// "stem(n)ext" in the same directory for n = 1, 2, ... up to maxAttempts.
// A maxAttempts of zero or less uses DefaultMaxCollisions.
func ResolveCollision(candidate string, occupied OccupancyFunc, maxAttempts int) (string, error) {
	if !occupied(candidate) {
		return candidate, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCollisions
	}

	dir := filepath.Dir(candidate)
	stem, ext := splitName(filepath.Base(candidate))
	for counter := 1; counter <= maxAttempts; counter++ {
		path := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, counter, ext))
		if !occupied(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w after %d attempts", candidate, ErrTooManyCollisions, maxAttempts)
}

// claimSet is a plan-local occupancy set.
type claimSet map[string]struct{}

func (c claimSet) occupied(path string) bool {
	_, ok := c[path]
	return ok
}

func (c claimSet) claim(path string) {
	c[path] = struct{}{}
}
