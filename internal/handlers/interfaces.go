package handlers

import (
	"context"

	"frameworks/cartographer/internal/directory"
)

// HelperFactory builds a directory helper for one request. Helpers hold a
// lazily loaded country collection and must not be shared across requests.
type HelperFactory func(ctx context.Context) (*directory.Helper, error)

// CountryLocator maps a client IP to an ISO country code, "" when unknown.
type CountryLocator interface {
	CountryCode(ctx context.Context, ip string) string
}
