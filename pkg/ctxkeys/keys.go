// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages.
package ctxkeys

import "context"

// Key is a typed context key to prevent collisions.
type Key string

const (
	KeyRequestID Key = "request_id"
	KeyClientIP  Key = "client_ip"
	KeyStoreCode Key = "store_code"
)

// WithStoreCode returns a child context carrying the selected store code.
func WithStoreCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, KeyStoreCode, code)
}

// GetStoreCode extracts store_code from context.
func GetStoreCode(ctx context.Context) string {
	if v, ok := ctx.Value(KeyStoreCode).(string); ok {
		return v
	}
	return ""
}

// WithClientIP returns a child context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, KeyClientIP, ip)
}

// GetClientIP extracts client_ip from context.
func GetClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(KeyClientIP).(string); ok {
		return v
	}
	return ""
}

// GetRequestID extracts request_id from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyRequestID).(string); ok {
		return v
	}
	return ""
}
