// Package scope defines configuration scopes and the store context they
// resolve against.
package scope

import "strconv"

// Type is a configuration scope dimension.
type Type string

const (
	DefaultScope Type = "default"
	WebsiteScope Type = "website"
	StoreScope   Type = "store"
)

// Column returns the value stored in core_config_data.scope for t.
func (t Type) Column() string {
	switch t {
	case WebsiteScope:
		return "websites"
	case StoreScope:
		return "stores"
	default:
		return "default"
	}
}

// Store is a store view: the narrowest configuration scope.
type Store struct {
	ID        int64
	Code      string
	WebsiteID int64
	Name      string
	IsActive  bool
}

// ScopeID is the store id in the string form configuration lookups take.
func (s *Store) ScopeID() string {
	if s == nil {
		return ""
	}
	return strconv.FormatInt(s.ID, 10)
}
