// Package scopeconfig resolves directory settings through the store, website
// and default scopes, falling back to built-in defaults.
package scopeconfig

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"frameworks/cartographer/internal/scope"
	"frameworks/cartographer/pkg/cache"
	"frameworks/cartographer/pkg/logging"
)

// DefaultScopeID is the scope id stored for default-scope rows.
const DefaultScopeID = "0"

// ErrUnknownStore is returned when a store scope id matches no store.
var ErrUnknownStore = errors.New("unknown store")

// ValueStore reads a single scoped row.
type ValueStore interface {
	Value(ctx context.Context, typ scope.Type, scopeID, path string) (string, bool, error)
}

// StoreResolver maps a store scope id to its store.
type StoreResolver interface {
	GetStoreByID(ctx context.Context, id int64) (*scope.Store, error)
	GetStoreByCode(ctx context.Context, code string) (*scope.Store, error)
}

type Options struct {
	// MemoTTL enables an in-process memo of resolved values when positive.
	MemoTTL        time.Duration
	MemoMaxEntries int
	Metrics        cache.MetricsHooks
}

type resolved struct {
	value string
	ok    bool
}

// Reader implements directory.ScopeConfig.
type Reader struct {
	values   ValueStore
	stores   StoreResolver
	defaults Defaults
	memo     *cache.Cache[resolved]
	logger   logging.Logger
}

func NewReader(values ValueStore, stores StoreResolver, defaults Defaults, opts Options, logger logging.Logger) *Reader {
	r := &Reader{
		values:   values,
		stores:   stores,
		defaults: defaults,
		logger:   logger,
	}
	if opts.MemoTTL > 0 {
		r.memo = cache.New[resolved](cache.Options{
			TTL:        opts.MemoTTL,
			MaxEntries: opts.MemoMaxEntries,
		}, opts.Metrics)
	}
	return r
}

// GetValue returns the value of path as seen from the given scope.
func (r *Reader) GetValue(ctx context.Context, path string, typ scope.Type, scopeID string) (string, bool, error) {
	if r.memo == nil {
		res, err := r.resolve(ctx, path, typ, scopeID)
		return res.value, res.ok, err
	}
	key := string(typ) + "|" + scopeID + "|" + path
	res, _, err := r.memo.Get(ctx, key, func(ctx context.Context, _ string) (resolved, bool, error) {
		res, err := r.resolve(ctx, path, typ, scopeID)
		if err != nil {
			return resolved{}, false, err
		}
		return res, true, nil
	})
	return res.value, res.ok, err
}

// IsSetFlag reports whether path holds a truthy value. Absent, empty, "0" and
// "false" are false.
func (r *Reader) IsSetFlag(ctx context.Context, path string, typ scope.Type, scopeID string) (bool, error) {
	v, ok, err := r.GetValue(ctx, path, typ, scopeID)
	if err != nil || !ok {
		return false, err
	}
	return IsTruthy(v), nil
}

// Invalidate drops memoized values, if any.
func (r *Reader) Invalidate() {
	if r.memo != nil {
		r.memo.Clear()
	}
}

// IsTruthy applies the flag rules of IsSetFlag to a raw value.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false":
		return false
	}
	return true
}

func (r *Reader) resolve(ctx context.Context, path string, typ scope.Type, scopeID string) (resolved, error) {
	var chain []step
	switch typ {
	case scope.StoreScope:
		store, err := r.store(ctx, scopeID)
		if err != nil {
			return resolved{}, err
		}
		chain = []step{
			{scope.StoreScope, store.ScopeID()},
			{scope.WebsiteScope, strconv.FormatInt(store.WebsiteID, 10)},
			{scope.DefaultScope, DefaultScopeID},
		}
	case scope.WebsiteScope:
		chain = []step{{scope.WebsiteScope, scopeID}, {scope.DefaultScope, DefaultScopeID}}
	default:
		chain = []step{{scope.DefaultScope, DefaultScopeID}}
	}

	for _, s := range chain {
		v, ok, err := r.values.Value(ctx, s.typ, s.id, path)
		if err != nil {
			return resolved{}, fmt.Errorf("read %s at %s/%s: %w", path, s.typ, s.id, err)
		}
		if ok {
			return resolved{value: v, ok: true}, nil
		}
	}
	if v, ok := r.defaults[path]; ok {
		return resolved{value: v, ok: true}, nil
	}
	if r.logger != nil {
		r.logger.WithFields(logging.Fields{
			"path":     path,
			"scope":    typ,
			"scope_id": scopeID,
		}).Debug("Config path has no value")
	}
	return resolved{}, nil
}

type step struct {
	typ scope.Type
	id  string
}

// store accepts either a numeric store id or a store code.
func (r *Reader) store(ctx context.Context, scopeID string) (*scope.Store, error) {
	var (
		store *scope.Store
		err   error
	)
	if id, perr := strconv.ParseInt(scopeID, 10, 64); perr == nil {
		store, err = r.stores.GetStoreByID(ctx, id)
	} else {
		store, err = r.stores.GetStoreByCode(ctx, scopeID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve store %q: %w", scopeID, err)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, scopeID)
	}
	return store, nil
}
