package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klipach/supportchat/contract"
	"github.com/klipach/supportchat/log"
)

type Role string

const (
	Admin Role = "admin"
	User  Role = "user"
)

// ErrNotFound is returned by a Source when no role record exists.
var ErrNotFound = errors.New("role record not found")

// Source reads role records. Records are written out of band.
type Source interface {
	RoleRecord(ctx context.Context, userID string) (*contract.RoleRecord, error)
}

// Cache keeps resolved roles. A miss is ("", false, nil).
type Cache interface {
	Get(ctx context.Context, userID string) (Role, bool, error)
	Set(ctx context.Context, userID string, r Role) error
}

// LookupError wraps a backend failure while reading a role record.
type LookupError struct {
	UserID string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("role lookup for %s: %v", e.UserID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Parse maps a stored value to a Role; anything but "admin" is a user.
func Parse(s string) Role {
	if Role(s) == Admin {
		return Admin
	}
	return User
}

type Resolver struct {
	source Source
	cache  Cache
}

type Option func(*Resolver)

func WithCache(c Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the caller's role. Lookup failures resolve to User.
func (r *Resolver) Resolve(ctx context.Context, userID string) Role {
	role, err := r.Lookup(ctx, userID)
	if err != nil {
		log.LoggerFromContext(ctx).Warn("role lookup failed, treating as user",
			slog.String(log.UserIDLogField, userID),
			slog.String(log.ErrorMsgLogField, err.Error()),
		)
		return User
	}
	return role
}

// Lookup is Resolve with the backend error exposed. A missing record is not an error.
func (r *Resolver) Lookup(ctx context.Context, userID string) (Role, error) {
	if userID == "" {
		return User, nil
	}
	logger := log.LoggerFromContext(ctx)

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("role cache get failed", slog.String(log.ErrorMsgLogField, err.Error()))
		} else if ok {
			return cached, nil
		}
	}

	rec, err := r.source.RoleRecord(ctx, userID)
	var role Role
	switch {
	case errors.Is(err, ErrNotFound):
		role = User
	case err != nil:
		return User, &LookupError{UserID: userID, Err: err}
	default:
		role = Parse(rec.Role)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, role); err != nil {
			logger.Warn("role cache set failed", slog.String(log.ErrorMsgLogField, err.Error()))
		}
	}
	return role, nil
}
