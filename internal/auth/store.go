package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 30 * time.Second

// Store holds the current Credential for all workers of a job.
//
// Reads never block. Refreshes are coalesced: however many workers ask at
// once, a single grant is in flight and every caller receives its result.
type Store struct {
	identity Identity
	logger   logging.Logger

	current atomic.Pointer[Credential]
	group   singleflight.Group
	grants  atomic.Int64

	// RefreshTimeout bounds one shared refresh, independent of the caller
	// that happened to start it.
	RefreshTimeout time.Duration
}

func NewStore(identity Identity, logger logging.Logger) *Store {
	return &Store{identity: identity, logger: logger, RefreshTimeout: defaultRefreshTimeout}
}

// Current returns the latest credential, or the zero Credential before Login.
func (s *Store) Current() Credential {
	if c := s.current.Load(); c != nil {
		return *c
	}
	return Credential{}
}

// Grants returns how many grants have been sent to the identity endpoint.
func (s *Store) Grants() int64 {
	return s.grants.Load()
}

// Login obtains the initial credential with the password grant.
func (s *Store) Login(ctx context.Context) (Credential, error) {
	return s.shared(ctx, func(ctx context.Context) (Credential, error) {
		s.grants.Add(1)
		c, err := s.identity.PasswordGrant(ctx)
		if err != nil {
			return Credential{}, wrapAuth(err)
		}
		s.current.Store(&c)
		s.logger.Info(ctx, "api login succeeded", "expires_at", c.ExpiresAt)
		return c, nil
	})
}

// Refresh replaces the credential. The refresh grant is tried first when a
// refresh token is held; the password grant is the fallback.
func (s *Store) Refresh(ctx context.Context) (Credential, error) {
	return s.shared(ctx, s.refresh)
}

// RefreshIfStale refreshes only if the credential still carries the access
// token the caller saw rejected. When another worker already replaced it, the
// newer credential is returned without contacting the identity endpoint.
func (s *Store) RefreshIfStale(ctx context.Context, observed string) (Credential, error) {
	if c, ok := s.replaced(observed); ok {
		return c, nil
	}
	return s.shared(ctx, s.refreshUnlessReplaced(observed))
}

// refreshUnlessReplaced checks observed again inside the shared call, so a
// caller arriving just after another refresh finished reuses its result.
func (s *Store) refreshUnlessReplaced(observed string) func(context.Context) (Credential, error) {
	return func(ctx context.Context) (Credential, error) {
		if c, ok := s.replaced(observed); ok {
			return c, nil
		}
		return s.refresh(ctx)
	}
}

func (s *Store) replaced(observed string) (Credential, bool) {
	c := s.Current()
	return c, !c.Empty() && c.AccessToken != observed
}

func (s *Store) refresh(ctx context.Context) (Credential, error) {
	prev := s.Current()

	if prev.RefreshToken != "" {
		s.grants.Add(1)
		c, err := s.identity.RefreshGrant(ctx, prev.RefreshToken)
		if err == nil {
			if c.RefreshToken == "" {
				c.RefreshToken = prev.RefreshToken
			}
			s.current.Store(&c)
			s.logger.Debug(ctx, "api token refreshed", "expires_at", c.ExpiresAt)
			return c, nil
		}
		s.logger.Warn(ctx, "refresh grant failed, falling back to password grant", "error", err)
	}

	s.grants.Add(1)
	c, err := s.identity.PasswordGrant(ctx)
	if err != nil {
		return Credential{}, wrapAuth(err)
	}
	s.current.Store(&c)
	s.logger.Info(ctx, "api credential renewed with password grant", "expires_at", c.ExpiresAt)
	return c, nil
}

// shared runs fn once for all concurrent callers. The shared call is detached
// from any one caller's cancellation; each caller still stops waiting when
// its own context ends.
func (s *Store) shared(ctx context.Context, fn func(context.Context) (Credential, error)) (Credential, error) {
	ch := s.group.DoChan("credential", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.RefreshTimeout)
		defer cancel()
		return fn(rctx)
	})

	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Credential{}, r.Err
		}
		return r.Val.(Credential), nil
	}
}

func wrapAuth(err error) error {
	if errors.Is(err, common.ErrAuth) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrAuth, err)
}
