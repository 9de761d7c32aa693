// Package session owns the dashboard identity: who is signed in, their role and
// dealer, and the single active section. Every reader and writer of the session
// record goes through Provider.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("session")

const defaultFetchTimeout = 5 * time.Second

// MetricsRecorder is the subset of observability.Metrics the provider reports to.
type MetricsRecorder interface {
	IncrSessionFallback(reason string)
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// errSessionMoved aborts a CAS write when the record now belongs to someone else.
var errSessionMoved = errors.New("session now belongs to another user")

// Provider reads and writes session records.
type Provider struct {
	store        port.SessionStore
	profiles     port.ProfileFetcher
	cache        port.Cache[*domain.UserProfile]
	metrics      MetricsRecorder
	logger       *zap.Logger
	group        singleflight.Group
	fetchTimeout time.Duration
	newID        func() string
}

// Option configures a Provider.
type Option func(*Provider)

// WithFetchTimeout bounds a single profile fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Provider) { p.fetchTimeout = d }
}

// WithIDGenerator replaces uuid.NewString, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(p *Provider) { p.newID = fn }
}

// NewProvider wires a provider. cache and metrics may be nil.
func NewProvider(
	store port.SessionStore,
	profiles port.ProfileFetcher,
	cache port.Cache[*domain.UserProfile],
	metrics MetricsRecorder,
	logger *zap.Logger,
	opts ...Option,
) *Provider {
	p := &Provider{
		store:        store,
		profiles:     profiles,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init starts a session for user and returns its id.
func (p *Provider) Init(ctx context.Context, user domain.User) (string, domain.User, error) {
	ctx, span := tracer.Start(ctx, "Session.Init")
	defer span.End()

	if err := user.Validate(); err != nil {
		return "", domain.Guest(), err
	}

	sid := p.newID()
	rec := &domain.SessionRecord{User: user, Version: 1}
	if err := p.store.Set(ctx, sid, rec); err != nil {
		return "", domain.Guest(), err
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.String("user.role", user.Role.String()))
	p.logger.Info("session started",
		zap.Int64("user_id", user.ID),
		zap.String("role", user.Role.String()),
	)
	return sid, user, nil
}

// Current returns the stored identity and active section, or a guest snapshot
// when the session is missing or unreadable. It never fails.
func (p *Provider) Current(ctx context.Context, sid string) domain.Me {
	ctx, span := tracer.Start(ctx, "Session.Current")
	defer span.End()

	if sid == "" {
		return domain.Me{User: domain.Guest()}
	}

	rec, err := p.store.Get(ctx, sid)
	if err == nil {
		return domain.Me{User: rec.User, ActiveSection: rec.ActiveSection}
	}

	var notFound *domain.ErrNotFound
	var corrupt *domain.ErrCorruptSession
	switch {
	case errors.As(err, &notFound):
		p.fallback("missing")
	case errors.As(err, &corrupt):
		p.fallback("corrupt")
		p.logger.Warn("session: discarding unreadable record", zap.String("sid", sid), zap.Error(err))
		if clearErr := p.store.Clear(ctx, sid); clearErr != nil {
			p.logger.Error("session: failed to discard record", zap.String("sid", sid), zap.Error(clearErr))
		}
	default:
		p.fallback("store_error")
		p.logger.Error("session: store read failed", zap.String("sid", sid), zap.Error(err))
	}
	return domain.Me{User: domain.Guest()}
}

// ResolveUser returns the current identity for sid, or a guest.
func (p *Provider) ResolveUser(ctx context.Context, sid string) domain.User {
	return p.Current(ctx, sid).User
}

// SyncProfile fills in what the stored user is missing from the backend profile.
//
// Complete users are returned untouched without a remote call. Concurrent syncs
// for one user share a single fetch. Fetch failures are logged and the
// best-known user is returned with a nil error; a cancelled ctx returns its error
// and writes nothing.
func (p *Provider) SyncProfile(ctx context.Context, sid string, user domain.User) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Session.SyncProfile")
	defer span.End()

	if !user.Incomplete() {
		return user, nil
	}

	profile, fresh, err := p.fetchProfile(ctx, user.ID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.logger.Debug("session: sync abandoned, request gone", zap.Int64("user_id", user.ID))
		return user, ctxErr
	}
	if err != nil {
		p.logger.Warn("session: profile sync failed, keeping cached identity",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		return user, nil
	}
	if profile.ID != 0 && profile.ID != user.ID {
		p.logger.Warn("session: backend returned profile for a different user",
			zap.Int64("user_id", user.ID),
			zap.Int64("profile_id", profile.ID),
		)
		return user, nil
	}

	if !fresh && user.Role.IsValid() {
		// A cached copy may predate a role change on the backend; only a live
		// fetch may override a role the session already holds.
		stale := *profile
		stale.Role = ""
		profile = &stale
	}

	if sid == "" {
		return user.WithProfile(*profile), nil
	}

	rec, err := p.store.Update(ctx, sid, func(cur *domain.SessionRecord) (*domain.SessionRecord, error) {
		if cur.User.ID != user.ID {
			return nil, errSessionMoved
		}
		merged := cur.User.WithProfile(*profile)
		if sameUser(merged, cur.User) {
			return nil, nil
		}
		next := *cur
		next.User = merged
		return &next, nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		switch {
		case errors.As(err, &notFound):
			p.logger.Info("session: cleared during profile sync, result discarded", zap.Int64("user_id", user.ID))
			return domain.Guest(), nil
		case errors.Is(err, errSessionMoved):
			p.logger.Warn("session: record changed owner during sync, result discarded", zap.String("sid", sid))
			return user, nil
		default:
			p.logger.Warn("session: could not persist synced profile", zap.String("sid", sid), zap.Error(err))
			return user.WithProfile(*profile), nil
		}
	}
	return rec.User, nil
}

// fetchProfile consults the cache and otherwise runs one shared backend call per user.
// The shared call is detached from any single caller's cancellation. fresh is
// false when the profile came from the cache.
func (p *Provider) fetchProfile(ctx context.Context, userID int64) (profile *domain.UserProfile, fresh bool, err error) {
	key := strconv.FormatInt(userID, 10)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			p.cacheResult(true)
			return cached, false, nil
		}
		p.cacheResult(false)
	}

	detached := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(detached, p.fetchTimeout)
		defer cancel()

		fetched, err := p.profiles.GetUser(fetchCtx, userID)
		if err != nil {
			return nil, err
		}
		if p.cache != nil {
			p.cache.Set(key, fetched)
		}
		return fetched, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*domain.UserProfile), true, nil
	}
}

// Teardown ends the session. Ending a missing session is a no-op.
func (p *Provider) Teardown(ctx context.Context, sid string) error {
	ctx, span := tracer.Start(ctx, "Session.Teardown")
	defer span.End()

	if sid == "" {
		return nil
	}
	if err := p.store.Clear(ctx, sid); err != nil {
		return err
	}
	p.logger.Info("session ended", zap.String("sid", sid))
	return nil
}

// SelectSection records section as the active tab, replacing any previous one.
// Callers check the navigation gate first.
func (p *Provider) SelectSection(ctx context.Context, sid string, section domain.SectionID) (domain.Me, error) {
	ctx, span := tracer.Start(ctx, "Session.SelectSection")
	defer span.End()

	if sid == "" {
		return domain.Me{User: domain.Guest()}, &domain.ErrUnauthorized{Message: "no active session"}
	}

	rec, err := p.store.Update(ctx, sid, func(cur *domain.SessionRecord) (*domain.SessionRecord, error) {
		if cur.ActiveSection == section {
			return nil, nil
		}
		next := *cur
		next.ActiveSection = section
		return &next, nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return domain.Me{User: domain.Guest()}, &domain.ErrUnauthorized{Message: "session expired"}
		}
		return domain.Me{}, err
	}
	return domain.Me{User: rec.User, ActiveSection: rec.ActiveSection}, nil
}

func (p *Provider) fallback(reason string) {
	if p.metrics != nil {
		p.metrics.IncrSessionFallback(reason)
	}
}

func (p *Provider) cacheResult(hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.IncrCacheHit("profile")
	} else {
		p.metrics.IncrCacheMiss("profile")
	}
}

func sameUser(a, b domain.User) bool {
	if a.ID != b.ID || a.DisplayName != b.DisplayName || a.Email != b.Email ||
		a.Phone != b.Phone || a.Status != b.Status || a.Role != b.Role {
		return false
	}
	if a.DealerID == nil || b.DealerID == nil {
		return a.DealerID == nil && b.DealerID == nil
	}
	return *a.DealerID == *b.DealerID
}
