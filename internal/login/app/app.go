package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medportal/phoneauth/internal/login/domain"
	"github.com/medportal/phoneauth/internal/login/store"
	"github.com/medportal/phoneauth/internal/login/store/drivers/redis"
	"github.com/medportal/phoneauth/internal/login/store/drivers/sqlite"
	"github.com/medportal/phoneauth/pkg/authsdk"
	"github.com/medportal/phoneauth/pkg/cryptox"
	"github.com/medportal/phoneauth/pkg/httpx"
	"github.com/medportal/phoneauth/pkg/idx"
	"github.com/medportal/phoneauth/pkg/otpflow"
	"github.com/medportal/phoneauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	clientInfoHeader = "X-Client-Info"
)

// ErrNotSignedIn is returned by WhoAmI and Logout when no usable session is
// cached for the profile.
var ErrNotSignedIn = errors.New("not signed in")

// Application wires the login flow to its transport, session cache and
// attempts journal.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	client   *authsdk.SDKClient
	provider *authsdk.Provider

	now func() time.Time
}

// New creates an Application, opening the configured cache backend.
func New(ctx context.Context, cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "phoneauth",
		Version: BuildVersion,
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	db, err := openStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	app, err := newApplication(ctx, cfg, logger, db, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// newApplication builds an Application on an already opened store. base is
// the innermost transport; nil means http.DefaultTransport.
func newApplication(ctx context.Context, cfg Config, logger *slog.Logger, db store.Store, base http.RoundTripper) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: logger,
		db:     db,
		now:    time.Now,
	}

	if err := db.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("failed to apply cache migrations: %w", err)
	}
	app.housekeeping(ctx)

	app.client = authsdk.NewSDKClient(cfg.AuthorityURL, cfg.IdentityURL)
	app.client.APIKey = cfg.APIKey
	app.client.HTTPClient = &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: app.transport(base),
	}

	cache := store.NewSessionCacheAdapter(db.Sessions(), cfg.Profile, cryptox.NewSealer(cfg.Cache.Passphrase))
	app.provider = authsdk.NewProvider(app.client, cache)
	return app, nil
}

func openStore(ctx context.Context, cfg CacheConfig) (store.Store, error) {
	switch cfg.Driver {
	case CacheDriverRedis:
		db, err := redis.NewStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		return db, nil
	default:
		dsn := cfg.Path
		if dsn != ":memory:" {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
		}
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return db, nil
	}
}

// transport paces and logs every outbound call.
func (app *Application) transport(base http.RoundTripper) http.RoundTripper {
	strict, moderate := rateLimitKeys(app.cfg.AuthorityURL, app.cfg.IdentityURL)
	return httpx.Chain(base,
		httpx.RequestID(),
		httpx.Header(clientInfoHeader, "phoneauth/"+BuildVersion),
		slogx.Transport(app.logger),
		httpx.RateLimit(httpx.StrictLimit, strict),
		httpx.RateLimit(httpx.ModerateLimit, moderate),
	)
}

// rateLimitKeys buckets the authority's OTP endpoints under the strict
// per-endpoint budget and the identity provider under the moderate per-host
// one. The identity provider often lives on the authority's host, so its
// prefix wins.
func rateLimitKeys(authorityURL, identityURL string) (strict, moderate httpx.KeyExtractor) {
	inAuthority := under(authorityURL)
	inIdentity := under(identityURL)

	strict = func(r *http.Request) string {
		if inIdentity(r) || !inAuthority(r) {
			return ""
		}
		return httpx.EndpointKeyExtractor(r)
	}
	moderate = func(r *http.Request) string {
		if !inIdentity(r) {
			return ""
		}
		return httpx.HostKeyExtractor(r)
	}
	return strict, moderate
}

func under(base string) func(*http.Request) bool {
	base = strings.TrimSuffix(base, "/")
	return func(r *http.Request) bool {
		u := r.URL.Scheme + "://" + r.URL.Host + r.URL.Path
		return u == base || strings.HasPrefix(u, base+"/")
	}
}

// housekeeping prunes journal entries past the retention window. Failures
// only cost disk space, so they are logged and ignored.
func (app *Application) housekeeping(ctx context.Context) {
	cutoff := app.now().Add(-app.cfg.Cache.Retention)
	n, err := app.db.Attempts().DeleteAttemptsBefore(ctx, cutoff)
	if err != nil {
		app.logger.Warn("prune login attempts failed", "error", err)
		return
	}
	if n > 0 {
		app.logger.Info("pruned login attempts", "count", n, "before", cutoff)
	}
}

// newFlow builds a login flow bound to this application's transport and
// identity provider.
func (app *Application) newFlow(onResendAvailable func()) *otpflow.Flow {
	return otpflow.New(otpflow.Config{
		Authority:         app.client,
		Provider:          app.provider,
		Window:            app.cfg.ResendWindow,
		Now:               app.now,
		OnResendAvailable: onResendAvailable,
	})
}

// Resume restores the cached session of the profile.
func (app *Application) Resume(ctx context.Context) (otpflow.User, error) {
	ctx = slogx.WithContext(ctx, app.logger.With("profile", app.cfg.Profile))

	user, err := app.provider.Resume(ctx)
	if errors.Is(err, authsdk.ErrNoSession) {
		return otpflow.User{}, ErrNotSignedIn
	}
	return user, err
}

// WhoAmI resumes the cached session, refreshing it when close to expiry, and
// returns its user.
func (app *Application) WhoAmI(ctx context.Context) (otpflow.User, error) {
	return app.Resume(ctx)
}

// Logout revokes the cached session at the identity provider and clears it
// locally.
func (app *Application) Logout(ctx context.Context) error {
	if _, err := app.Resume(ctx); err != nil {
		return err
	}

	ctx = slogx.WithContext(ctx, app.logger.With("profile", app.cfg.Profile))
	if err := app.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// History returns up to limit journal entries, newest first.
func (app *Application) History(ctx context.Context, limit int) ([]domain.Attempt, error) {
	attempts, err := app.db.Attempts().ListAttempts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	return attempts, nil
}

// Close releases the cache backend.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing session cache", "error", err)
		return err
	}
	return nil
}

// recordAttempt journals one outcome of the flow. A journal failure never
// fails the login.
func (app *Application) recordAttempt(ctx context.Context, phone, sessionID string, outcome domain.Outcome, err error) {
	at := app.now().UTC()
	a := domain.Attempt{
		ID:        idx.NewAt(at).String(),
		Profile:   app.cfg.Profile,
		Phone:     phone,
		SessionID: sessionID,
		Outcome:   outcome,
		At:        at,
	}
	if err != nil {
		a.ErrorKind = otpflow.KindOf(err).String()
	}

	if err := app.db.Attempts().RecordAttempt(ctx, a); err != nil {
		slogx.FromContext(ctx).Warn("record login attempt failed", "outcome", string(outcome), "error", err)
	}
}
