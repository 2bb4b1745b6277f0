package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BITS-DEVSEC/im-client/internal/nav"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
)

const sessionExpiredMsg = "Session expired or server unavailable. Please log in again."

// Refresher keeps the access token alive. Its ticker's lifetime is
// derived from token presence: started when a token is set, cancelled
// when the token clears. Any refresh failure is terminal for the
// session; transient network errors are deliberately not distinguished
// from true expiry here.
type Refresher struct {
	store     *Store
	interval  time.Duration
	margin    time.Duration
	notifier  notify.Notifier
	navigator nav.Navigator
	log       *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(store *Store, interval, margin time.Duration, notifier notify.Notifier, navigator nav.Navigator, log *zap.SugaredLogger) *Refresher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if margin <= 0 {
		margin = 10 * time.Second
	}
	return &Refresher{
		store:     store,
		interval:  interval,
		margin:    margin,
		notifier:  notifier,
		navigator: navigator,
		log:       log,
	}
}

// Start subscribes to token changes and performs the one-time startup
// refresh, unconditionally, to validate or renew whatever session
// state survived the restart.
func (r *Refresher) Start(ctx context.Context) {
	r.store.OnTokenChange(func(token string) {
		if token != "" {
			r.startLoop(ctx)
		} else {
			r.stopLoop()
		}
	})
	r.refresh(ctx)
}

// Stop tears down the ticker loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.stopLoop()
	r.wg.Wait()
}

func (r *Refresher) startLoop(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(loopCtx)
}

func (r *Refresher) stopLoop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	token := r.store.AccessToken()
	if token == "" {
		return
	}
	left, err := tokenLifetime(token)
	if err != nil {
		// Undecodable token: refresh as the safe default.
		r.log.Warnw("token decode failed, refreshing", "err", err)
		r.refresh(ctx)
		return
	}
	if left <= r.margin {
		r.refresh(ctx)
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.store.RefreshAuthToken(ctx); err != nil {
		r.log.Warnw("token refresh failed", "err", err)
		if r.store.clearSession() {
			notify.Failure(r.notifier, sessionExpiredMsg)
			r.navigator.Go(nav.ScreenLogin, nil)
		}
	}
}

// tokenLifetime decodes the token's exp claim without verifying the
// signature; the client holds no key and only needs the expiry.
func tokenLifetime(token string) (time.Duration, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return time.Until(exp.Time), nil
}
