package session

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/client/bridge"
	"github.com/kiedeng/wecom-integration/internal/client/dialog"
	"github.com/kiedeng/wecom-integration/internal/client/env"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// ErrDisposed is returned by operations invoked after the session was torn
// down.
var ErrDisposed = errors.New("session: disposed")

// Page abstracts the hosting document: its location, identity, and the
// ability to navigate away (which unloads the page).
type Page interface {
	URL() string
	UserAgent() string
	Navigate(url string)
}

// Gateway is the backend transport the session depends on.
type Gateway interface {
	SetAuthCode(code string)
	Config(ctx context.Context, pageURL string) (types.BridgeConfig, error)
	OAuthURL(ctx context.Context, redirectURI, state string) (types.OAuthGrant, error)
	UserInfo(ctx context.Context) (types.UserInfo, error)
}

// Bridge is the vendor bridge surface the session drives.
type Bridge interface {
	Configure(ctx context.Context, cfg types.BridgeConfig) error
	State() bridge.State
	ShareToChat(ctx context.Context, req bridge.ShareRequest) error
	ShareToTimeline(ctx context.Context, req bridge.ShareRequest) error
	CloseWindow() error
}

// State is the consolidated snapshot published to consumers.
//
// Invariants: ShowHostRequired is true iff classification ran and the host
// is not the target client; UserInfo is non-nil only while Bridge is Ready
// and a fetch has succeeded.
type State struct {
	Host             env.Classification `json:"host"`
	Bridge           bridge.State       `json:"bridge"`
	UserInfo         *types.UserInfo    `json:"userInfo,omitempty"`
	Loading          bool               `json:"loading"`
	Err              string             `json:"error,omitempty"`
	ShowHostRequired bool               `json:"showHostRequired"`
	AuthCode         string             `json:"authCode,omitempty"`
}

// Session is the per-mount integration state machine.
type Session struct {
	page       Page
	gw         Gateway
	bridge     Bridge
	suppressor *dialog.Suppressor
	log        *logging.Logger

	mu       sync.Mutex
	st       State
	mounted  bool
	disposed bool
	dialogs  *dialog.Handle
	subs     map[int]func(State)
	nextSub  int
}

// New creates a session. All collaborators are injected; nothing global is
// touched until Mount.
func New(page Page, gw Gateway, b Bridge, sup *dialog.Suppressor, log *logging.Logger) *Session {
	if log == nil {
		log = logging.NewNop()
	}
	return &Session{
		page:       page,
		gw:         gw,
		bridge:     b,
		suppressor: sup,
		log:        log,
		subs:       make(map[int]func(State)),
	}
}

// State returns a copy of the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Subscribe registers fn for every state change and returns a cancel
// function. fn receives copies; mutating them has no effect.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Mount runs the automatic progression: classification, dialog suppression,
// then either the handshake (code present) or the authorization redirect
// (code absent). Repeat mounts are no-ops, with no duplicate network calls.
func (s *Session) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.disposed || s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true

	host := env.Classify(s.page.UserAgent())
	s.st.Host = host
	s.st.ShowHostRequired = host != env.TargetClient
	if s.suppressor != nil {
		s.dialogs = s.suppressor.Install()
	}
	s.mu.Unlock()
	s.publish()

	if host != env.TargetClient {
		s.log.Info("host mismatch, integration halted",
			zap.String("classified", host.String()))
		return
	}

	code := queryParam(s.page.URL(), "code")
	if code == "" {
		s.redirectForAuth(ctx)
		return
	}

	s.SetAuthCode(code)
	s.configure(ctx)
}

// redirectForAuth asks the backend for an authorization URL and navigates to
// it. Navigation unloads the page; this is a deliberate exit, not a
// recoverable state. Failure to obtain the URL blocks the redirect and is
// surfaced.
func (s *Session) redirectForAuth(ctx context.Context) {
	grant, err := s.gw.OAuthURL(ctx, "", "")
	if err != nil || grant.OAuthURL == "" {
		s.log.Error("failed to obtain authorization url", zap.Error(err))
		s.update(func(st *State) {
			st.Err = "failed to obtain authorization link"
		})
		return
	}
	s.log.Info("redirecting for authorization")
	s.page.Navigate(grant.OAuthURL)
}

// configure runs the signed handshake for the current page. Any failure
// (canonicalization, the backend config call, or the vendor handshake)
// degrades silently: the bridge is marked Failed, nothing reaches the
// user-facing error, and the rest of the page stays usable.
func (s *Session) configure(ctx context.Context) {
	canonical, err := types.CanonicalURL(s.page.URL())
	if err != nil {
		s.degrade("page url not canonicalizable", err)
		return
	}

	s.update(func(st *State) {
		st.Loading = true
		st.Bridge = bridge.Configuring
	})

	cfg, err := s.gw.Config(ctx, canonical)
	if err != nil {
		s.degrade("signed config unavailable", err)
		return
	}
	if err := s.bridge.Configure(ctx, cfg); err != nil {
		s.degrade("bridge handshake rejected", err)
		return
	}

	s.update(func(st *State) {
		st.Loading = false
		st.Bridge = s.bridge.State()
	})

	// Profile data loads eagerly after a successful handshake; later
	// refreshes are explicit caller actions.
	_ = s.FetchUserInfo(ctx)
}

// degrade records a handshake failure for diagnostics without surfacing it.
func (s *Session) degrade(reason string, err error) {
	s.log.Warn("integration degraded: "+reason, zap.Error(err))
	s.update(func(st *State) {
		st.Loading = false
		st.Bridge = bridge.Failed
	})
}

// FetchUserInfo loads the member profile. Requires a ready bridge; callable
// repeatedly (e.g. a refresh control). Each call owns its loading/error
// sub-state; concurrent calls are the caller's to serialize.
func (s *Session) FetchUserInfo(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.st.Bridge != bridge.Ready {
		s.mu.Unlock()
		return bridge.ErrNotReady
	}
	s.st.Loading = true
	s.st.Err = ""
	s.mu.Unlock()
	s.publish()

	info, err := s.gw.UserInfo(ctx)

	applied := s.update(func(st *State) {
		st.Loading = false
		if err != nil {
			st.Err = "failed to fetch user info"
			return
		}
		st.UserInfo = &info
	})
	if !applied {
		return ErrDisposed
	}
	if err != nil {
		s.log.Warn("user info fetch failed", zap.Error(err))
	}
	return err
}

// ShareToChat forwards to the bridge once ready.
func (s *Session) ShareToChat(ctx context.Context, req bridge.ShareRequest) error {
	return s.bridge.ShareToChat(ctx, req)
}

// ShareToTimeline forwards to the bridge once ready.
func (s *Session) ShareToTimeline(ctx context.Context, req bridge.ShareRequest) error {
	return s.bridge.ShareToTimeline(ctx, req)
}

// CloseWindow asks the host to close the page.
func (s *Session) CloseWindow() error {
	return s.bridge.CloseWindow()
}

// SetAuthCode stores the authorization code and arms the gateway's
// credential header.
func (s *Session) SetAuthCode(code string) {
	s.gw.SetAuthCode(code)
	s.update(func(st *State) {
		st.AuthCode = code
	})
}

// SetShowHostRequired overrides the host-required flag. Clearing it lets the
// caller retry rendering; classification does not re-run, since the host
// cannot change without a reload.
func (s *Session) SetShowHostRequired(show bool) {
	s.update(func(st *State) {
		st.ShowHostRequired = show
	})
}

// ClearError clears the user-facing error.
func (s *Session) ClearError() {
	s.update(func(st *State) {
		st.Err = ""
	})
}

// Dispose tears the session down: the dialog bindings are restored whatever
// state the machine was in, and no in-flight completion may mutate state
// afterwards.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	handle := s.dialogs
	s.dialogs = nil
	s.subs = make(map[int]func(State))
	s.mu.Unlock()

	if handle != nil {
		handle.Dispose()
	}
}

// update applies fn to the state under lock and publishes the new snapshot.
// It reports whether the mutation was applied; disposed sessions apply
// nothing.
func (s *Session) update(fn func(*State)) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	fn(&s.st)
	s.mu.Unlock()
	s.publish()
	return true
}

// publish fans the current snapshot out to subscribers, outside the lock.
func (s *Session) publish() {
	s.mu.Lock()
	snapshot := s.st
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// queryParam extracts a single query parameter from a raw URL.
func queryParam(raw, name string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}
