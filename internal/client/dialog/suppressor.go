// Package dialog suppresses host-injected blocking dialogs.
//
// The WeCom host fires vendor alerts and confirms at unpredictable moments
// (signature drift, capability denials). A blocking dialog freezes the page,
// so while a suppressor is installed the alert and confirm bindings are
// rebound to a log sink (confirm answers false synchronously) and the
// vendor bridge's error callback is replaced with a logging-only handler.
//
// The bindings are process-wide mutable state, so installation is modeled as
// a scoped resource: Install snapshots the current bindings and the returned
// Handle restores them on Dispose. Installs nest; only the last Dispose
// restores the true originals.
package dialog

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
)

// Bindings holds the host's blocking dialog entry points. The host owns
// exactly one instance per page; the suppressor swaps its members in place.
type Bindings struct {
	Alert   func(message string)
	Confirm func(message string) bool
}

// ErrorRebinder is implemented by the vendor bridge adapter. It lets the
// suppressor replace the bridge's global error callback with a non-blocking
// handler.
type ErrorRebinder interface {
	RebindError(handler func(message string))
}

// Suppressor rebinds the dialog primitives for the lifetime of its handles.
type Suppressor struct {
	bindings *Bindings
	rebinder ErrorRebinder
	log      *logging.Logger

	mu           sync.Mutex
	depth        int
	savedAlert   func(string)
	savedConfirm func(string) bool
}

// Handle restores the prior dialog behavior when disposed.
type Handle struct {
	s    *Suppressor
	once sync.Once
}

// New creates a suppressor over the host's dialog bindings. rebinder may be
// nil when no vendor bridge exists yet.
func New(bindings *Bindings, rebinder ErrorRebinder, log *logging.Logger) *Suppressor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Suppressor{bindings: bindings, rebinder: rebinder, log: log}
}

// Install swaps the dialog bindings for logging-only replacements and returns
// a handle that undoes the swap. Nested installs are safe: the snapshot of
// the true originals is taken on the first install only, and restored by the
// last dispose.
func (s *Suppressor) Install() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.depth == 0 {
		s.savedAlert = s.bindings.Alert
		s.savedConfirm = s.bindings.Confirm

		s.bindings.Alert = func(message string) {
			s.log.Info("suppressed alert", zap.String("message", message))
		}
		s.bindings.Confirm = func(message string) bool {
			s.log.Info("suppressed confirm", zap.String("message", message))
			return false
		}
		if s.rebinder != nil {
			s.rebinder.RebindError(func(message string) {
				s.log.Warn("vendor bridge error", zap.String("message", message))
			})
		}
	}
	s.depth++

	return &Handle{s: s}
}

// Installed reports whether a suppression is currently active.
func (s *Suppressor) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth > 0
}

// Dispose restores the dialog bindings captured at install time. Safe to
// call more than once; only the first call counts.
func (h *Handle) Dispose() {
	h.once.Do(func() {
		s := h.s
		s.mu.Lock()
		defer s.mu.Unlock()

		s.depth--
		if s.depth > 0 {
			return
		}
		s.depth = 0
		s.bindings.Alert = s.savedAlert
		s.bindings.Confirm = s.savedConfirm
		s.savedAlert = nil
		s.savedConfirm = nil
		if s.rebinder != nil {
			s.rebinder.RebindError(nil)
		}
	})
}
