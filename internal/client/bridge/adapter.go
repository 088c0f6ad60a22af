package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// State tracks the adapter's configuration lifecycle.
type State int

const (
	Unconfigured State = iota
	Configuring
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Configuring:
		return "configuring"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unconfigured"
	}
}

// Adapter owns the single vendor capability object for a page.
type Adapter struct {
	loader Loader
	log    *logging.Logger

	mu         sync.Mutex
	state      State
	vendor     Vendor
	loadErr    error
	loading    chan struct{} // non-nil once acquisition started, closed when done
	configDone chan error    // receives the in-flight configuration outcome
	globalErr  func(message string)
}

// New creates an adapter over the given loader. Exactly one adapter should
// exist per page.
func New(loader Loader, log *logging.Logger) *Adapter {
	if log == nil {
		log = logging.NewNop()
	}
	return &Adapter{loader: loader, log: log}
}

// State returns the current configuration state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RebindError installs a handler for vendor errors raised outside a
// configuration window. Used by the dialog suppressor to keep vendor errors
// off the UI thread.
func (a *Adapter) RebindError(handler func(message string)) {
	a.mu.Lock()
	a.globalErr = handler
	a.mu.Unlock()
}

// Configure runs the signed handshake. A concurrent call while one is in
// flight is rejected immediately; the in-flight call is unaffected. From
// Failed an explicit retry transitions back to Configuring; each retry
// needs a freshly signed payload, so nothing is retried automatically.
func (a *Adapter) Configure(ctx context.Context, cfg types.BridgeConfig) error {
	a.mu.Lock()
	switch a.state {
	case Configuring:
		a.mu.Unlock()
		return ErrConfigureInFlight
	case Ready:
		a.mu.Unlock()
		return nil
	}
	a.state = Configuring
	done := make(chan error, 1)
	a.configDone = done
	a.mu.Unlock()

	vendor, err := a.acquire(ctx)
	if err != nil {
		a.finishConfigure(done, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err))
		return <-done
	}

	vendor.OnReady(func() {
		a.finishConfigure(done, nil)
	})
	vendor.OnError(func(errMsg string) {
		a.handleVendorError(done, errMsg)
	})
	vendor.Config(newConfigRequest(cfg))

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The handshake cannot be aborted; the callback will still settle
		// the state machine when the vendor answers.
		return ctx.Err()
	}
}

// finishConfigure settles the in-flight configuration exactly once.
func (a *Adapter) finishConfigure(done chan error, err error) {
	a.mu.Lock()
	if a.configDone != done {
		// A stale callback from a superseded attempt.
		a.mu.Unlock()
		return
	}
	a.configDone = nil
	if err != nil {
		a.state = Failed
	} else {
		a.state = Ready
	}
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("bridge configuration failed", zap.Error(err))
	} else {
		a.log.Info("bridge configured")
	}
	done <- err
}

// handleVendorError routes a vendor error callback: during configuration it
// rejects the handshake, otherwise it goes to the rebound log-only handler.
func (a *Adapter) handleVendorError(done chan error, errMsg string) {
	a.mu.Lock()
	inFlight := a.configDone == done
	handler := a.globalErr
	a.mu.Unlock()

	if inFlight {
		a.finishConfigure(done, &ConfigError{Message: errMsg})
		return
	}
	if handler != nil {
		handler(errMsg)
		return
	}
	a.log.Warn("vendor bridge error", zap.String("message", errMsg))
}

// acquire resolves the vendor object, loading the script at most once per
// page. Concurrent callers coalesce onto the single in-flight acquisition.
func (a *Adapter) acquire(ctx context.Context) (Vendor, error) {
	a.mu.Lock()
	if a.loading == nil {
		loading := make(chan struct{})
		a.loading = loading
		a.mu.Unlock()

		vendor, err := a.loader.Load(ctx)
		a.mu.Lock()
		a.vendor, a.loadErr = vendor, err
		if err == nil && vendor == nil {
			a.loadErr = fmt.Errorf("loader returned no vendor object")
		}
		close(loading)
		a.mu.Unlock()
	} else {
		loading := a.loading
		a.mu.Unlock()
		select {
		case <-loading:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	return a.vendor, nil
}

// ready returns the vendor object iff configuration has succeeded.
func (a *Adapter) ready() (Vendor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Ready {
		return nil, ErrNotReady
	}
	return a.vendor, nil
}

// ShareToChat opens the share-to-conversation card. Resolves when the user
// confirms, returns ErrShareCancelled when they dismiss it.
func (a *Adapter) ShareToChat(ctx context.Context, req ShareRequest) error {
	vendor, err := a.ready()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	vendor.ShareAppMessage(req,
		func() { done <- nil },
		func() { done <- ErrShareCancelled },
	)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShareToTimeline opens the share-to-timeline card.
func (a *Adapter) ShareToTimeline(ctx context.Context, req ShareRequest) error {
	vendor, err := a.ready()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	vendor.ShareTimeline(req,
		func() { done <- nil },
		func() { done <- ErrShareCancelled },
	)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseWindow asks the host to close the page's window.
func (a *Adapter) CloseWindow() error {
	vendor, err := a.ready()
	if err != nil {
		return err
	}
	vendor.CloseWindow()
	return nil
}

// NetworkType reports the host's current network type.
func (a *Adapter) NetworkType(ctx context.Context) (string, error) {
	vendor, err := a.ready()
	if err != nil {
		return "", err
	}
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	vendor.NetworkType(
		func(networkType string) { done <- result{value: networkType} },
		func(errMsg string) { done <- result{err: fmt.Errorf("bridge: getNetworkType: %s", errMsg)} },
	)
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CheckCapability reports whether the host grants a single named capability.
func (a *Adapter) CheckCapability(ctx context.Context, name string) (bool, error) {
	vendor, err := a.ready()
	if err != nil {
		return false, err
	}
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	vendor.CheckCapabilities([]string{name},
		func(res map[string]bool) { done <- result{ok: res[name]} },
		func(errMsg string) { done <- result{err: fmt.Errorf("bridge: checkJsApi: %s", errMsg)} },
	)
	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
