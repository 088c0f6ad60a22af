package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

type fakeVendor struct {
	mu      sync.Mutex
	configs []ConfigRequest
	ready   func()
	errCb   func(string)

	autoReady bool
	autoErr   string

	cancelShare bool
	shares      []ShareRequest
	closed      bool
	network     string
	caps        map[string]bool
}

func (f *fakeVendor) Config(req ConfigRequest) {
	f.mu.Lock()
	f.configs = append(f.configs, req)
	ready, errCb := f.ready, f.errCb
	autoReady, autoErr := f.autoReady, f.autoErr
	f.mu.Unlock()

	if autoErr != "" {
		errCb(autoErr)
		return
	}
	if autoReady {
		ready()
	}
}

func (f *fakeVendor) OnReady(fn func()) {
	f.mu.Lock()
	f.ready = fn
	f.mu.Unlock()
}

func (f *fakeVendor) OnError(fn func(string)) {
	f.mu.Lock()
	f.errCb = fn
	f.mu.Unlock()
}

func (f *fakeVendor) ShareAppMessage(req ShareRequest, onSuccess func(), onCancel func()) {
	f.mu.Lock()
	f.shares = append(f.shares, req)
	cancel := f.cancelShare
	f.mu.Unlock()
	if cancel {
		onCancel()
		return
	}
	onSuccess()
}

func (f *fakeVendor) ShareTimeline(req ShareRequest, onSuccess func(), onCancel func()) {
	f.ShareAppMessage(req, onSuccess, onCancel)
}

func (f *fakeVendor) CloseWindow() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeVendor) NetworkType(onSuccess func(string), onFail func(string)) {
	onSuccess(f.network)
}

func (f *fakeVendor) CheckCapabilities(names []string, onSuccess func(map[string]bool), onFail func(string)) {
	res := make(map[string]bool, len(names))
	for _, n := range names {
		res[n] = f.caps[n]
	}
	onSuccess(res)
}

func countingLoader(v Vendor, calls *int) Loader {
	return LoaderFunc(func(ctx context.Context) (Vendor, error) {
		*calls++
		return v, nil
	})
}

func signedConfig() types.BridgeConfig {
	return types.BridgeConfig{
		AppID:     "ww1234567890",
		Timestamp: 1700000000,
		NonceStr:  "n0nceSt4r",
		Signature: "deadbeef",
	}
}

func TestConfigureSuccess(t *testing.T) {
	vendor := &fakeVendor{autoReady: true}
	a := New(countingLoader(vendor, new(int)), nil)

	require.Equal(t, Unconfigured, a.State())
	require.NoError(t, a.Configure(context.Background(), signedConfig()))
	assert.Equal(t, Ready, a.State())

	require.Len(t, vendor.configs, 1)
	req := vendor.configs[0]
	assert.Equal(t, "ww1234567890", req.AppID)
	assert.Equal(t, int64(1700000000), req.Timestamp)
	assert.True(t, req.Beta)
	assert.False(t, req.Debug)
	// The full allow-list rides along: the host grants capabilities at
	// configuration time only.
	assert.Equal(t, CapabilityList(), req.Capabilities)
	assert.Contains(t, req.Capabilities, "closeWindow")
	assert.Contains(t, req.Capabilities, "checkJsApi")
}

func TestConfigureVendorRejection(t *testing.T) {
	vendor := &fakeVendor{autoErr: "invalid signature"}
	a := New(countingLoader(vendor, new(int)), nil)

	err := a.Configure(context.Background(), signedConfig())
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "invalid signature", cfgErr.Message)
	assert.Equal(t, Failed, a.State())
}

func TestConfigureLoaderFailure(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context) (Vendor, error) {
		return nil, errors.New("script blocked")
	})
	a := New(loader, nil)

	err := a.Configure(context.Background(), signedConfig())
	require.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Equal(t, Failed, a.State())
}

func TestConfigureConcurrentRejected(t *testing.T) {
	vendor := &fakeVendor{} // outcome deferred until the test fires ready
	a := New(countingLoader(vendor, new(int)), nil)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- a.Configure(context.Background(), signedConfig())
	}()

	// Wait until the first call is visibly in flight.
	require.Eventually(t, func() bool {
		return a.State() == Configuring
	}, time.Second, time.Millisecond)

	// Second concurrent call rejects immediately, without queueing.
	err := a.Configure(context.Background(), signedConfig())
	require.ErrorIs(t, err, ErrConfigureInFlight)

	// The in-flight call still resolves on its own terms.
	vendor.mu.Lock()
	ready := vendor.ready
	vendor.mu.Unlock()
	ready()

	require.NoError(t, <-firstDone)
	assert.Equal(t, Ready, a.State())
	assert.Len(t, vendor.configs, 1)
}

func TestRetryAfterFailureLoadsScriptOnce(t *testing.T) {
	calls := 0
	vendor := &fakeVendor{autoErr: "expired signature"}
	a := New(countingLoader(vendor, &calls), nil)

	require.Error(t, a.Configure(context.Background(), signedConfig()))
	require.Equal(t, Failed, a.State())

	// Explicit retry with a fresh payload transitions Failed -> Configuring.
	vendor.mu.Lock()
	vendor.autoErr = ""
	vendor.autoReady = true
	vendor.mu.Unlock()

	require.NoError(t, a.Configure(context.Background(), signedConfig()))
	assert.Equal(t, Ready, a.State())
	assert.Equal(t, 1, calls, "script acquisition must happen at most once per page")
}

func TestConfigureWhenReadyIsNoop(t *testing.T) {
	calls := 0
	vendor := &fakeVendor{autoReady: true}
	a := New(countingLoader(vendor, &calls), nil)

	require.NoError(t, a.Configure(context.Background(), signedConfig()))
	require.NoError(t, a.Configure(context.Background(), signedConfig()))
	assert.Len(t, vendor.configs, 1)
}

func TestCapabilityCallsRequireReady(t *testing.T) {
	vendor := &fakeVendor{}
	a := New(countingLoader(vendor, new(int)), nil)
	ctx := context.Background()

	assert.ErrorIs(t, a.ShareToChat(ctx, ShareRequest{Title: "t"}), ErrNotReady)
	assert.ErrorIs(t, a.ShareToTimeline(ctx, ShareRequest{Title: "t"}), ErrNotReady)
	assert.ErrorIs(t, a.CloseWindow(), ErrNotReady)
	_, err := a.NetworkType(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = a.CheckCapability(ctx, "closeWindow")
	assert.ErrorIs(t, err, ErrNotReady)

	assert.Empty(t, vendor.shares, "no vendor call may be issued before readiness")
	assert.False(t, vendor.closed)
}

func TestShareOutcomes(t *testing.T) {
	vendor := &fakeVendor{autoReady: true}
	a := New(countingLoader(vendor, new(int)), nil)
	ctx := context.Background()
	require.NoError(t, a.Configure(ctx, signedConfig()))

	req := ShareRequest{Title: "Weekly Report", Desc: "numbers", Link: "https://example.com/r/1"}
	require.NoError(t, a.ShareToChat(ctx, req))
	require.Len(t, vendor.shares, 1)
	assert.Equal(t, req, vendor.shares[0])

	vendor.cancelShare = true
	err := a.ShareToChat(ctx, req)
	require.ErrorIs(t, err, ErrShareCancelled)
	// Cancellation is a normal outcome: it must not read as a precondition
	// or transport failure.
	assert.NotErrorIs(t, err, ErrNotReady)
}

func TestCapabilityWrappers(t *testing.T) {
	vendor := &fakeVendor{
		autoReady: true,
		network:   "wifi",
		caps:      map[string]bool{"closeWindow": true},
	}
	a := New(countingLoader(vendor, new(int)), nil)
	ctx := context.Background()
	require.NoError(t, a.Configure(ctx, signedConfig()))

	nt, err := a.NetworkType(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wifi", nt)

	ok, err := a.CheckCapability(ctx, "closeWindow")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckCapability(ctx, "scanQRCode")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.CloseWindow())
	assert.True(t, vendor.closed)
}

func TestGlobalErrorRoutedToReboundHandler(t *testing.T) {
	vendor := &fakeVendor{autoReady: true}
	a := New(countingLoader(vendor, new(int)), nil)
	require.NoError(t, a.Configure(context.Background(), signedConfig()))

	var got []string
	a.RebindError(func(msg string) { got = append(got, msg) })

	// An error after configuration settles goes to the rebound handler,
	// not to a user-visible dialog.
	vendor.errCb("permission denied")
	assert.Equal(t, []string{"permission denied"}, got)
	assert.Equal(t, Ready, a.State(), "late vendor errors must not regress state")
}
