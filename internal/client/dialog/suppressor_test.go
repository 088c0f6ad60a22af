package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
)

func hostBindings(alerts *[]string, confirms *[]string) *Bindings {
	return &Bindings{
		Alert: func(msg string) {
			*alerts = append(*alerts, msg)
		},
		Confirm: func(msg string) bool {
			*confirms = append(*confirms, msg)
			return true
		},
	}
}

func TestSuppressConfirmReturnsFalse(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	s := New(b, nil, logging.NewNop())

	h := s.Install()
	defer h.Dispose()

	assert.False(t, b.Confirm("dangerous?"))
	assert.Empty(t, confirms, "native confirm must not run while suppressed")

	b.Alert("boom")
	assert.Empty(t, alerts, "native alert must not run while suppressed")
}

func TestDisposeRestoresOriginals(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	s := New(b, nil, logging.NewNop())

	h := s.Install()
	h.Dispose()

	assert.True(t, b.Confirm("ok?"), "original confirm answers true")
	b.Alert("hello")
	assert.Equal(t, []string{"ok?"}, confirms)
	assert.Equal(t, []string{"hello"}, alerts)
}

func TestNestedInstallKeepsTrueOriginals(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	s := New(b, nil, logging.NewNop())

	h1 := s.Install()
	h2 := s.Install()

	// Inner dispose must not restore yet.
	h2.Dispose()
	assert.False(t, b.Confirm("still suppressed?"))
	assert.Empty(t, confirms)

	h1.Dispose()
	assert.True(t, b.Confirm("restored?"))
	assert.Equal(t, []string{"restored?"}, confirms)
}

func TestDisposeIdempotent(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	s := New(b, nil, logging.NewNop())

	h1 := s.Install()
	h2 := s.Install()

	// Double-disposing the inner handle must not unwind the outer install.
	h2.Dispose()
	h2.Dispose()
	assert.True(t, s.Installed())

	h1.Dispose()
	assert.False(t, s.Installed())
}

type recordingRebinder struct {
	handler func(string)
}

func (r *recordingRebinder) RebindError(h func(string)) { r.handler = h }

func TestErrorCallbackRebound(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	rb := &recordingRebinder{}
	s := New(b, rb, logging.NewNop())

	h := s.Install()
	defer h.Dispose()

	require.NotNil(t, rb.handler)
	// Must be a pure log sink: no panic, no dialog.
	rb.handler("config:fail")
	assert.Empty(t, alerts)
}

func TestDisposeRestoresErrorCallback(t *testing.T) {
	var alerts, confirms []string
	b := hostBindings(&alerts, &confirms)
	rb := &recordingRebinder{}
	s := New(b, rb, logging.NewNop())

	h1 := s.Install()
	h2 := s.Install()

	h2.Dispose()
	assert.NotNil(t, rb.handler, "inner dispose keeps the log sink bound")

	h1.Dispose()
	assert.Nil(t, rb.handler, "last dispose hands error routing back to the bridge")
}
