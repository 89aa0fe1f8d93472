package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infermesh/infermesh/core"
)

// stubRunner is the minimal Runner used for registry validation tests.
type stubRunner struct {
	caps []core.Capability
}

func (s *stubRunner) Capabilities() []core.Capability { return s.caps }

func (s *stubRunner) Load(context.Context, string, Settings) error { return nil }

func (s *stubRunner) Run(context.Context, *core.Request) core.Result {
	return core.NewTextResult("text", "stub")
}

func (s *stubRunner) Unload(context.Context) error { return nil }

func (s *stubRunner) IsLoaded() bool { return false }

func (s *stubRunner) LoadedModelID() string { return "" }

func (s *stubRunner) ValidateParameters(map[string]any) error { return nil }

func stubRegistration(name string, priority int, caps ...core.Capability) *Registration {
	return &Registration{
		Name:         name,
		Factory:      func() Runner { return &stubRunner{caps: caps} },
		Capabilities: caps,
		Priority:     priority,
	}
}

func TestRegistry_RegisterAndFindByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("llm_runner", 10, core.CapabilityTextGeneration)))

	reg, ok := r.FindByName("llm_runner")
	require.True(t, ok)
	assert.Equal(t, "llm_runner", reg.Name)
	assert.Equal(t, 1, r.Len())

	_, ok = r.FindByName("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("llm_runner", 10, core.CapabilityTextGeneration)))

	err := r.Register(stubRegistration("llm_runner", 20, core.CapabilityTextGeneration))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// The original entry survives.
	reg, _ := r.FindByName("llm_runner")
	assert.Equal(t, 10, reg.Priority)
}

func TestRegistry_ReplaceIsExplicit(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("llm_runner", 10, core.CapabilityTextGeneration)))
	require.NoError(t, r.Replace(stubRegistration("llm_runner", 20, core.CapabilityTextGeneration)))

	reg, ok := r.FindByName("llm_runner")
	require.True(t, ok)
	assert.Equal(t, 20, reg.Priority)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_FindByCapabilityOrdering(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("first_low", 1, core.CapabilityTextGeneration)))
	require.NoError(t, r.Register(stubRegistration("high", 10, core.CapabilityTextGeneration)))
	require.NoError(t, r.Register(stubRegistration("second_low", 1, core.CapabilityTextGeneration)))
	require.NoError(t, r.Register(stubRegistration("asr", 100, core.CapabilitySpeechToText)))

	matches := r.FindByCapability(core.CapabilityTextGeneration)
	require.Len(t, matches, 3)
	assert.Equal(t, "high", matches[0].Name, "descending priority wins")
	assert.Equal(t, "first_low", matches[1].Name, "registration order breaks ties")
	assert.Equal(t, "second_low", matches[2].Name)

	assert.Empty(t, r.FindByCapability(core.CapabilityVisionLanguage))
}

func TestRegistry_ValidationRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Registration{Name: "", Factory: func() Runner { return &stubRunner{} }}))
	assert.Error(t, r.Register(&Registration{Name: "x", Factory: nil, Capabilities: []core.Capability{core.CapabilityTextGeneration}}))
	assert.Error(t, r.Register(&Registration{
		Name:         "x",
		Factory:      func() Runner { return &stubRunner{caps: []core.Capability{core.CapabilityTextGeneration}} },
		Capabilities: nil,
	}))
	assert.Error(t, r.Register(&Registration{
		Name:         "x",
		Factory:      func() Runner { return &stubRunner{caps: []core.Capability{core.CapabilityTextGeneration}} },
		Capabilities: []core.Capability{"teleportation"},
	}))
}

func TestRegistry_CapabilityMismatchSurfacesAtRegistration(t *testing.T) {
	r := NewRegistry()

	// Runner declares speech_to_text but the registration only covers
	// text_generation: a configuration error caught eagerly.
	err := r.Register(&Registration{
		Name:         "mismatched",
		Factory:      func() Runner { return &stubRunner{caps: []core.Capability{core.CapabilitySpeechToText}} },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not covered by its registration")
}

func TestRegistry_UnregisterAndClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("a", 1, core.CapabilityTextGeneration)))
	require.NoError(t, r.Register(stubRegistration("b", 1, core.CapabilitySpeechToText)))

	r.Unregister("a")
	_, ok := r.FindByName("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Clear()
	assert.Zero(t, r.Len())
}

func TestRegistry_NamesInInsertionOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubRegistration("c_runner", 1, core.CapabilityTextGeneration)))
	require.NoError(t, r.Register(stubRegistration("a_runner", 9, core.CapabilitySpeechToText)))
	require.NoError(t, r.Register(stubRegistration("b_runner", 5, core.CapabilityVisionLanguage)))

	assert.Equal(t, []string{"c_runner", "a_runner", "b_runner"}, r.Names())
}
