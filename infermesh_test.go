package infermesh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infermesh/infermesh"
	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/runner"
)

// echoRunner answers text generation by echoing the prompt back; it records
// the settings handed to Load so the pass-through can be asserted.
type echoRunner struct {
	loaded       bool
	model        string
	seenSettings runner.Settings
}

func (e *echoRunner) Capabilities() []core.Capability {
	return []core.Capability{core.CapabilityTextGeneration}
}

func (e *echoRunner) Load(_ context.Context, modelID string, settings runner.Settings) error {
	e.loaded = true
	e.model = modelID
	e.seenSettings = settings
	return nil
}

func (e *echoRunner) Run(_ context.Context, req *core.Request) core.Result {
	prompt, ok := req.Text("prompt")
	if !ok {
		return core.NewErrorResult(core.ErrInvalidInput, "missing prompt")
	}
	return core.NewTextResult("text", "echo: "+prompt)
}

func (e *echoRunner) Unload(context.Context) error {
	e.loaded = false
	e.model = ""
	return nil
}

func (e *echoRunner) IsLoaded() bool { return e.loaded }

func (e *echoRunner) LoadedModelID() string { return e.model }

func (e *echoRunner) ValidateParameters(map[string]any) error { return nil }

func TestMesh_EndToEnd(t *testing.T) {
	er := &echoRunner{}

	mesh := infermesh.New(func(o *infermesh.Options) {
		o.DefaultRunners = map[core.Capability]string{
			core.CapabilityTextGeneration: "echo_runner",
		}
		o.RunnerSettings = map[string]runner.Settings{
			"echo_runner": {"voice": "calm"},
		}
	})

	require.NoError(t, mesh.RegisterRunner(&runner.Registration{
		Name:         "echo_runner",
		Factory:      func() runner.Runner { return er },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
		Priority:     10,
	}))

	req := core.NewRequest("s1").WithText("prompt", "hello").WithModel("m1")
	res := mesh.Process(context.Background(), req, core.CapabilityTextGeneration, "")

	require.False(t, res.IsError(), "unexpected error: %v", res.Error)
	assert.Equal(t, "echo: hello", res.Text("text"))
	assert.Equal(t, "calm", er.seenSettings["voice"], "settings pass through to Load unchanged")
	assert.Equal(t, "m1", er.LoadedModelID())

	require.NoError(t, mesh.Cleanup(context.Background()))
	assert.False(t, er.IsLoaded())
}

func TestMesh_ProcessStreamAgainstSingleShotRunner(t *testing.T) {
	mesh := infermesh.New()
	require.NoError(t, mesh.RegisterRunner(&runner.Registration{
		Name:         "echo_runner",
		Factory:      func() runner.Runner { return &echoRunner{} },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
		Priority:     10,
	}))

	var results []core.Result
	for res := range mesh.ProcessStream(context.Background(), core.NewRequest("s1"), core.CapabilityTextGeneration, "") {
		results = append(results, res)
	}

	require.Len(t, results, 1)
	require.True(t, results[0].IsError())
	assert.Equal(t, core.ErrNotStreamingCapable, results[0].Error.Kind)
}

func TestMesh_UnregisterRunner(t *testing.T) {
	er := &echoRunner{}
	mesh := infermesh.New()
	require.NoError(t, mesh.RegisterRunner(&runner.Registration{
		Name:         "echo_runner",
		Factory:      func() runner.Runner { return er },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
		Priority:     10,
	}))

	res := mesh.Process(context.Background(), core.NewRequest("s1").WithText("prompt", "x"), core.CapabilityTextGeneration, "")
	require.False(t, res.IsError())

	require.NoError(t, mesh.UnregisterRunner(context.Background(), "echo_runner"))
	assert.False(t, er.IsLoaded())

	res = mesh.Process(context.Background(), core.NewRequest("s1"), core.CapabilityTextGeneration, "")
	require.True(t, res.IsError())
	assert.Equal(t, core.ErrNoRunnerForCapability, res.Error.Kind)
}
