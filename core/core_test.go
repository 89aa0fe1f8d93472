package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapability_Validity(t *testing.T) {
	for _, c := range AllCapabilities() {
		assert.True(t, c.IsValid(), "capability %q", c)
	}
	assert.False(t, Capability("teleportation").IsValid())
	assert.False(t, Capability("").IsValid())
}

func TestRequest_Builders(t *testing.T) {
	req := NewRequest("s1").
		WithModel("m1").
		WithText("prompt", "hello").
		WithParameter("temperature", 0.2)

	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "m1", req.Model)

	text, ok := req.Text("prompt")
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = req.Text("missing")
	assert.False(t, ok)

	f, ok := req.FloatParameter("temperature")
	require.True(t, ok)
	assert.Equal(t, 0.2, f)
}

func TestRequest_FloatParameterWidensIntegers(t *testing.T) {
	req := NewRequest("s1").WithParameter("max_tokens", 128)
	f, ok := req.FloatParameter("max_tokens")
	require.True(t, ok)
	assert.Equal(t, float64(128), f)

	req.Parameters["max_tokens"] = "many"
	_, ok = req.FloatParameter("max_tokens")
	assert.False(t, ok)
}

func TestRequest_TypedSlotAccessors(t *testing.T) {
	req := NewRequest("s1")
	req.Inputs["audio"] = AudioPayload{Data: []byte{1, 2}, Format: "pcm16", SampleRate: 16000}
	req.Inputs["image"] = ImagePayload{Data: []byte{3}, MIMEType: "image/png"}

	audio, ok := req.Audio("audio")
	require.True(t, ok)
	assert.Equal(t, 16000, audio.SampleRate)

	img, ok := req.Image("image")
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)

	_, ok = req.Audio("image")
	assert.False(t, ok, "slot type mismatch must not coerce")
}

func TestResult_Constructors(t *testing.T) {
	ok := NewTextResult("text", "hi")
	assert.False(t, ok.IsError())
	assert.False(t, ok.Partial)
	assert.Equal(t, "hi", ok.Text("text"))
	assert.NotEmpty(t, ok.ID)

	partial := NewPartialResult(map[string]any{"text": "h"})
	assert.True(t, partial.Partial)
	assert.False(t, partial.IsError())

	fail := NewErrorResult(ErrLoadFailed, "model %q missing", "m1")
	require.True(t, fail.IsError())
	assert.Equal(t, ErrLoadFailed, fail.Error.Kind)
	assert.Equal(t, `model "m1" missing`, fail.Error.Message)
}

func TestError_Messages(t *testing.T) {
	err := NewError(ErrRunnerNotFound, "runner %q is not registered", "ghost")
	assert.Equal(t, `runner_not_found: runner "ghost" is not registered`, err.Error())

	verr := &ValidationError{Field: "temperature", Value: 9, Message: "out of range"}
	assert.Equal(t, "validation error for field 'temperature': out of range", verr.Error())
}
