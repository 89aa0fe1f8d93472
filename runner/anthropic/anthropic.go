// Package anthropic provides a runner backed by the Anthropic Messages API.
//
// The runner serves two capabilities: text generation (single-shot, from the
// "prompt" input slot) and content safety. Safety requests put the material
// under review in the "content" slot; the runner wraps it in a classification
// prompt and parses the verdict into structured outputs.
package anthropic

import (
	"context"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/runner"
)

// Name is the registration name of the built-in Anthropic runner.
const Name = "anthropic_messages"

const safetyInstruction = "You are a content safety classifier. Reply with exactly one word, " +
	"SAFE or UNSAFE, followed on the next line by a short reason."

// Options configures the Anthropic runner (temperature, model id, max tokens).
type Options struct {
	Model       anthropicsdk.Model
	Temperature float64
	MaxTokens   int64
}

// Runner wraps the Anthropic Messages API behind the runner.Runner interface.
// It intentionally implements only single-shot execution; requesting a stream
// from it yields not_streaming_capable at the engine.
type Runner struct {
	client *anthropicsdk.Client
	opts   Options

	stateMu sync.Mutex
	loaded  bool
	model   string
}

// New creates an Anthropic runner with default options. The SDK client is
// built at Load time from the supplied settings.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		Model:       anthropicsdk.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{opts: opts}
}

// NewFromClient creates an Anthropic runner from an existing client.
func NewFromClient(client *anthropicsdk.Client, optFns ...func(o *Options)) *Runner {
	r := New(optFns...)
	r.client = client
	return r
}

// Registration returns the Registration for this runner type.
func Registration(priority int) *runner.Registration {
	return &runner.Registration{
		Name:    Name,
		Factory: func() runner.Runner { return New() },
		Capabilities: []core.Capability{
			core.CapabilityTextGeneration,
			core.CapabilityContentSafety,
		},
		Priority: priority,
	}
}

// Capabilities implements runner.Runner.
func (r *Runner) Capabilities() []core.Capability {
	return []core.Capability{core.CapabilityTextGeneration, core.CapabilityContentSafety}
}

// Load implements runner.Runner. Settings key: "api_key".
func (r *Runner) Load(ctx context.Context, modelID string, settings runner.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.loaded && r.model == modelID {
		return nil
	}

	if r.client == nil {
		var clientOpts []option.RequestOption
		if key, ok := settings["api_key"].(string); ok && key != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(key))
		}
		client := anthropicsdk.NewClient(clientOpts...)
		r.client = &client
	}

	r.loaded = true
	if modelID != "" {
		r.model = modelID
	} else {
		r.model = string(r.opts.Model)
	}

	return nil
}

// Unload implements runner.Runner. Idempotent.
func (r *Runner) Unload(context.Context) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.loaded = false
	r.model = ""
	return nil
}

// IsLoaded implements runner.Runner.
func (r *Runner) IsLoaded() bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.loaded
}

// LoadedModelID implements runner.Runner.
func (r *Runner) LoadedModelID() string {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.model
}

// ValidateParameters implements runner.Runner.
func (r *Runner) ValidateParameters(params map[string]any) error {
	if t, ok := params["temperature"]; ok {
		f, isNum := toFloat(t)
		if !isNum || f < 0 || f > 1 {
			return &core.ValidationError{Field: "temperature", Value: t, Message: "must be a number between 0 and 1"}
		}
	}
	if mt, ok := params["max_tokens"]; ok {
		f, isNum := toFloat(mt)
		if !isNum || f < 1 {
			return &core.ValidationError{Field: "max_tokens", Value: mt, Message: "must be a positive integer"}
		}
	}
	return nil
}

// Run implements runner.Runner.
func (r *Runner) Run(ctx context.Context, req *core.Request) core.Result {
	r.stateMu.Lock()
	loaded, model := r.loaded, r.model
	r.stateMu.Unlock()

	if !loaded {
		return core.NewErrorResult(core.ErrProcessingError, "anthropic runner is not loaded")
	}
	if err := r.ValidateParameters(req.Parameters); err != nil {
		return core.NewErrorResult(core.ErrInvalidInput, "%v", err)
	}

	if content, ok := req.Text("content"); ok && content != "" {
		return r.classify(ctx, model, req, content)
	}
	if prompt, ok := req.Text("prompt"); ok && prompt != "" {
		return r.generate(ctx, model, req, prompt)
	}

	return core.NewErrorResult(core.ErrInvalidInput, "request carries neither a %q nor a %q text input slot", "prompt", "content")
}

func (r *Runner) generate(ctx context.Context, model string, req *core.Request, prompt string) core.Result {
	params := r.buildParams(model, req, prompt, "")

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return core.NewErrorResult(core.ErrProcessingError, "anthropic api error: %v", err)
	}

	text := collectText(resp)
	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return core.NewResult(map[string]any{
		"text":          text,
		"finish_reason": finishReason,
		"usage": map[string]any{
			"prompt_tokens":     resp.Usage.InputTokens,
			"completion_tokens": resp.Usage.OutputTokens,
		},
	})
}

func (r *Runner) classify(ctx context.Context, model string, req *core.Request, content string) core.Result {
	params := r.buildParams(model, req, content, safetyInstruction)

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return core.NewErrorResult(core.ErrProcessingError, "anthropic api error: %v", err)
	}

	verdict := collectText(resp)
	line, reason, _ := strings.Cut(verdict, "\n")
	flagged := strings.EqualFold(strings.TrimSpace(line), "UNSAFE")

	return core.NewResult(map[string]any{
		"flagged": flagged,
		"reason":  strings.TrimSpace(reason),
	})
}

func (r *Runner) buildParams(model string, req *core.Request, userText, systemText string) anthropicsdk.MessageNewParams {
	temperature := r.opts.Temperature
	if t, ok := req.FloatParameter("temperature"); ok {
		temperature = t
	}
	maxTokens := r.opts.MaxTokens
	if mt, ok := req.FloatParameter("max_tokens"); ok {
		maxTokens = int64(mt)
	}

	params := anthropicsdk.MessageNewParams{
		Model: anthropicsdk.Model(model),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userText)),
		},
		MaxTokens:   maxTokens,
		Temperature: anthropicsdk.Float(temperature),
	}

	if systemText == "" {
		if system, ok := req.Text("system"); ok && system != "" {
			systemText = system
		}
	}
	if systemText != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemText}}
	}

	return params
}

func collectText(resp *anthropicsdk.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

var _ runner.Runner = (*Runner)(nil)
