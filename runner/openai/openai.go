// Package openai provides a text-generation runner backed by the OpenAI Chat
// Completions API (streaming + non-streaming). It adapts InferMesh's
// normalized Request/Result structures into the SDK's message format and back.
//
// The runner reads the prompt from the "prompt" input slot with an optional
// "system" slot. The loaded model id is the Chat Completions model name;
// hot-swapping models is a field update since the backend is remote.
package openai

import (
	"context"
	"strings"
	"sync"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/runner"
)

// Name is the registration name of the built-in OpenAI runner.
const Name = "openai_chat"

// Options configure the OpenAI runner. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Runner wraps the OpenAI Chat Completions API behind the runner.Runner and
// runner.StreamingRunner interfaces.
type Runner struct {
	client *openaisdk.Client
	opts   Options

	// stateMu guards the load state so IsLoaded / LoadedModelID reflect the
	// true post-load state regardless of the observing goroutine.
	stateMu sync.Mutex
	loaded  bool
	model   string
}

// New creates an OpenAI runner with default options. The SDK client is built
// at Load time from the supplied settings.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		Model:               openaisdk.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{opts: opts}
}

// NewFromClient creates an OpenAI runner from an existing client.
func NewFromClient(client *openaisdk.Client, optFns ...func(o *Options)) *Runner {
	r := New(optFns...)
	r.client = client
	return r
}

// Registration returns the Registration for this runner type.
func Registration(priority int) *runner.Registration {
	return &runner.Registration{
		Name:         Name,
		Factory:      func() runner.Runner { return New() },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
		Priority:     priority,
	}
}

// Capabilities implements runner.Runner.
func (r *Runner) Capabilities() []core.Capability {
	return []core.Capability{core.CapabilityTextGeneration}
}

// Load implements runner.Runner. Settings keys: "api_key", "base_url".
// Loading the same model again is a no-op success.
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
		if base, ok := settings["base_url"].(string); ok && base != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(base))
		}
		client := openaisdk.NewClient(clientOpts...)
		r.client = &client
	}

	r.loaded = true
	if modelID != "" {
		r.model = modelID
	} else {
		r.model = r.opts.Model
	}

	return nil
}

// Unload implements runner.Runner. Idempotent; the remote backend holds no
// per-runner state to release.
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
		f, ok := toFloat(t)
		if !ok || f < 0 || f > 2 {
			return &core.ValidationError{Field: "temperature", Value: t, Message: "must be a number between 0 and 2"}
		}
	}
	if mt, ok := params["max_tokens"]; ok {
		f, ok := toFloat(mt)
		if !ok || f < 1 {
			return &core.ValidationError{Field: "max_tokens", Value: mt, Message: "must be a positive integer"}
		}
	}
	return nil
}

// Run implements runner.Runner with a single blocking completion.
func (r *Runner) Run(ctx context.Context, req *core.Request) core.Result {
	params, errRes := r.prepare(req)
	if errRes != nil {
		return *errRes
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.NewErrorResult(core.ErrProcessingError, "openai api error: %v", err)
	}
	if len(resp.Choices) == 0 {
		return core.NewErrorResult(core.ErrProcessingError, "openai returned no choices")
	}

	choice := resp.Choices[0]
	return core.NewResult(map[string]any{
		"text":          choice.Message.Content,
		"finish_reason": string(choice.FinishReason),
		"usage": map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	})
}

// RunStream implements runner.StreamingRunner; emits partial text deltas then
// a final result carrying the accumulated text.
func (r *Runner) RunStream(ctx context.Context, req *core.Request) <-chan core.Result {
	out := make(chan core.Result, 32)

	go func() {
		defer close(out)

		params, errRes := r.prepare(req)
		if errRes != nil {
			out <- *errRes
			return
		}

		stream := r.client.Chat.Completions.NewStreaming(ctx, params)
		var textBuilder strings.Builder
		finishReason := ""

		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					textBuilder.WriteString(ch.Delta.Content)
					select {
					case <-ctx.Done():
						return
					case out <- core.NewPartialResult(map[string]any{"text": ch.Delta.Content}):
					}
				}
				if ch.FinishReason != "" {
					finishReason = ch.FinishReason
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case <-ctx.Done():
			case out <- core.NewErrorResult(core.ErrProcessingError, "openai streaming error: %v", err):
			}
			return
		}

		select {
		case <-ctx.Done():
		case out <- core.NewResult(map[string]any{
			"text":          textBuilder.String(),
			"finish_reason": finishReason,
		}):
		}
	}()

	return out
}

// prepare validates request state and builds completion parameters. Returns
// an error result instead of params when the request cannot be executed.
func (r *Runner) prepare(req *core.Request) (openaisdk.ChatCompletionNewParams, *core.Result) {
	r.stateMu.Lock()
	loaded, model := r.loaded, r.model
	r.stateMu.Unlock()

	if !loaded {
		res := core.NewErrorResult(core.ErrProcessingError, "openai runner is not loaded")
		return openaisdk.ChatCompletionNewParams{}, &res
	}

	if err := r.ValidateParameters(req.Parameters); err != nil {
		res := core.NewErrorResult(core.ErrInvalidInput, "%v", err)
		return openaisdk.ChatCompletionNewParams{}, &res
	}

	prompt, ok := req.Text("prompt")
	if !ok || prompt == "" {
		res := core.NewErrorResult(core.ErrInvalidInput, "missing required text input slot %q", "prompt")
		return openaisdk.ChatCompletionNewParams{}, &res
	}

	var messages []openaisdk.ChatCompletionMessageParamUnion
	if system, ok := req.Text("system"); ok && system != "" {
		messages = append(messages, openaisdk.SystemMessage(system))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	temperature := r.opts.Temperature
	if t, ok := req.FloatParameter("temperature"); ok {
		temperature = t
	}
	maxTokens := r.opts.MaxCompletionTokens
	if mt, ok := req.FloatParameter("max_tokens"); ok {
		maxTokens = int64(mt)
	}

	return openaisdk.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		Temperature:         openaisdk.Float(temperature),
		MaxCompletionTokens: openaisdk.Int(maxTokens),
	}, nil
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

var _ runner.StreamingRunner = (*Runner)(nil)
