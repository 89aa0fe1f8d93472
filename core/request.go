package core

// Request is a single inference request passed unchanged through dispatch.
// Inputs map named slots to typed payloads; Parameters carry per-request
// generation options (temperature, voice, max tokens, ...). Model names the
// desired model identifier; the engine hot-swaps a runner's loaded model when
// it differs from the request's.
type Request struct {
	SessionID  string             `json:"session_id"`
	Model      string             `json:"model,omitempty"`
	Inputs     map[string]Payload `json:"inputs"`
	Parameters map[string]any     `json:"parameters,omitempty"`
}

// NewRequest constructs a Request with initialized maps.
func NewRequest(sessionID string) *Request {
	return &Request{
		SessionID:  sessionID,
		Inputs:     make(map[string]Payload),
		Parameters: make(map[string]any),
	}
}

// WithText sets a text payload on the named slot and returns the request for chaining.
func (r *Request) WithText(slot, text string) *Request {
	r.Inputs[slot] = TextPayload{Text: text}
	return r
}

// WithModel sets the desired model identifier.
func (r *Request) WithModel(model string) *Request {
	r.Model = model
	return r
}

// WithParameter sets a generation parameter.
func (r *Request) WithParameter(name string, value any) *Request {
	r.Parameters[name] = value
	return r
}

// Text returns the text payload on the named slot, if present.
func (r *Request) Text(slot string) (string, bool) {
	tp, ok := r.Inputs[slot].(TextPayload)
	if !ok {
		return "", false
	}
	return tp.Text, true
}

// Audio returns the audio payload on the named slot, if present.
func (r *Request) Audio(slot string) (AudioPayload, bool) {
	ap, ok := r.Inputs[slot].(AudioPayload)
	return ap, ok
}

// Image returns the image payload on the named slot, if present.
func (r *Request) Image(slot string) (ImagePayload, bool) {
	ip, ok := r.Inputs[slot].(ImagePayload)
	return ip, ok
}

// StringParameter returns the named parameter as a string, if present and a string.
func (r *Request) StringParameter(name string) (string, bool) {
	s, ok := r.Parameters[name].(string)
	return s, ok
}

// FloatParameter returns the named parameter as a float64. Integer values are
// widened so JSON-decoded parameters work regardless of the decoder's choice.
func (r *Request) FloatParameter(name string) (float64, bool) {
	switch v := r.Parameters[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
