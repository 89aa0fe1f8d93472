package server

import (
	"encoding/base64"
	"fmt"

	"github.com/infermesh/infermesh/core"
)

// inferRequest is the wire form of a dispatch request.
type inferRequest struct {
	SessionID  string               `json:"session_id"`
	Capability string               `json:"capability"`
	Runner     string               `json:"runner,omitempty"`
	Model      string               `json:"model,omitempty"`
	Inputs     map[string]inputSlot `json:"inputs"`
	Parameters map[string]any       `json:"parameters,omitempty"`
}

// inputSlot is the wire form of one typed payload. Type selects the variant;
// binary payloads (audio, image) are base64 in Data.
type inputSlot struct {
	Type       string         `json:"type"` // text | audio | image | data
	Text       string         `json:"text,omitempty"`
	Data       string         `json:"data,omitempty"`
	Format     string         `json:"format,omitempty"`
	MIMEType   string         `json:"mime_type,omitempty"`
	SampleRate int            `json:"sample_rate,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
}

// inferResponse is the wire form of a single result.
type inferResponse struct {
	ID      string         `json:"id"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Partial bool           `json:"partial"`
	Error   *core.Error    `json:"error,omitempty"`
}

func toWireResult(res core.Result) inferResponse {
	return inferResponse{
		ID:      res.ID,
		Outputs: res.Outputs,
		Partial: res.Partial,
		Error:   res.Error,
	}
}

// toCoreRequest converts the wire request into the dispatch data model.
func (r inferRequest) toCoreRequest() (*core.Request, error) {
	req := core.NewRequest(r.SessionID)
	req.Model = r.Model
	for k, v := range r.Parameters {
		req.Parameters[k] = v
	}

	for slot, in := range r.Inputs {
		payload, err := in.toPayload()
		if err != nil {
			return nil, fmt.Errorf("input slot %q: %w", slot, err)
		}
		req.Inputs[slot] = payload
	}

	return req, nil
}

func (in inputSlot) toPayload() (core.Payload, error) {
	switch in.Type {
	case "text":
		return core.TextPayload{Text: in.Text}, nil
	case "audio":
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 audio data: %w", err)
		}
		return core.AudioPayload{Data: data, SampleRate: in.SampleRate, Format: in.Format}, nil
	case "image":
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		return core.ImagePayload{Data: data, MIMEType: in.MIMEType}, nil
	case "data":
		return core.DataPayload{Data: in.Values}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %q", in.Type)
	}
}
