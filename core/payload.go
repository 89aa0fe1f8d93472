package core

// Payload represents a polymorphic input slot value. Concrete payload types
// implement the unexported isPayload marker enabling a closed set.
type Payload interface{ isPayload() }

// TextPayload is a plain text input segment.
type TextPayload struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPayload implements the Payload interface for TextPayload.
func (TextPayload) isPayload() {}

// AudioPayload carries raw audio samples for speech capabilities.
type AudioPayload struct {
	Data       []byte // Raw audio bytes
	SampleRate int    // Samples per second (0 when encoded formats carry it)
	Format     string // e.g. "pcm16", "wav", "mp3"
}

// isPayload implements the Payload interface for AudioPayload.
func (AudioPayload) isPayload() {}

// ImagePayload carries encoded image bytes for vision capabilities.
type ImagePayload struct {
	Data     []byte // Encoded image bytes
	MIMEType string // e.g. "image/png"
}

// isPayload implements the Payload interface for ImagePayload.
func (ImagePayload) isPayload() {}

// DataPayload is a structured data segment (e.g., JSON object map).
type DataPayload struct {
	Data map[string]any
}

// isPayload implements the Payload interface for DataPayload.
func (DataPayload) isPayload() {}
