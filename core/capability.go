package core

// Capability categorizes an AI inference task. The set is closed: runners
// declare one or more of these at registration time and dispatch resolves
// requests by capability, so capability checks are set lookups rather than
// type assertions on runner implementations.
type Capability string

const (
	// CapabilityTextGeneration covers chat / completion style text models.
	CapabilityTextGeneration Capability = "text_generation"
	// CapabilitySpeechToText covers audio transcription.
	CapabilitySpeechToText Capability = "speech_to_text"
	// CapabilityTextToSpeech covers speech synthesis.
	CapabilityTextToSpeech Capability = "text_to_speech"
	// CapabilityVisionLanguage covers image understanding models.
	CapabilityVisionLanguage Capability = "vision_language"
	// CapabilityContentSafety covers content moderation / safety classifiers.
	CapabilityContentSafety Capability = "content_safety"
)

// AllCapabilities returns the closed capability set in a stable order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityTextGeneration,
		CapabilitySpeechToText,
		CapabilityTextToSpeech,
		CapabilityVisionLanguage,
		CapabilityContentSafety,
	}
}

// IsValid reports whether c is a member of the closed capability set.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityTextGeneration, CapabilitySpeechToText, CapabilityTextToSpeech,
		CapabilityVisionLanguage, CapabilityContentSafety:
		return true
	}
	return false
}

// String returns the wire representation of the capability.
func (c Capability) String() string { return string(c) }
