package enums

import "fmt"

// AISessionKind names the kind of AI generation a session performed.
type AISessionKind string

const (
	AISessionKindScript    AISessionKind = "script"
	AISessionKindVoiceover AISessionKind = "voiceover"
	AISessionKindImage     AISessionKind = "image"
)

var validAISessionKinds = []AISessionKind{
	AISessionKindScript,
	AISessionKindVoiceover,
	AISessionKindImage,
}

// String implements fmt.Stringer.
func (k AISessionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k AISessionKind) IsValid() bool {
	for _, candidate := range validAISessionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAISessionKind converts raw input into an AISessionKind.
func ParseAISessionKind(value string) (AISessionKind, error) {
	for _, candidate := range validAISessionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ai session kind %q", value)
}
