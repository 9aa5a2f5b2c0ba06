package chat

import "strings"

// Language is one of the two supported conversation languages. Its value is
// the wire code sent to the backend.
type Language string

const (
	Primary   Language = "en"
	Secondary Language = "te"
)

// Telugu block.
const (
	secondaryScriptFirst = '\u0C00'
	secondaryScriptLast  = '\u0C7F'
)

// Detect classifies text by script: any rune in the Telugu block makes it
// Secondary, everything else (including empty text) is Primary.
func Detect(text string) Language {
	for _, r := range text {
		if r >= secondaryScriptFirst && r <= secondaryScriptLast {
			return Secondary
		}
	}
	return Primary
}

// ParseLanguage accepts a wire code or a display name.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english", "primary":
		return Primary, true
	case "te", "telugu", "తెలుగు", "secondary":
		return Secondary, true
	default:
		return "", false
	}
}

func (l Language) Code() string {
	if l == Secondary {
		return string(Secondary)
	}
	return string(Primary)
}

// RecognitionLocale is the locale speech capture is tagged with.
func (l Language) RecognitionLocale() string {
	if l == Secondary {
		return "te-IN"
	}
	return "en-IN"
}

// SynthesisLocale is the locale an utterance is tagged with.
func (l Language) SynthesisLocale() string {
	if l == Secondary {
		return "te-IN"
	}
	return "en-US"
}

// prefersVoice reports whether a voice with the given language tag suits l.
// Hindi voices are an acceptable regional fallback for Telugu.
func (l Language) prefersVoice(voiceLang string) bool {
	tag := strings.ToLower(voiceLang)
	if l == Secondary {
		return strings.HasPrefix(tag, "te") || strings.HasPrefix(tag, "hi")
	}
	return strings.HasPrefix(tag, "en")
}
