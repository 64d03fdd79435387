package funnel

import (
	"regexp"
	"strings"
)

// Stage is the derived qualification stage of a chat. It is never persisted;
// callers recompute it from the message history whenever the transcript
// changes.
type Stage string

const (
	StageNew       Stage = "new"
	StageResponded Stage = "responded"
	StageQualified Stage = "qualified"
	StageConverted Stage = "converted"
)

var stageOrder = []Stage{StageNew, StageResponded, StageQualified, StageConverted}

// Rank returns the stage's position in the funnel order. Unknown values rank
// as new.
func Rank(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// Message is the minimal transcript view the classifier needs.
type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Phrases the assistant uses when it tries to move a lead toward a call.
var qualificationKeywords = []string{
	"would you like to speak",
	"would you like to talk",
	"can arrange a call",
	"schedule a call",
	"book a consultation",
	"speak with an advisor",
	"talk to an advisor",
	"chat with an advisor",
	"available for a call",
	"set up a meeting",
	"book an appointment",
	"when would suit you",
	"what time works best",
	"discuss this further",
	"discuss your requirements",
	"discuss your needs",
}

// Phrases a lead uses when agreeing to a call or meeting.
var conversionKeywords = []string{
	"call me at",
	"call me on",
	"available at",
	"free at",
	"works for me",
	"can do",
	"call now",
	"speak now",
	"talk now",
	"available now",
	"right now",
}

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d{1,2}(?::\d{2})?\s*(?:am|pm)`),
	regexp.MustCompile(`(?:[01][0-9]|2[0-3]):[0-5][0-9]`),
	regexp.MustCompile(`(?i)\b(?:today|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`(?i)\b(?:morning|afternoon|evening)\b`),
}

var (
	qualificationPatterns = compileKeywords(qualificationKeywords)
	conversionPatterns    = compileKeywords(conversionKeywords)
)

// Keywords only count as a complete phrase, not as a substring of a larger
// word.
func compileKeywords(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return patterns
}

func matchesAny(patterns []*regexp.Regexp, content string) bool {
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// Classify computes the chat's stage from its full ordered transcript, oldest
// first. prev is the stage the caller last observed for this chat; the result
// never ranks below it, so growing histories of the same chat always yield a
// monotonically non-decreasing stage. Classify is pure and deterministic and
// never fails: malformed or empty input degrades to new.
func Classify(prev Stage, msgs []Message) Stage {
	stage := prev
	if Rank(stage) == 0 {
		stage = StageNew
	}

	var lastUser, lastAssistant string
	hasUserMessage := false
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			hasUserMessage = true
			if strings.TrimSpace(m.Content) != "" {
				lastUser = m.Content
			}
		case RoleAssistant:
			if strings.TrimSpace(m.Content) != "" {
				lastAssistant = m.Content
			}
		}
	}

	candidate := stage
	switch stage {
	case StageNew:
		if hasUserMessage {
			candidate = StageResponded
		}
	case StageResponded:
		if lastAssistant != "" && matchesAny(qualificationPatterns, lastAssistant) {
			candidate = StageQualified
		}
	case StageQualified:
		if lastUser != "" && (matchesAny(conversionPatterns, lastUser) || matchesAny(timePatterns, lastUser)) {
			candidate = StageConverted
		}
	}
	// StageConverted is terminal.

	if Rank(candidate) > Rank(stage) {
		return candidate
	}
	return stage
}

// ClassifyAll replays the transcript message by message so a single snapshot
// can advance through several stages, e.g. a history that already contains a
// qualifying assistant turn followed by a converting user turn. This is what
// display callers use when they only hold the stored transcript.
func ClassifyAll(msgs []Message) Stage {
	stage := StageNew
	for i := range msgs {
		stage = Classify(stage, msgs[:i+1])
	}
	return stage
}
