// Package detector decides whether an assistant reply is a summary of a partner's perspective.
package detector

import (
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Classifier returns the summary carried by reply, if any.
type Classifier interface {
	Detect(reply string) (summary string, ok bool)
}

// Markers treats a reply as a summary when it contains one of a fixed set of phrases, ignoring case.
// The whole reply becomes the summary. The phrases are part of the prompt contract: the prompts ask
// the model to open its summary with one of them.
type Markers struct {
	phrases []string
	lowered []string
}

var _ Classifier = (*Markers)(nil)

func NewMarkers(phrases []string) *Markers {
	phrases = pie.Filter(phrases, func(p string) bool { return strings.TrimSpace(p) != "" })

	return &Markers{
		phrases: phrases,
		lowered: pie.Map(phrases, strings.ToLower),
	}
}

func (m *Markers) Detect(reply string) (string, bool) {
	text := strings.ToLower(reply)

	for _, phrase := range m.lowered {
		if strings.Contains(text, phrase) {
			return reply, true
		}
	}

	return "", false
}

// Phrase returns the marker the prompts instruct the model to use.
func (m *Markers) Phrase() string {
	if len(m.phrases) == 0 {
		return ""
	}

	return m.phrases[0]
}
