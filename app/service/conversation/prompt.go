package conversation

import (
	"fmt"
	"strings"

	_ "embed"
)

//go:embed first_partner_prompt.txt
var firstPartnerPromptTemplate string

//go:embed second_partner_prompt.txt
var secondPartnerPromptTemplate string

const (
	framedOpening   = "I have already spoken with %s, and this is how they described things: \"%s\" Now I would really like to hear your side."
	unframedOpening = "I have not heard %s's side yet, so let's start with yours. What is on your mind?"

	openerRequest = "%s has just joined and has not written anything yet. Greet them and ask your first question."
)

func renderPrompt(template string, values map[string]any) string {
	prompt := template
	for key, value := range values {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return strings.TrimSpace(prompt)
}

func firstPartnerPrompt(partner, other, marker string) string {
	return renderPrompt(firstPartnerPromptTemplate, map[string]any{
		"partner": partner,
		"other":   other,
		"marker":  marker,
	})
}

// secondPartnerPrompt embeds framing, the first partner's summary, verbatim in the opening sentence.
func secondPartnerPrompt(partner, first, framing, marker string) string {
	opening := fmt.Sprintf(unframedOpening, first)
	if framing != "" {
		opening = fmt.Sprintf(framedOpening, first, framing)
	}

	// opening goes last so braces inside the summary are never treated as keys
	prompt := renderPrompt(secondPartnerPromptTemplate, map[string]any{
		"partner": partner,
		"first":   first,
		"marker":  marker,
	})

	return strings.Replace(prompt, "{opening}", opening, 1)
}
