package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
)

var _ Completer = (*Scripted)(nil)

// Scripted answers without a model: it asks follow-up questions and, once the transcript holds
// enough user messages, replies with a summary opening with the marker phrase. Used in local mode.
type Scripted struct {
	turns  int
	marker string
}

func NewScripted(turns int, marker string) *Scripted {
	return &Scripted{
		turns:  turns,
		marker: marker,
	}
}

func (s *Scripted) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	said := pie.Map(
		pie.Filter(messages, func(m Message) bool { return m.Role == RoleUser }),
		func(m Message) string { return strings.TrimSpace(m.Content) },
	)

	if len(said) < s.turns {
		if len(said) == 0 {
			return "What would you like to talk about?", nil
		}

		return fmt.Sprintf("I hear you. You said %q. Can you tell me more about how that made you feel?", said[len(said)-1]), nil
	}

	return fmt.Sprintf("%s: %s", s.marker, strings.Join(said, " / ")), nil
}
